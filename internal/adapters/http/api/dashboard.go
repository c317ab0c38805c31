package api

import (
	"io/fs"
	"net/http"
)

// dashboardHandler serves the ops dashboard page.
type dashboardHandler struct {
	fsys fs.FS
}

func newDashboardHandler() *dashboardHandler {
	return &dashboardHandler{fsys: dashboardFS()}
}

// HandleDashboard handles GET /dashboard requests. The page polls /stats
// and /leaderboard from the browser, so it carries no server state.
func (h *dashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, h.fsys, "dashboard.html")
}
