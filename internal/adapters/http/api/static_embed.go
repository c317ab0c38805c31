package api

import (
	"embed"
	"io/fs"
)

//go:embed static
var apiStaticFS embed.FS

// dashboardFS strips the static/ prefix so files resolve by bare name.
func dashboardFS() fs.FS {
	sub, err := fs.Sub(apiStaticFS, "static")
	if err != nil {
		return apiStaticFS
	}
	return sub
}
