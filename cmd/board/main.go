package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sweeply/tidyboard/internal/tui"
)

const defaultLimit = 10

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		area    = flag.String("area", "", "Area code for the My Area scope, e.g. NW3")
		limit   = flag.Int("limit", defaultLimit, "Number of entries to fetch per board")
	)
	flag.Parse()

	provider := tui.NewHTTPProvider(*baseURL)
	p := tea.NewProgram(tui.New(provider, *area, *limit), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
