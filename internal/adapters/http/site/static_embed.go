package site

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var pageFS embed.FS

// FS returns an http.FileSystem for the embedded landing page.
func FS() http.FileSystem {
	sub, err := fs.Sub(pageFS, "static")
	if err != nil {
		return http.FS(pageFS)
	}
	return http.FS(sub)
}
