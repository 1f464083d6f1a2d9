// Package web embeds the static memory management panel.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed index.html
var content embed.FS

// Handler serves the embedded panel files.
func Handler() http.Handler {
	return http.FileServer(http.FS(files()))
}

func files() fs.FS {
	return content
}
