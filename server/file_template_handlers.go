package server

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*
var templateFiles embed.FS

// pageFS is the templates directory with its prefix stripped.
var pageFS = mustSub(templateFiles, "templates")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return sub
}

// ParseTemplate parses a page together with the shared layout.
// html/template escapes every value rendered into it.
func ParseTemplate(name string) (*template.Template, error) {
	return template.ParseFS(pageFS, "layout.html", name)
}
