package stats

import (
	"embed"
	"io/fs"
	"os"
)

const graphTemplate = "graph.html"

//go:embed templates/*.html
var embeddedTemplates embed.FS

// DefaultTemplates returns the templates compiled into the binary.
func DefaultTemplates() fs.FS {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// TemplatesFrom returns dir as a template source, or the compiled-in
// templates when dir is empty.
func TemplatesFrom(dir string) fs.FS {
	if dir == "" {
		return DefaultTemplates()
	}
	return os.DirFS(dir)
}
