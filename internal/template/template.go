package template

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"svgcache-api/internal/imagecache"
	"svgcache-api/web"
)

const (
	pageTitle   = "SVG Cache"
	exampleName = "happy-cat"
)

// Renderer handles template rendering
type Renderer struct {
	templates *template.Template
}

// NewRenderer creates a new template renderer
func NewRenderer() (*Renderer, error) {
	tmpl, err := parseTemplates(web.TemplateFS)
	if err != nil {
		return nil, err
	}

	return &Renderer{
		templates: tmpl,
	}, nil
}

// parseTemplates parses all template files from the embedded filesystem
func parseTemplates(fsys fs.FS) (*template.Template, error) {
	funcMap := template.FuncMap{
		"location": location,
	}

	tmpl := template.New("").Funcs(funcMap)

	err := fs.WalkDir(fsys, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}

		_, err = tmpl.New(filepath.Base(path)).Parse(string(content))
		return err
	})

	return tmpl, err
}

// RenderIndex renders the landing page. The page is buffered so a template
// error never leaves a half-written 200 behind.
func (r *Renderer) RenderIndex(w http.ResponseWriter, requiresKey bool) error {
	data := &PageData{
		Title:        pageTitle,
		ExampleName:  exampleName,
		RequiresKey:  requiresKey,
		MinKeyLength: imagecache.MinKeyLength,
		MaxKeyLength: imagecache.MaxKeyLength,
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, "index", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}
