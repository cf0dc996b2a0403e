package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

// PageData is shared by the simple informational pages.
type PageData struct {
	AppName         string
	Heading         string
	Message         string
	IsAuthenticated bool
	User            map[string]any
	UserJSON        string
	LoginURL        string
	LogoutURL       string
}

func TemplateFilesFS() fs.FS {
	// Create the sub filesystem once
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).ParseFS(TemplateFilesFS(), "layout.html", name)
}

func mustParseTemplate(name string) *template.Template {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		panic("Failed to parse " + name + " template: " + err.Error())
	}
	return tmpl
}

// renderTemplate renders into a buffer first so a template error can still
// produce a clean 500.
func renderTemplate(w http.ResponseWriter, r *http.Request, tmpl *template.Template, status int, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Ctx(r.Context()).Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
