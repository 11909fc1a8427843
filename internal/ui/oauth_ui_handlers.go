package ui

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Pages renders the HTML the user's browser lands on at the end of the
// calendar authorization handshake.
type Pages struct {
	templates *template.Template
	// CloseAfter is how many seconds the success page waits before
	// closing its tab.
	CloseAfter int
}

func NewPages() (*Pages, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}

	return &Pages{
		templates:  templates,
		CloseAfter: 3,
	}, nil
}

// RenderSuccess renders the connected page that closes itself.
func (p *Pages) RenderSuccess(w http.ResponseWriter) {
	data := struct {
		CloseAfterMillis int
	}{
		CloseAfterMillis: p.CloseAfter * 1000,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := p.templates.ExecuteTemplate(w, "success.html", data); err != nil {
		slog.Error("Failed to render success template", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (p *Pages) RenderError(w http.ResponseWriter, status int, title, message string) {
	data := struct {
		Title   string
		Message string
	}{
		Title:   title,
		Message: message,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := p.templates.ExecuteTemplate(w, "error.html", data); err != nil {
		slog.Error("Failed to render error template", "error", err)
	}
}
