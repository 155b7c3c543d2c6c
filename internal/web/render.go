package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
	"github.com/hpungsan/medscan/internal/history"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// ListPageData is the template data for the history list page.
type ListPageData struct {
	PageData
	Items      []drug.HistoryRecord
	Pagination history.Pagination
	Cleared    string
}

// DetailPageData is the template data for the record detail page.
type DetailPageData struct {
	PageData
	Record       *drug.HistoryRecord
	RenderedHTML template.HTML
	Debug        bool
	RawJSON      string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// markdown renders drug cards. Tables need the GFM extension.
var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	locale    string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version, locale string) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"percent":    func(v float64) string { return fmt.Sprintf("%.0f%%", v) },
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"list":   "list.html",
		"detail": "detail.html",
		"error":  "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		locale:    locale,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var mErr *errors.MedError
	if !stderrors.As(err, &mErr) {
		mErr = errors.NewInternal(err)
	}

	status := mErr.Status
	message := mErr.Message
	if mErr.Code == errors.ErrInternal {
		log.Printf("web: %s %s: %v", req.Method, req.URL.Path, err)
		message = "an internal error occurred"
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(mErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark. Raw HTML in
// the source is dropped, so label text read off a package cannot inject markup.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a record timestamp as "2006-01-02 15:04" UTC.
func formatTime(rec drug.HistoryRecord) string {
	t := rec.Time()
	if t.IsZero() {
		return rec.Timestamp
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// recordCard renders a saved record as the Markdown drug card.
func recordCard(rec *drug.HistoryRecord, locale string) template.HTML {
	return renderMarkdown(drug.Markdown(&rec.DrugInfo, rec.ConfidencePercent, rec.Placeholder, locale))
}
