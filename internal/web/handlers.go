package web

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/errors"
	"github.com/hpungsan/medscan/internal/history"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /history: saved recognitions, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := history.ListInput{
		Limit:  parseIntParam(r, "limit", history.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}

	result, err := history.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Cleared:    r.URL.Query().Get("cleared"),
	})
}

// HandleDetail handles GET /history/{id}: one record as a drug card.
// ?debug=1 adds the raw stored record.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("record id must be an integer"))
		return
	}

	rec, err := history.Fetch(r.Context(), h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, rec)
		return
	}

	data := DetailPageData{
		PageData: PageData{
			Title:   rec.DrugInfo.Name,
			Version: h.renderer.version,
		},
		Record:       rec,
		RenderedHTML: recordCard(rec, h.renderer.locale),
		Debug:        parseBoolParam(r, "debug"),
	}
	if data.Debug {
		raw, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInternal(err))
			return
		}
		data.RawJSON = string(raw)
	}

	h.renderer.renderPage(w, "detail", data)
}

// HandleClear handles POST /history/clear: deletes every record.
func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	result, err := history.Clear(r.Context(), h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/history?cleared="+strconv.Itoa(result.Cleared), http.StatusSeeOther)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
