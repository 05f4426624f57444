package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrodata/agroadmin/internal/activity"
)

// ActivityHandler serves the per-entity activity feed.
type ActivityHandler struct {
	store activity.Store
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store activity.Store) *ActivityHandler {
	return &ActivityHandler{store: store}
}

type activityPage struct {
	Entries    []activity.Entry `json:"entries"`
	NextCursor string           `json:"next_cursor,omitempty"`
	Total      int              `json:"total"`
}

// Entity returns the activity of one document, newest first.
// GET /v1/{collection}/{id}/activity?since=&until=&category=&min_weight=&limit=&cursor=
func (h *ActivityHandler) Entity(w http.ResponseWriter, r *http.Request) {
	coll, ok := parseCollection(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	opts := activity.DefaultQueryOptions()
	since, ok := parseTime(w, q.Get("since"), "since")
	if !ok {
		return
	}
	if since != nil {
		opts.Since = since
	}
	if opts.Until, ok = parseTime(w, q.Get("until"), "until"); !ok {
		return
	}
	opts.Categories = splitList(q.Get("category"))
	if v := q.Get("min_weight"); v != "" {
		opts.MinWeight = v
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = n
	}
	opts.Cursor = q.Get("cursor")

	entries, next, total, err := h.store.QueryByEntity(r.Context(), coll, chi.URLParam(r, "id"), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, activityPage{Entries: entries, NextCursor: next, Total: total})
}

// Search matches event summaries.
// GET /v1/activity?q=&collection=&category=&since=&limit=
func (h *ActivityHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := strings.TrimSpace(q.Get("q"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "q is required")
		return
	}
	opts := activity.SearchOptions{
		Collection: q.Get("collection"),
		Categories: splitList(q.Get("category")),
	}
	var ok bool
	if opts.Since, ok = parseTime(w, q.Get("since"), "since"); !ok {
		return
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = n
	}

	entries, total, err := h.store.Search(r.Context(), text, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, activityPage{Entries: entries, Total: total})
}

// parseTime reads an optional RFC 3339 query value. It writes a 400 and
// returns false when the value is malformed.
func parseTime(w http.ResponseWriter, v, name string) (*time.Time, bool) {
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMS", name+" must be RFC 3339")
		return nil, false
	}
	return &t, true
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
