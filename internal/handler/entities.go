package handler

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/event"
	"github.com/agrodata/agroadmin/internal/store"
)

// EntityHandler implements the collection CRUD endpoints.
type EntityHandler struct {
	repo   store.Repository
	events eventSink
	log    *zap.Logger
}

// NewEntityHandler creates a new EntityHandler. rec may be nil.
func NewEntityHandler(repo store.Repository, rec event.Recorder, log *zap.Logger) *EntityHandler {
	return &EntityHandler{
		repo:   repo,
		events: eventSink{rec: rec, log: log},
		log:    log,
	}
}

// List returns one page of a collection.
// GET /v1/{collection}?page_size=&offset=
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	coll, ok := parseCollection(w, r)
	if !ok {
		return
	}
	pg := parsePagination(r)
	items, err := h.repo.List(r.Context(), coll, store.Page{Limit: pg.Limit, Offset: pg.Offset})
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Get returns one document.
// GET /v1/{collection}/{id}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	coll, ok := parseCollection(w, r)
	if !ok {
		return
	}
	doc, err := h.repo.Get(r.Context(), coll, chi.URLParam(r, "id"))
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Create stores a new document.
// POST /v1/{collection}
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	coll, ok := parseCollection(w, r)
	if !ok {
		return
	}
	var doc store.Document
	if err := decodeJSON(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	created, err := h.repo.Create(r.Context(), coll, doc, audit.Actor)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	h.events.record(r.Context(), event.NewEntityCreated(event.EntityChangedPayload{
		Collection: coll,
		EntityID:   created.ID(),
		Fields:     fieldNames(doc),
	}, audit.Actor))
	writeJSON(w, http.StatusCreated, created)
}

// Update merges the body's top-level fields into a document.
// PUT /v1/{collection}/{id}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	audit, ok := parseAuditContext(w, r)
	if !ok {
		return
	}
	coll, ok := parseCollection(w, r)
	if !ok {
		return
	}
	var fields store.Document
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	updated, err := h.repo.Update(r.Context(), coll, id, fields, audit.Actor)
	if err != nil {
		storeErrorToHTTP(w, err)
		return
	}
	h.log.Debug("document updated",
		zap.String("collection", coll),
		zap.String("id", id),
		zap.String("source", audit.Source))
	h.events.record(r.Context(), event.NewEntityUpdated(event.EntityChangedPayload{
		Collection: coll,
		EntityID:   id,
		Fields:     fieldNames(fields),
	}, audit.Actor))
	writeJSON(w, http.StatusOK, updated)
}

func fieldNames(d store.Document) []string {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
