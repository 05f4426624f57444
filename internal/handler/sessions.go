package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/editform"
	"github.com/agrodata/agroadmin/internal/formsession"
	"github.com/agrodata/agroadmin/internal/navigation"
)

// loadWait bounds how long ?wait=true holds a request for the entity fetch.
const loadWait = 10 * time.Second

// SessionHandler drives edit forms over REST.
type SessionHandler struct {
	sessions *formsession.Manager
	log      *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *formsession.Manager, log *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, log: log}
}

type createSessionRequest struct {
	EntityID string           `json:"entity_id"`
	Actor    navigation.Actor `json:"actor"`
}

type sessionResponse struct {
	ID        string            `json:"id"`
	Form      string            `json:"form"`
	EntityID  string            `json:"entity_id"`
	Actor     navigation.Actor  `json:"actor"`
	CreatedAt time.Time         `json:"created_at"`
	State     editform.Snapshot `json:"state"`
}

func newSessionResponse(s *formsession.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		Form:      s.FormName,
		EntityID:  s.EntityID,
		Actor:     s.Actor,
		CreatedAt: s.CreatedAt,
		State:     s.Form().Snapshot(),
	}
}

// Create opens an edit session. With ?wait=true the response is sent once
// the entity has loaded (or failed to).
// POST /v1/forms/{form}/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if req.EntityID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "entity_id is required")
		return
	}
	if req.Actor.ID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ACTOR", "actor.id is required")
		return
	}
	s, err := h.sessions.Create(chi.URLParam(r, "form"), req.EntityID, req.Actor)
	if err != nil {
		formErrorToHTTP(w, err)
		return
	}
	h.maybeWait(r, s)
	writeJSON(w, http.StatusCreated, newSessionResponse(s))
}

// Get returns the session and its form snapshot.
// GET /v1/forms/sessions/{sid}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s))
}

type setFieldRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// SetField edits one field.
// PATCH /v1/forms/sessions/{sid}/fields
func (h *SessionHandler) SetField(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req setFieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if err := s.Form().SetField(req.Path, req.Value); err != nil {
		formErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Form().Snapshot())
}

type submitResponse struct {
	Result editform.SubmitResult `json:"result"`
	State  editform.Snapshot     `json:"state"`
}

// Submit validates and sends the form. A submission blocked by validation
// is a normal outcome reported in the result.
// POST /v1/forms/sessions/{sid}/submit
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := s.Form().Submit(r.Context())
	if err != nil {
		formErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Result: res, State: s.Form().Snapshot()})
}

// Reload fetches the entity again.
// POST /v1/forms/sessions/{sid}/reload
func (h *SessionHandler) Reload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reload()
	h.maybeWait(r, s)
	writeJSON(w, http.StatusAccepted, s.Form().Snapshot())
}

// Events returns the session's notification and navigation history.
// GET /v1/forms/sessions/{sid}/events
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Feed().History())
}

// Delete closes the session.
// DELETE /v1/forms/sessions/{sid}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Remove(chi.URLParam(r, "sid")) {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*formsession.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sid"))
	if err != nil {
		formErrorToHTTP(w, err)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) maybeWait(r *http.Request, s *formsession.Session) {
	if r.URL.Query().Get("wait") != "true" {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), loadWait)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		h.log.Debug("session load did not complete", zap.String("session", s.ID), zap.Error(err))
	}
}

// formErrorToHTTP maps form and session errors to HTTP responses.
func formErrorToHTTP(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, formsession.ErrUnknownForm):
		writeError(w, http.StatusNotFound, "UNKNOWN_FORM", err.Error())
	case errors.Is(err, formsession.ErrSessionNotFound), errors.Is(err, editform.ErrClosed):
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, editform.ErrUnknownField):
		writeError(w, http.StatusBadRequest, "UNKNOWN_FIELD", err.Error())
	case errors.Is(err, editform.ErrReadOnlyField):
		writeError(w, http.StatusForbidden, "READ_ONLY_FIELD", err.Error())
	case errors.Is(err, editform.ErrNotReady):
		writeError(w, http.StatusConflict, "NOT_READY", err.Error())
	case errors.Is(err, editform.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, "SUBMIT_IN_FLIGHT", err.Error())
	default:
		storeErrorToHTTP(w, err)
	}
}
