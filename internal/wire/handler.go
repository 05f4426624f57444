package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/editform"
	"github.com/agrodata/agroadmin/internal/formsession"
)

// Handler serves a form session over WebSocket: client edits and submits
// flow in, state snapshots and feed events flow out.
type Handler struct {
	sessions *formsession.Manager
	log      *zap.Logger
	origins  []string
}

// NewHandler creates a WebSocket handler. origins are the allowed Origin
// patterns; empty allows any.
func NewHandler(sessions *formsession.Manager, log *zap.Logger, origins []string) *Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{sessions: sessions, log: log.Named("wire"), origins: origins}
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
// GET /v1/forms/sessions/{sid}/ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sid"))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "code": "SESSION_NOT_FOUND"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Warn("websocket accept", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := h.log.With(zap.String("session", sess.ID))

	events, unsubscribe := sess.Feed().Subscribe()
	defer unsubscribe()
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		h.forward(ctx, cancel, conn, events)
	}()
	defer func() {
		cancel()
		<-forwarded
	}()

	h.send(ctx, conn, ServerMessage{Type: "state", Data: sess.Form().Snapshot()})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				log.Debug("connection closed", zap.Int("status", int(status)))
			}
			return
		}
		sess.Touch()

		switch msg.Type {
		case "set_field":
			h.handleSetField(ctx, conn, sess, msg)
		case "submit":
			h.handleSubmit(ctx, conn, sess, msg)
		case "state":
			h.send(ctx, conn, ServerMessage{Type: "state", RequestID: msg.ID, Data: sess.Form().Snapshot()})
		case "ping":
			h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

// forward relays feed events until the feed closes or ctx ends. A closed
// feed means the session is gone, so the connection is closed too.
func (h *Handler) forward(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, events <-chan formsession.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				cancel()
				return
			}
			switch evt.Kind {
			case formsession.EventNotification:
				h.send(ctx, conn, ServerMessage{Type: "notification", Data: evt.Notification})
			case formsession.EventNavigate:
				h.send(ctx, conn, ServerMessage{Type: "navigate", Data: NavigateData{Path: evt.Path}})
			}
		}
	}
}

func (h *Handler) handleSetField(ctx context.Context, conn *websocket.Conn, sess *formsession.Session, msg ClientMessage) {
	var data SetFieldData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid set_field data")
		return
	}
	if err := sess.Form().SetField(data.Path, data.Value); err != nil {
		h.sendError(ctx, conn, msg.ID, errorCode(err), err.Error())
		return
	}
	h.send(ctx, conn, ServerMessage{Type: "state", RequestID: msg.ID, Data: sess.Form().Snapshot()})
}

func (h *Handler) handleSubmit(ctx context.Context, conn *websocket.Conn, sess *formsession.Session, msg ClientMessage) {
	res, err := sess.Form().Submit(ctx)
	if err != nil {
		h.sendError(ctx, conn, msg.ID, errorCode(err), err.Error())
		return
	}
	h.send(ctx, conn, ServerMessage{Type: "submitted", RequestID: msg.ID, Data: res})
	h.send(ctx, conn, ServerMessage{Type: "state", RequestID: msg.ID, Data: sess.Form().Snapshot()})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, editform.ErrUnknownField):
		return "unknown_field"
	case errors.Is(err, editform.ErrReadOnlyField):
		return "read_only_field"
	case errors.Is(err, editform.ErrNotReady):
		return "not_ready"
	case errors.Is(err, editform.ErrSubmitInFlight):
		return "submit_in_flight"
	case errors.Is(err, editform.ErrClosed):
		return "session_closed"
	}
	return "internal"
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.log.Debug("write error", zap.Error(err))
	}
}

func (h *Handler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
