package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ref points at an entity touched by an event.
type Ref struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Role       string `json:"role"` // "subject", "actor"
}

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Refs       []Ref           `json:"refs"`
	Summary    string          `json:"summary"`
	Category   string          `json:"category"` // "registry", "form"
	Weight     string          `json:"weight"`   // "major", "minor", "info"
	Actor      string          `json:"actor,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ── Registry events ─────────────────────────────────────────────────────────

// EntityChangedPayload describes a write to a collection.
type EntityChangedPayload struct {
	Collection string   `json:"collection"`
	EntityID   string   `json:"entity_id"`
	Fields     []string `json:"fields,omitempty"`
}

func NewEntityCreated(p EntityChangedPayload, actor string) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "entity_created",
		OccurredAt: time.Now(),
		Refs:       refs(p.Collection, p.EntityID, actor),
		Summary:    fmt.Sprintf("Created %s %s", p.Collection, short(p.EntityID)),
		Category:   "registry",
		Weight:     "major",
		Actor:      actor,
		Payload:    mustJSON(p),
	}
}

func NewEntityUpdated(p EntityChangedPayload, actor string) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "entity_updated",
		OccurredAt: time.Now(),
		Refs:       refs(p.Collection, p.EntityID, actor),
		Summary:    fmt.Sprintf("Updated %s %s (%d fields)", p.Collection, short(p.EntityID), len(p.Fields)),
		Category:   "registry",
		Weight:     "minor",
		Actor:      actor,
		Payload:    mustJSON(p),
	}
}

// ── Form events ─────────────────────────────────────────────────────────────

// FormSubmittedPayload records the outcome of a form submission.
type FormSubmittedPayload struct {
	Form       string `json:"form"`
	Collection string `json:"collection"`
	EntityID   string `json:"entity_id"`
	SessionID  string `json:"session_id"`
	Status     int    `json:"status"`
	OK         bool   `json:"ok"`
}

func NewFormSubmitted(p FormSubmittedPayload, actor string) DomainEvent {
	weight, outcome := "info", "succeeded"
	if !p.OK {
		weight, outcome = "major", "failed"
	}
	return DomainEvent{
		ID:         newID(),
		EventType:  "form_submitted",
		OccurredAt: time.Now(),
		Refs:       refs(p.Collection, p.EntityID, actor),
		Summary:    fmt.Sprintf("Form %s %s with status %d", p.Form, outcome, p.Status),
		Category:   "form",
		Weight:     weight,
		Actor:      actor,
		Payload:    mustJSON(p),
	}
}

func refs(collection, id, actor string) []Ref {
	out := []Ref{{Collection: collection, ID: id, Role: "subject"}}
	if actor != "" {
		out = append(out, Ref{Collection: "managers", ID: actor, Role: "actor"})
	}
	return out
}
