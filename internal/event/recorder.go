// Package event provides domain event recording for write paths.
// Events are appended to the audit collection of a store.Repository, then
// published to the in-process event bus for downstream consumers.
package event

import (
	"context"
	"encoding/json"

	"github.com/agrodata/agroadmin/internal/store"
)

// AuditCollection holds recorded events.
const AuditCollection = "events"

// Recorder writes domain events.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// StoreRecorder implements Recorder by appending each event as a document
// of AuditCollection. If a Publisher is set, the event is also published
// after the write succeeds.
type StoreRecorder struct {
	repo store.Repository
	bus  Publisher
}

// NewStoreRecorder creates a recorder backed by repo.
func NewStoreRecorder(repo store.Repository) *StoreRecorder {
	return &StoreRecorder{repo: repo}
}

// SetPublisher attaches an event bus. Events are published after store writes.
func (r *StoreRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

func (r *StoreRecorder) Record(ctx context.Context, evt DomainEvent) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if _, err := r.repo.Create(ctx, AuditCollection, doc, evt.Actor); err != nil {
		return err
	}
	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}

// PublishRecorder implements Recorder by publishing only. It serves
// deployments that keep no audit trail but still feed the event bus.
type PublishRecorder struct {
	bus Publisher
}

// NewPublishRecorder creates a recorder that hands every event to p.
func NewPublishRecorder(p Publisher) *PublishRecorder {
	return &PublishRecorder{bus: p}
}

func (r *PublishRecorder) Record(ctx context.Context, evt DomainEvent) error {
	r.bus.Publish(ctx, evt)
	return nil
}
