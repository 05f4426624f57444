package activity

import (
	"context"

	"github.com/agrodata/agroadmin/internal/event"
)

// Indexer consumes domain events and writes one entry per referenced entity.
// It is subscribed to the event bus.
type Indexer struct {
	store Store
}

// NewIndexer creates an indexer writing to store.
func NewIndexer(store Store) *Indexer {
	return &Indexer{store: store}
}

// HandleEvent indexes evt.
func (idx *Indexer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return idx.store.WriteEntries(ctx, Entries(evt))
}

// Entries fans evt out to its referenced entities, skipping duplicates and
// refs without an id.
func Entries(evt event.DomainEvent) []Entry {
	category, weight := evt.Category, evt.Weight
	if category == "" {
		category = "registry"
	}
	if weight == "" {
		weight = "info"
	}

	var out []Entry
	seen := make(map[string]bool)
	for _, ref := range evt.Refs {
		key := ref.Collection + ":" + ref.ID
		if ref.ID == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Entry{
			EventID:    evt.ID,
			EventType:  evt.EventType,
			OccurredAt: evt.OccurredAt,
			Collection: ref.Collection,
			EntityID:   ref.ID,
			Role:       ref.Role,
			Refs:       evt.Refs,
			Summary:    evt.Summary,
			Category:   category,
			Weight:     weight,
			Actor:      evt.Actor,
		})
	}
	return out
}
