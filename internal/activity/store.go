package activity

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agrodata/agroadmin/internal/event"
)

// Entry is one event as seen from one entity it references.
type Entry struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Collection string      `json:"collection"`
	EntityID   string      `json:"entity_id"`
	Role       string      `json:"role"`
	Refs       []event.Ref `json:"refs"`
	Summary    string      `json:"summary"`
	Category   string      `json:"category"`
	Weight     string      `json:"weight"`
	Actor      string      `json:"actor,omitempty"`
}

// Store reads and writes activity entries.
type Store interface {
	WriteEntries(ctx context.Context, entries []Entry) error
	QueryByEntity(ctx context.Context, collection, id string, opts QueryOptions) (entries []Entry, nextCursor string, total int, err error)
	Search(ctx context.Context, query string, opts SearchOptions) (entries []Entry, total int, err error)
}

// MemoryStore implements Store with an in-memory slice. Entries live as long
// as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) WriteEntries(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *MemoryStore) QueryByEntity(_ context.Context, collection, id string, opts QueryOptions) ([]Entry, string, int, error) {
	after, hasCursor := parseCursor(opts.Cursor)

	s.mu.RLock()
	var matched []Entry
	for _, e := range s.entries {
		if e.Collection != collection || e.EntityID != id {
			continue
		}
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.OccurredAt.After(*opts.Until) {
			continue
		}
		if len(opts.Categories) > 0 && !slices.Contains(opts.Categories, e.Category) {
			continue
		}
		if opts.MinWeight != "" && !AtLeast(e.Weight, opts.MinWeight) {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	newestFirst(matched)
	total := len(matched)
	if hasCursor {
		i := sort.Search(len(matched), func(i int) bool { return before(matched[i], after) })
		matched = matched[i:]
	}
	limit := opts.Limit
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	var next string
	if len(matched) > limit {
		matched = matched[:limit]
		next = cursorOf(matched[len(matched)-1])
	}
	return matched, next, total, nil
}

func (s *MemoryStore) Search(_ context.Context, query string, opts SearchOptions) ([]Entry, int, error) {
	q := strings.ToLower(query)

	s.mu.RLock()
	var matched []Entry
	seen := make(map[string]bool)
	for _, e := range s.entries {
		if !strings.Contains(strings.ToLower(e.Summary), q) {
			continue
		}
		if opts.Collection != "" && e.Collection != opts.Collection {
			continue
		}
		if opts.Since != nil && e.OccurredAt.Before(*opts.Since) {
			continue
		}
		if len(opts.Categories) > 0 && !slices.Contains(opts.Categories, e.Category) {
			continue
		}
		// One hit per event when no collection narrows the search.
		if opts.Collection == "" {
			if seen[e.EventID] {
				continue
			}
			seen[e.EventID] = true
		}
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	newestFirst(matched)
	total := len(matched)
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// newestFirst orders by OccurredAt descending, then EventID descending, so
// entries sharing a timestamp still have a total order for paging.
func newestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return before(entries[j], entries[i])
	})
}

// before reports whether a is older than b.
func before(a, b Entry) bool {
	if !a.OccurredAt.Equal(b.OccurredAt) {
		return a.OccurredAt.Before(b.OccurredAt)
	}
	return a.EventID < b.EventID
}

// cursorOf encodes the position of e as "<occurred_at>|<event_id>".
func cursorOf(e Entry) string {
	return e.OccurredAt.Format(time.RFC3339Nano) + "|" + e.EventID
}

func parseCursor(c string) (Entry, bool) {
	if c == "" {
		return Entry{}, false
	}
	ts, id, _ := strings.Cut(c, "|")
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Entry{}, false
	}
	return Entry{OccurredAt: t, EventID: id}, true
}
