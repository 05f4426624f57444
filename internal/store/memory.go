package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements Repository with in-memory maps.
// Intended for demos and testing; no database required.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
	// order remembers insertion order per collection for stable listing.
	order map[string][]string
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs:  make(map[string]map[string]Document),
		order: make(map[string][]string),
	}
}

// deepCopy isolates stored documents from callers.
func deepCopy(d Document) (Document, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MemoryRepository) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return deepCopy(d)
}

func (m *MemoryRepository) List(_ context.Context, collection string, page Page) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.order[collection]
	out := []Document{}
	for i, id := range ids {
		if i < page.Offset {
			continue
		}
		if page.Limit > 0 && len(out) >= page.Limit {
			break
		}
		d, err := deepCopy(m.docs[collection][id])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryRepository) Create(_ context.Context, collection string, doc Document, actor string) (Document, error) {
	d, err := deepCopy(doc)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = Document{}
	}
	if d.ID() == "" {
		d["id"] = uuid.New().String()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	d["createdBy"], d["updatedBy"] = actor, actor
	d["createdAt"], d["updatedAt"] = now, now

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[collection][d.ID()]; exists {
		return nil, fmt.Errorf("%s/%s: %w", collection, d.ID(), ErrExists)
	}
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]Document)
	}
	m.order[collection] = append(m.order[collection], d.ID())
	m.docs[collection][d.ID()] = d
	return deepCopy(d)
}

func (m *MemoryRepository) Update(_ context.Context, collection, id string, fields Document, actor string) (Document, error) {
	patch, err := deepCopy(fields)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	merged := mergeDocument(d, patch, actor)
	m.docs[collection][id] = merged
	return deepCopy(merged)
}

// mergeDocument applies patch over d, keeping identity and creation stamps.
func mergeDocument(d, patch Document, actor string) Document {
	merged := d.Clone()
	for k, v := range patch {
		switch k {
		case "id", "createdBy", "createdAt":
			continue
		}
		merged[k] = v
	}
	merged["updatedBy"] = actor
	merged["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
	return merged
}
