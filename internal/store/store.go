// Package store persists entity documents and adapts them to the form
// engine's EntityStore contract.
package store

import (
	"context"
	"errors"
	"maps"
	"net/http"

	"github.com/agrodata/agroadmin/internal/form"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned by Create when the collection already holds the id.
	ErrExists = errors.New("document already exists")
)

// Document is a JSON entity. The "id" key holds its identifier.
type Document map[string]any

// ID returns the document id.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Clone copies the top level of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// UpdateResult is the outcome of an update call as seen by a form.
type UpdateResult struct {
	Status int      `json:"status"`
	Data   Document `json:"data,omitempty"`
}

// OK reports a 2xx status, the single success convention for updates.
func (r UpdateResult) OK() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}

// EntityStore is what an edit form talks to: fetch one entity, update it.
type EntityStore interface {
	GetByID(ctx context.Context, id string) (Document, error)
	// Update returns an error only when no status could be obtained
	// (transport failure). Non-2xx statuses are reported in the result.
	Update(ctx context.Context, id string, fields Document, actor string) (UpdateResult, error)
}

// OptionSource loads the choices of catalog-backed fields.
type OptionSource interface {
	Options(ctx context.Context, collection string) ([]form.Option, error)
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

// Repository persists documents grouped in collections.
type Repository interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, page Page) ([]Document, error)
	Create(ctx context.Context, collection string, doc Document, actor string) (Document, error)
	// Update merges the top-level keys of fields into the stored document.
	Update(ctx context.Context, collection, id string, fields Document, actor string) (Document, error)
}
