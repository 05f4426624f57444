package store

import (
	"context"
	"errors"
	"net/http"

	"github.com/agrodata/agroadmin/internal/form"
)

// Collection adapts one collection of a Repository to EntityStore,
// translating repository errors into the status codes the REST API would
// return for the same call.
type Collection struct {
	repo Repository
	name string
}

// NewCollection returns an EntityStore over repo's collection name.
func NewCollection(repo Repository, name string) *Collection {
	return &Collection{repo: repo, name: name}
}

func (c *Collection) GetByID(ctx context.Context, id string) (Document, error) {
	return c.repo.Get(ctx, c.name, id)
}

func (c *Collection) Update(ctx context.Context, id string, fields Document, actor string) (UpdateResult, error) {
	doc, err := c.repo.Update(ctx, c.name, id, fields, actor)
	switch {
	case err == nil:
		return UpdateResult{Status: http.StatusOK, Data: doc}, nil
	case errors.Is(err, ErrNotFound):
		return UpdateResult{Status: http.StatusNotFound}, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return UpdateResult{}, err
	}
	return UpdateResult{Status: http.StatusInternalServerError}, nil
}

// Catalog serves collection documents as options: the id is the value and
// the labelKey field ("name" by default) is the label.
type Catalog struct {
	repo     Repository
	labelKey string
}

// NewCatalog returns an OptionSource over repo.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo, labelKey: "name"}
}

func (c *Catalog) Options(ctx context.Context, collection string) ([]form.Option, error) {
	docs, err := c.repo.List(ctx, collection, Page{Limit: maxOptions})
	if err != nil {
		return nil, err
	}
	return DocumentsToOptions(docs, c.labelKey), nil
}

// maxOptions bounds a catalog load.
const maxOptions = 1000

// DocumentsToOptions maps documents to options, skipping those without a label.
func DocumentsToOptions(docs []Document, labelKey string) []form.Option {
	out := make([]form.Option, 0, len(docs))
	for _, d := range docs {
		label, _ := d[labelKey].(string)
		if d.ID() == "" || label == "" {
			continue
		}
		out = append(out, form.Option{Value: d.ID(), Label: label})
	}
	return out
}
