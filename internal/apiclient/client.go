// Package apiclient talks to the registry REST API. It provides the
// EntityStore and OptionSource a form uses when the data lives on a remote
// server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/form"
	"github.com/agrodata/agroadmin/internal/store"
)

// pageSize matches the server's page_size ceiling.
const pageSize = 100

// StatusError is a non-2xx response to a read.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.Status, e.Body)
}

// Client is a REST client for /v1/{collection}.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/v1/" + strings.Join(escaped, "/")
}

// Get fetches one document. A 404 is reported as store.ErrNotFound.
func (c *Client) Get(ctx context.Context, collection, id string) (store.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(collection, id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var doc store.Document
	if err := c.doRead(req, &doc); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// List fetches one page of a collection.
func (c *Client) List(ctx context.Context, collection string, page store.Page) ([]store.Document, error) {
	q := url.Values{}
	if page.Limit > 0 {
		q.Set("page_size", strconv.Itoa(page.Limit))
	}
	if page.Offset > 0 {
		q.Set("offset", strconv.Itoa(page.Offset))
	}
	u := c.url(collection)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var docs []store.Document
	if err := c.doRead(req, &docs); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}

// Update sends fields with PUT on behalf of actor. Any HTTP response,
// including an error status, is a result; only transport failures are
// returned as errors.
func (c *Client) Update(ctx context.Context, collection, id string, fields store.Document, actor string) (store.UpdateResult, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url(collection, id), bytes.NewReader(body))
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", actor)

	resp, err := c.http.Do(req)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	defer resp.Body.Close()

	res := store.UpdateResult{Status: resp.StatusCode}
	if !res.OK() {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Debug("update rejected",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", b))
		return res, nil
	}
	var doc store.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err == nil {
		res.Data = doc
	}
	return res, nil
}

// Options loads every document of collection as options, paging through
// the list endpoint.
func (c *Client) Options(ctx context.Context, collection string) ([]form.Option, error) {
	var all []store.Document
	for offset := 0; ; offset += pageSize {
		docs, err := c.List(ctx, collection, store.Page{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
		if len(docs) < pageSize {
			break
		}
	}
	return store.DocumentsToOptions(all, "name"), nil
}

// Collection returns an EntityStore over one collection.
func (c *Client) Collection(name string) store.EntityStore {
	return &collection{client: c, name: name}
}

func (c *Client) doRead(req *http.Request, v any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return store.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type collection struct {
	client *Client
	name   string
}

func (c *collection) GetByID(ctx context.Context, id string) (store.Document, error) {
	return c.client.Get(ctx, c.name, id)
}

func (c *collection) Update(ctx context.Context, id string, fields store.Document, actor string) (store.UpdateResult, error) {
	return c.client.Update(ctx, c.name, id, fields, actor)
}
