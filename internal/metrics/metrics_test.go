package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrodata/agroadmin/internal/event"
)

func TestCollector_FormCounters(t *testing.T) {
	c := New("test")

	c.Loaded("producer", nil)
	c.Loaded("producer", errors.New("boom"))
	c.Blocked("profile")
	c.Submitted("profile", 200, true)
	c.Submitted("profile", 500, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.formLoads.WithLabelValues("producer", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.formLoads.WithLabelValues("producer", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.formBlocked.WithLabelValues("profile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.formSubmits.WithLabelValues("profile", "500", "failure")))
}

func TestCollector_HandleEvent(t *testing.T) {
	c := New("test")
	evt := event.NewEntityCreated(event.EntityChangedPayload{Collection: "products", EntityID: "p1"}, "")
	require.NoError(t, c.HandleEvent(context.Background(), evt))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("entity_created", "registry")))
}

func TestCollector_MiddlewareAndHandler(t *testing.T) {
	c := New("test")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/v1/{collection}/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", c.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/products/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("/v1/{collection}/{id}", "GET", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_http_requests_total"))
}
