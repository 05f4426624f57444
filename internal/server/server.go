// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/activity"
	"github.com/agrodata/agroadmin/internal/event"
	"github.com/agrodata/agroadmin/internal/formdef"
	"github.com/agrodata/agroadmin/internal/formsession"
	"github.com/agrodata/agroadmin/internal/handler"
	"github.com/agrodata/agroadmin/internal/metrics"
	"github.com/agrodata/agroadmin/internal/store"
	"github.com/agrodata/agroadmin/internal/wire"
)

// Deps are the services the routes are served from.
type Deps struct {
	Repo     store.Repository
	Forms    *formdef.Registry
	Sessions *formsession.Manager
	Metrics  *metrics.Collector
	// Activity serves entity activity feeds; nil disables the routes.
	Activity activity.Store
	// Events records entity writes; nil disables recording.
	Events         event.Recorder
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewRouter registers every route.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handler.Recovery(log))
	r.Use(handler.RequestLogger(log.Named("http")))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	eh := handler.NewEntityHandler(d.Repo, d.Events, log)
	ch := handler.NewCatalogHandler(d.Forms)
	sh := handler.NewSessionHandler(d.Sessions, log)
	ws := wire.NewHandler(d.Sessions, log, d.AllowedOrigins)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/enums", ch.Enums)

		r.Route("/forms", func(r chi.Router) {
			r.Get("/", ch.Forms)
			r.Get("/{form}", ch.Form)
			r.Post("/{form}/sessions", sh.Create)
			r.Route("/sessions/{sid}", func(r chi.Router) {
				r.Get("/", sh.Get)
				r.Delete("/", sh.Delete)
				r.Patch("/fields", sh.SetField)
				r.Post("/submit", sh.Submit)
				r.Post("/reload", sh.Reload)
				r.Get("/events", sh.Events)
				r.Get("/ws", ws.ServeHTTP)
			})
		})

		if d.Activity != nil {
			ah := handler.NewActivityHandler(d.Activity)
			r.Get("/activity", ah.Search)
			r.Get("/{collection}/{id}/activity", ah.Entity)
		}

		r.Get("/{collection}", eh.List)
		r.Post("/{collection}", eh.Create)
		r.Get("/{collection}/{id}", eh.Get)
		r.Put("/{collection}/{id}", eh.Update)
	})

	return r
}

// Config holds server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
	Handler         http.Handler
	Logger          *zap.Logger
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           cfg.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		cfg.Logger.Info("starting server", zap.String("addr", addr))
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
