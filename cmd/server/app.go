package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/agrodata/agroadmin/internal/activity"
	"github.com/agrodata/agroadmin/internal/apiclient"
	"github.com/agrodata/agroadmin/internal/config"
	"github.com/agrodata/agroadmin/internal/event"
	"github.com/agrodata/agroadmin/internal/eventbus"
	"github.com/agrodata/agroadmin/internal/formdef"
	"github.com/agrodata/agroadmin/internal/formsession"
	"github.com/agrodata/agroadmin/internal/metrics"
	"github.com/agrodata/agroadmin/internal/server"
	"github.com/agrodata/agroadmin/internal/store"
)

// app holds the long-lived services of a running server.
type app struct {
	router   http.Handler
	sessions *formsession.Manager
	bus      *eventbus.Bus
	closers  []func() error
}

// Close stops background work and releases the database.
func (a *app) Close() {
	a.sessions.CloseAll()
	a.bus.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

// openRepository opens the configured document store and ensures its schema.
func openRepository(ctx context.Context, db config.DatabaseConfig) (store.Repository, func() error, error) {
	if db.Driver == "memory" {
		return store.NewMemoryRepository(), func() error { return nil }, nil
	}
	repo, err := store.OpenSQL(ctx, db.Driver, db.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("migrating: %w", err)
	}
	return repo, repo.Close, nil
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	repo, closeRepo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	forms, err := formdef.Load()
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("loading form definitions: %w", err)
	}

	collector := metrics.New(cfg.Metrics.Namespace)

	bus := eventbus.New(cfg.Events.Buffer, log)
	bus.Subscribe("log", eventbus.NewLogConsumer(log))
	bus.Subscribe("metrics", collector)
	feed := activity.NewMemoryStore()
	bus.Subscribe("activity", activity.NewIndexer(feed))
	bus.Start(ctx)

	var events event.Recorder = event.NewPublishRecorder(bus)
	if cfg.Events.Audit {
		rec := event.NewStoreRecorder(repo)
		rec.SetPublisher(bus)
		events = rec
	}

	// Forms talk to the registry API when one is configured and to the local
	// store otherwise.
	var (
		stores  formsession.StoreProvider
		options store.OptionSource
	)
	if cfg.API.BaseURL != "" {
		client := apiclient.New(cfg.API.BaseURL,
			apiclient.WithHTTPClient(&http.Client{Timeout: cfg.GetAPITimeout()}),
			apiclient.WithLogger(log),
		)
		stores = client.Collection
		options = client
		log.Info("forms use remote registry", zap.String("base_url", cfg.API.BaseURL))
	} else {
		stores = func(collection string) store.EntityStore {
			return store.NewCollection(repo, collection)
		}
		options = store.NewCatalog(repo)
	}

	sessions := formsession.NewManager(formsession.Config{
		Forms:           forms,
		Stores:          stores,
		Options:         options,
		Recorder:        collector,
		Events:          events,
		Logger:          log,
		MaxAge:          cfg.GetSessionMaxAge(),
		IdleTimeout:     cfg.GetSessionIdle(),
		NavigationDelay: cfg.GetNavigationDelay(),
	})

	router := server.NewRouter(server.Deps{
		Repo:           repo,
		Forms:          forms,
		Sessions:       sessions,
		Metrics:        collector,
		Activity:       feed,
		Events:         events,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	return &app{
		router:   router,
		sessions: sessions,
		bus:      bus,
		closers:  []func() error{closeRepo},
	}, nil
}
