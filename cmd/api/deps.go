package main

import (
	"context"

	"github.com/charmbracelet/log"

	"todoapp/internal/domain/todo"
	"todoapp/internal/infrastructure/invalidation"
	"todoapp/internal/infrastructure/postgres/listener"
	"todoapp/internal/infrastructure/store"
	httphandlers "todoapp/internal/interfaces/http"
	"todoapp/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	Store  *store.Store
	Broker *invalidation.Broker

	// Set when the postgres invalidation listener runs
	Listener *listener.InvalidationListener

	// Handlers
	TodoHandler   *httphandlers.TodoHandler
	WatchHandler  *httphandlers.WatchHandler
	HealthHandler *httphandlers.HealthHandler
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	broker := invalidation.NewBroker()

	// Local subscribers hear about our own writes straight from the broker.
	// With postgres, other instances hear them through NOTIFY.
	var invalidator todo.Invalidator = broker
	var invListener *listener.InvalidationListener
	if st.Notifier != nil {
		invalidator = invalidation.Fanout{broker, st.Notifier}

		if cfg.Invalidation.Listen {
			invListener = listener.NewInvalidationListener(st.ConnString(), cfg.Invalidation.Channel, broker)
			invListener.Start(ctx)
		}
	}

	todoService := todo.NewService(st.Repo, invalidator)

	return &Dependencies{
		Store:         st,
		Broker:        broker,
		Listener:      invListener,
		TodoHandler:   httphandlers.NewTodoHandler(todoService),
		WatchHandler:  httphandlers.NewWatchHandler(broker),
		HealthHandler: httphandlers.NewHealthHandler(st.Ping),
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Listener != nil {
		d.Listener.Stop()
	}
	if d.Broker != nil {
		d.Broker.Close()
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			log.Error("Error closing database", "err", err)
		}
	}
}
