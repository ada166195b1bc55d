// Package store opens the configured todo repository.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"

	"todoapp/internal/domain/todo"
	"todoapp/internal/infrastructure/postgres"
	"todoapp/internal/infrastructure/sqlite"
	"todoapp/internal/shared/config"
)

// Store bundles a repository with the handles needed to run it.
type Store struct {
	Driver string
	Repo   todo.Repository

	// Notifier publishes invalidations to other processes sharing the
	// database. Nil for sqlite.
	Notifier todo.Invalidator

	pg       *postgres.DB
	sqliteDB *sql.DB
	connStr  string
}

// Open connects to the database selected by cfg.Database.Driver.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("opened sqlite database", "path", cfg.Database.SQLitePath)
		return &Store{
			Driver:   config.DriverSQLite,
			Repo:     sqlite.NewTodoRepository(db),
			sqliteDB: db,
		}, nil

	case config.DriverPostgres:
		connStr := cfg.Database.ConnectionString()
		db, err := postgres.New(connStr, postgres.PoolOptions{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		log.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)
		return &Store{
			Driver:   config.DriverPostgres,
			Repo:     postgres.NewTodoRepository(db),
			Notifier: postgres.NewNotifier(db, cfg.Invalidation.Channel),
			pg:       db,
			connStr:  connStr,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s.pg != nil {
		return postgres.Migrate(ctx, s.pg)
	}
	return sqlite.Migrate(ctx, s.sqliteDB)
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.pg != nil {
		return s.pg.Ping(ctx)
	}
	return s.sqliteDB.PingContext(ctx)
}

// ConnString returns the postgres connection string, or "" for sqlite.
func (s *Store) ConnString() string {
	return s.connStr
}

func (s *Store) Close() error {
	if s.pg != nil {
		return s.pg.Close()
	}
	return s.sqliteDB.Close()
}
