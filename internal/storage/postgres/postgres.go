// Package postgres implements the storage.Backend interface on PostgreSQL
// with PostGIS geometry columns.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/demoview/tickpack/internal/config"
	"github.com/demoview/tickpack/internal/database"
	"github.com/demoview/tickpack/internal/storage"
	gormstorage "github.com/demoview/tickpack/internal/storage/gorm"
	"github.com/demoview/tickpack/pkg/tickpack"
	"github.com/rs/zerolog"
)

// Backend owns a Postgres connection and stores demos through the GORM
// backend.
type Backend struct {
	*gormstorage.Backend
	cfg   config.DBConfig
	log   *slog.Logger
	db    *database.Manager
	every int
}

// New creates a Postgres backend. The connection is opened by Init.
func New(cfg config.DBConfig, pathEvery int, log *slog.Logger, dbLog zerolog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		cfg:   cfg,
		log:   log,
		db:    database.NewManager(dbLog),
		every: pathEvery,
	}
}

// Init connects, enables PostGIS, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if err := b.db.ConnectPostgres(b.cfg); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := b.db.Setup(); err != nil {
		_ = b.db.Close()
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:        b.db.DB,
		Logger:    b.log,
		PathEvery: b.every,
	})
	return b.Backend.Init()
}

// Close flushes queued rows and closes the connection.
func (b *Backend) Close() error {
	if b.Backend != nil {
		if err := b.Backend.Close(); err != nil {
			return err
		}
	}
	return b.db.Close()
}

// Store writes the demo. It fails with gormstorage.ErrNoDB before Init.
func (b *Backend) Store(ctx context.Context, state *tickpack.EncodedState, meta storage.Meta) error {
	if b.Backend == nil {
		return gormstorage.ErrNoDB
	}
	return b.Backend.Store(ctx, state, meta)
}

// Valid reports whether the connection was established.
func (b *Backend) Valid() bool {
	return b.db.IsValid
}
