// Package sqlitestorage implements the storage.Backend interface using an
// in-memory SQLite database that is dumped to disk via VACUUM INTO. It wraps
// the GORM backend and only adds the database lifecycle and the dumps.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/demoview/tickpack/internal/database"
	gormstorage "github.com/demoview/tickpack/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpPath     string        // target of VACUUM INTO, empty disables dumps
	DumpInterval time.Duration // zero dumps only on Close
	PathEvery    int
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *database.Manager
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates the in-memory database and migrates the schema.
func New(cfg Config, log *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}

	db := database.NewManager(dbLog)
	if err := db.ConnectSqlite(""); err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	// one connection keeps the shared in-memory database alive and serialized
	db.SqlDB.SetMaxOpenConns(1)
	if err := db.Setup(); err != nil {
		_ = db.Close()
		return nil, err
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:        db.DB,
		Logger:    log,
		PathEvery: cfg.PathEvery,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, flushes the GORM backend, writes a final
// dump and closes the database.
func (b *Backend) Close() error {
	close(b.stopChan)
	b.wg.Wait()

	if err := b.Backend.Close(); err != nil {
		return err
	}

	var dumpErr error
	if b.cfg.DumpPath != "" {
		dumpErr = b.db.DumpToDisk(b.cfg.DumpPath)
	}
	if err := b.db.Close(); err != nil {
		return err
	}
	return dumpErr
}

// dumpLoop periodically dumps the in-memory database to disk. VACUUM INTO
// takes a point-in-time snapshot, so writes do not need to pause.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.db.DumpToDisk(b.cfg.DumpPath); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
