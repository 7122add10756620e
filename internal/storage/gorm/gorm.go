// Package gormstorage stores encoded demos through GORM. Demo rows are
// written synchronously inside Store; encode timings are queued and drained
// by a background writer.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/demoview/tickpack/internal/model"
	"github.com/demoview/tickpack/internal/queue"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/pkg/tickpack"
	"gorm.io/gorm"
)

// ErrNoDB is returned by Store when the backend has no database.
var ErrNoDB = errors.New("no database connection")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger

	// PathEvery is the tick stride of stored player paths
	PathEvery int
	// FlushInterval is how often queued timings are written
	FlushInterval time.Duration
}

// Backend implements storage.Backend on top of a GORM connection.
type Backend struct {
	deps         Dependencies
	performances *queue.Queue[model.EncodePerformance]

	stopChan chan struct{}
	done     sync.WaitGroup
	closed   bool
}

// New creates a new GORM storage backend. The caller owns the connection.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.PathEvery < 1 {
		deps.PathEvery = 66
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = 2 * time.Second
	}
	return &Backend{
		deps:         deps,
		performances: queue.New[model.EncodePerformance](),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init starts the background writer. Schema migration is done by the
// database manager before the backend is created.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})
	b.done.Add(1)
	go b.writeLoop()
	return nil
}

// Close stops the background writer and flushes whatever is still queued.
func (b *Backend) Close() error {
	if b.closed || b.stopChan == nil {
		return nil
	}
	b.closed = true
	close(b.stopChan)
	b.done.Wait()
	b.flush()
	return nil
}

// Store writes the demo with its players and kills in one transaction.
func (b *Backend) Store(ctx context.Context, state *tickpack.EncodedState, meta storage.Meta) error {
	if b.deps.DB == nil {
		return ErrNoDB
	}

	demo, err := demoFromState(state, meta, b.deps.PathEvery)
	if err != nil {
		return err
	}

	err = b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&demo).Error
	})
	if err != nil {
		return fmt.Errorf("failed to store demo %s: %w", meta.FileName, err)
	}

	b.performances.Push(performanceFromState(demo.ID, state, meta))
	b.deps.Logger.Debug("Stored demo",
		"file", meta.FileName,
		"demoId", demo.ID,
		"players", len(demo.Players),
		"kills", len(demo.Kills))
	return nil
}

// Pending returns the number of queued timing rows.
func (b *Backend) Pending() int {
	return b.performances.Len()
}

func (b *Backend) writeLoop() {
	defer b.done.Done()

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}

// flush writes all queued timings in a transaction. Failed items go back on
// the queue.
func (b *Backend) flush() {
	if b.deps.DB == nil {
		return
	}
	writeQueue(b.deps.DB, b.performances, "encode performances", b.deps.Logger)
}

func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) {
	if q.Len() == 0 {
		return
	}

	items := q.Drain()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		log.Error("Error creating "+name, "error", err, "count", len(items))
		q.Requeue(items...)
		return
	}
	log.Debug("Wrote "+name, "count", len(items))
}
