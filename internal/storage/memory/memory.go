// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/demoview/tickpack/internal/config"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/pkg/core"
	"github.com/demoview/tickpack/pkg/tickpack"
)

// DemoRecord is one stored demo
type DemoRecord struct {
	Meta  storage.Meta
	State *tickpack.EncodedState
}

// Backend keeps encoded demos in memory and exports each one to disk as a
// JSON manifest plus a binary record buffer
type Backend struct {
	cfg config.MemoryConfig

	demos map[string]*DemoRecord // keyed by file name
	order []string

	lastExportPath string
	lastMeta       core.UploadMetadata

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:   cfg,
		demos: make(map[string]*DemoRecord),
	}
}

// Init creates the output directory
func (b *Backend) Init() error {
	if b.cfg.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.demos = make(map[string]*DemoRecord)
	b.order = nil
	return nil
}

// Store keeps the demo and, when an output directory is configured, exports
// it.
func (b *Backend) Store(ctx context.Context, state *tickpack.EncodedState, meta storage.Meta) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.demos[meta.FileName]; !ok {
		b.order = append(b.order, meta.FileName)
	}
	b.demos[meta.FileName] = &DemoRecord{Meta: meta, State: state}

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportDemo(state, meta)
}

// Get returns a stored demo by file name
func (b *Backend) Get(fileName string) (*DemoRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.demos[fileName]
	return rec, ok
}

// FileNames returns the stored file names in store order
func (b *Backend) FileNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]string(nil), b.order...)
}

// GetExportedFilePath returns the data file of the last export
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.lastExportPath
}

// GetExportMetadata returns the upload metadata of the last export
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.lastMeta
}
