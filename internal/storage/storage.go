// internal/storage/storage.go
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/demoview/tickpack/pkg/core"
	"github.com/demoview/tickpack/pkg/tickpack"
)

// Meta describes the source of an encoded demo.
type Meta struct {
	FileName       string
	SourceSize     int64
	EncodeDuration time.Duration
	EncodedAt      time.Time
	Tag            string
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Store persists one encoded demo. Calls are not concurrent.
	Store(ctx context.Context, state *tickpack.EncodedState, meta Meta) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the viewer server. Both methods describe the
// most recent Store.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// BaseName strips directories and the container extension from a demo file
// name.
func BaseName(fileName string) string {
	base := fileName[strings.LastIndexAny(fileName, `/\`)+1:]
	for _, ext := range []string{".tkss", ".dem"} {
		if len(base) > len(ext) && strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}
