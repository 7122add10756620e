// Package worker encodes batches of demo files on a pool of goroutines and
// hands the results to a storage backend from a single store loop.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/demoview/tickpack/internal/config"
	"github.com/demoview/tickpack/internal/queue"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/pkg/core"
	"github.com/demoview/tickpack/pkg/tickpack"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.opentelemetry.io/otel/metric"
)

// ErrNoBackend is returned by NewManager without a storage backend.
var ErrNoBackend = errors.New("worker: no storage backend")

// Uploader sends an exported file to the viewer server.
type Uploader interface {
	Upload(filePath string, meta core.UploadMetadata) error
}

// PointWriter receives one metrics point per demo.
type PointWriter interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend storage.Backend
	Encoder config.EncoderConfig

	// optional
	Uploader      Uploader
	Points        PointWriter
	Bucket        string
	Logger        *slog.Logger
	MeterProvider metric.MeterProvider
	Progress      func(path string, percent int)
	ReadFile      func(path string) ([]byte, error)
}

// Job is one demo file to encode.
type Job struct {
	Path string
	Tag  string
}

// Result is the outcome of encoding one job.
type Result struct {
	Job
	Worker     int
	State      *tickpack.EncodedState
	SourceSize int64
	Duration   time.Duration
	EncodedAt  time.Time
	Err        error
}

// Failure records why a job did not make it into storage.
type Failure struct {
	Path  string
	Stage string // read, encode, store or upload
	Err   error
}

// Summary describes a finished batch.
type Summary struct {
	Stored   int
	Uploaded int
	Failures []Failure
}

// Manager manages worker goroutines
type Manager struct {
	deps     Dependencies
	metrics  *metrics
	failures *queue.Queue[Failure]
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Backend == nil {
		return nil, ErrNoBackend
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ReadFile == nil {
		deps.ReadFile = os.ReadFile
	}
	if deps.Encoder.Workers < 1 {
		deps.Encoder.Workers = 1
	}
	if deps.Encoder.SampleEvery < 1 {
		deps.Encoder.SampleEvery = 1
	}

	m, err := newMetrics(deps.MeterProvider)
	if err != nil {
		return nil, err
	}
	return &Manager{
		deps:     deps,
		metrics:  m,
		failures: queue.New[Failure](),
	}, nil
}

func (m *Manager) encodeOptions() []tickpack.Option {
	return []tickpack.Option{
		tickpack.WithLogger(m.deps.Logger),
		tickpack.WithSampleEvery(m.deps.Encoder.SampleEvery),
		tickpack.WithStableSlots(m.deps.Encoder.StableSlots),
	}
}
