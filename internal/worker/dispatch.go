package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/demoview/tickpack/internal/influx"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/pkg/tickpack"
)

// Run encodes every job and stores the results. Each job gets its own
// encoder state; only the store loop touches the backend. Per-job failures
// are collected in the summary; the returned error is set only when ctx is
// canceled.
func (m *Manager) Run(ctx context.Context, jobs []Job) (Summary, error) {
	jobCh := make(chan Job)
	resultCh := make(chan Result, m.deps.Encoder.Workers)

	var wg sync.WaitGroup
	for id := 1; id <= m.deps.Encoder.Workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for job := range jobCh {
				resultCh <- m.encode(ctx, id, job)
			}
		}(id)
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var summary Summary
	for r := range resultCh {
		m.store(ctx, r, &summary)
	}

	summary.Failures = m.failures.Drain()
	return summary, ctx.Err()
}

// encode runs on a worker goroutine.
func (m *Manager) encode(ctx context.Context, id int, job Job) Result {
	r := Result{Job: job, Worker: id}

	raw, err := m.deps.ReadFile(job.Path)
	if err != nil {
		r.Err = err
		m.fail(ctx, job.Path, "read", err)
		return r
	}
	r.SourceSize = int64(len(raw))

	var progress tickpack.ProgressFunc
	if m.deps.Progress != nil {
		progress = func(percent int) error {
			m.deps.Progress(job.Path, percent)
			return nil
		}
	}

	start := time.Now()
	r.State, r.Err = tickpack.Encode(ctx, raw, progress, m.encodeOptions()...)
	r.Duration = time.Since(start)
	r.EncodedAt = time.Now()

	if r.Err != nil {
		m.fail(ctx, job.Path, "encode", r.Err)
		return r
	}
	m.deps.Logger.Debug("Encoded demo",
		"worker", id,
		"file", job.Path,
		"ticks", r.State.TickCount(),
		"duration", r.Duration)
	return r
}

// store runs on the Run goroutine only.
func (m *Manager) store(ctx context.Context, r Result, summary *Summary) {
	if r.Err != nil {
		m.writePoint(ctx, r)
		return
	}

	meta := storage.Meta{
		FileName:       r.Path,
		SourceSize:     r.SourceSize,
		EncodeDuration: r.Duration,
		EncodedAt:      r.EncodedAt,
		Tag:            r.Tag,
	}
	if err := m.deps.Backend.Store(ctx, r.State, meta); err != nil {
		r.Err = err
		m.fail(ctx, r.Path, "store", err)
		m.writePoint(ctx, r)
		return
	}
	summary.Stored++
	m.metrics.recordSuccess(ctx, r)
	m.writePoint(ctx, r)

	up, ok := m.deps.Backend.(storage.Uploadable)
	if !ok || m.deps.Uploader == nil {
		return
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return
	}
	if err := m.deps.Uploader.Upload(path, up.GetExportMetadata()); err != nil {
		m.fail(ctx, r.Path, "upload", err)
		return
	}
	summary.Uploaded++
	m.deps.Logger.Info("Uploaded demo", "file", r.Path, "export", path)
}

func (m *Manager) fail(ctx context.Context, path, stage string, err error) {
	m.deps.Logger.Error(fmt.Sprintf("Failed to %s demo", stage), "file", path, "error", err)
	m.failures.Push(Failure{Path: path, Stage: stage, Err: err})
	m.metrics.recordFailure(ctx, stage)
}

func (m *Manager) writePoint(ctx context.Context, r Result) {
	if m.deps.Points == nil {
		return
	}
	stats := influx.EncodeStats{
		FileName:    r.Path,
		Worker:      r.Worker,
		SourceBytes: r.SourceSize,
		Duration:    r.Duration,
		Failed:      r.Err != nil,
		At:          r.EncodedAt,
	}
	if r.State != nil {
		stats.MapName = r.State.MapName()
		stats.Server = r.State.Header().Server
		stats.Ticks = r.State.TickCount()
		stats.Players = r.State.PlayerCount()
		stats.Buildings = r.State.BuildingCount()
		stats.Kills = r.State.KillCount()
		stats.Bytes = r.State.Size()
	}
	if err := m.deps.Points.WritePoint(ctx, m.deps.Bucket, influx.EncodePoint(stats)); err != nil {
		m.deps.Logger.Warn("Failed to write metrics point", "file", r.Path, "error", err)
	}
}
