// Package tickpack encodes a demo tick stream into a flat, fixed-stride byte
// buffer suited for random-access playback.
package tickpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/demoview/tickpack/internal/aggregator"
	"github.com/demoview/tickpack/internal/progress"
	"github.com/demoview/tickpack/internal/source"
)

// TickSource yields the snapshots of one demo in tick order.
type TickSource = source.TickSource

// ProgressFunc receives the whole percentage of demo ticks processed. It is
// called with strictly increasing values. Its errors and panics are ignored.
type ProgressFunc func(percent int) error

type options struct {
	logger      *slog.Logger
	sampleEvery int
	stableSlots bool
}

// Option configures an encode.
type Option func(*options)

// WithLogger sets the logger used for encode diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSampleEvery builds records from every n-th snapshot of the stream.
// Records are still produced for every demo tick, and kills and identities
// of the snapshots in between are kept.
func WithSampleEvery(n int) Option {
	return func(o *options) {
		o.sampleEvery = n
	}
}

// WithStableSlots assigns slots by entity id instead of by position.
func WithStableSlots(enabled bool) Option {
	return func(o *options) {
		o.stableSlots = enabled
	}
}

// Encode decodes a raw tick-stream container and encodes it.
func Encode(ctx context.Context, raw []byte, fn ProgressFunc, opts ...Option) (*EncodedState, error) {
	r, err := source.NewBytesReader(raw)
	if err != nil {
		return nil, &SourceDecodeError{Err: err}
	}
	defer r.Close()
	return EncodeSource(ctx, r, fn, opts...)
}

// EncodeSource consumes src until it is exhausted and returns the encoded
// state. The stream is read once; any source failure aborts the encode.
func EncodeSource(ctx context.Context, src TickSource, fn ProgressFunc, opts ...Option) (*EncodedState, error) {
	o := options{sampleEvery: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	header := src.Header()
	if header.Ticks > maxTicks {
		return nil, &SourceDecodeError{
			Err: fmt.Errorf("%w: header has %d ticks", ErrTickOutOfRange, header.Ticks),
		}
	}
	src = source.Sample(src, o.sampleEvery)

	var aggOpts []aggregator.Option
	if o.stableSlots {
		aggOpts = append(aggOpts, aggregator.WithStableSlots())
	}
	agg := aggregator.New(header, aggOpts...)

	var report progress.Func
	if fn != nil {
		report = progress.Func(fn)
	}
	reporter := progress.New(report, header.Ticks, o.logger)

	limit := tickLimit(header.Ticks)
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &SourceDecodeError{Tick: agg.LastTick(), Err: err}
		}

		if snap != nil && snap.Tick > limit {
			return nil, &SourceDecodeError{
				Tick: agg.LastTick(),
				Err:  fmt.Errorf("%w: %d (demo has %d ticks)", ErrTickOutOfRange, snap.Tick, header.Ticks),
			}
		}

		changes := agg.WorldChanges()
		applied, err := agg.Push(snap)
		if err != nil {
			return nil, err
		}
		if !applied {
			skipped++
			o.logger.Debug("Skipping snapshot without world bounds", "tick", snap.Tick)
			continue
		}
		if agg.WorldChanges() > changes {
			o.logger.Warn("World bounds changed, keeping first bounds", "tick", snap.Tick, "world", *snap.World)
		}
		reporter.Update(agg.LastTick())
	}

	agg.Finish()
	if _, ok := agg.World(); !ok {
		return nil, ErrMissingWorld
	}

	state := flatten(agg)
	o.logger.Debug("Encoded demo",
		"map", header.Map,
		"ticks", state.TickCount(),
		"players", state.PlayerCount(),
		"buildings", state.BuildingCount(),
		"kills", state.KillCount(),
		"skipped", skipped,
		"bytes", state.Size())
	return state, nil
}
