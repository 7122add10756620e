package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/demoview/tickpack/internal/config"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/pkg/streaming"
	"github.com/demoview/tickpack/pkg/tickpack"
)

const (
	defaultChunkSize  = 64 * 1024
	defaultAckTimeout = 10 * time.Second
)

// ErrInterrupted is returned by Store when the socket was replaced while
// the demo was streaming, so chunks may have been lost.
var ErrInterrupted = errors.New("websocket reconnected during demo stream")

// Backend streams encoded demos over WebSocket to a viewer server.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn    *connection
	cfg     config.WebSocketConfig
	streams atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// chunkCount is the number of demo_chunk messages for size bytes
func chunkCount(size, chunkSize int) int {
	return (size + chunkSize - 1) / chunkSize
}

// Store sends start_demo, the record buffer in chunks and end_demo. Both
// start_demo and end_demo must be acked by the server for this demo's
// stream id. A socket failure after start_demo was acked fails the store
// with ErrInterrupted.
func (b *Backend) Store(ctx context.Context, state *tickpack.EncodedState, meta storage.Meta) error {
	data := state.Data()
	chunks := chunkCount(len(data), b.cfg.ChunkSize)
	stream := b.streams.Add(1)

	start, err := marshalEnvelope(streaming.TypeStartDemo, streaming.StartDemoPayload{
		Stream:   stream,
		FileName: meta.FileName,
		Tag:      meta.Tag,
		Size:     len(data),
		Chunks:   chunks,
		Manifest: state.Manifest(),
	})
	if err != nil {
		return err
	}

	b.conn.drainAcks()
	b.conn.setStart(start)
	defer b.conn.setStart(nil)

	if err := b.conn.sendAndWait(ctx, start, streaming.TypeStartDemo, stream, nil, b.cfg.AckTimeout); err != nil {
		return err
	}
	lost := b.conn.lostSignal()

	for seq := 0; seq < chunks; seq++ {
		offset := seq * b.cfg.ChunkSize
		end := min(offset+b.cfg.ChunkSize, len(data))
		msg, err := marshalEnvelope(streaming.TypeDemoChunk, streaming.DemoChunkPayload{
			Seq:    seq,
			Offset: offset,
			Data:   data[offset:end],
		})
		if err != nil {
			return err
		}
		if err := b.conn.send(ctx, msg, lost); err != nil {
			return fmt.Errorf("%s: %w", meta.FileName, err)
		}
	}

	end, err := marshalEnvelope(streaming.TypeEndDemo, streaming.EndDemoPayload{
		Stream:   stream,
		FileName: meta.FileName,
		Size:     len(data),
		Chunks:   chunks,
	})
	if err != nil {
		return err
	}
	if err := b.conn.sendAndWait(ctx, end, streaming.TypeEndDemo, stream, lost, b.cfg.AckTimeout); err != nil {
		return fmt.Errorf("%s: %w", meta.FileName, err)
	}
	return nil
}
