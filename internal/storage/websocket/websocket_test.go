package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demoview/tickpack/internal/config"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/internal/storage/storagetest"
	"github.com/demoview/tickpack/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// streamHandler handles one message on the n-th connection (from 1). stream
// is the stream id carried by start_demo and end_demo. Returning false drops
// the connection.
type streamHandler func(n int, c *ws.Conn, env streaming.Envelope, stream uint64) bool

// streamServer upgrades to WebSocket, records received messages and passes
// them to handle.
func streamServer(t *testing.T, handle streamHandler) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}
	var conns atomic.Int32

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()
		n := int(conns.Add(1))

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			var ids struct {
				Stream uint64 `json:"stream"`
			}
			_ = json.Unmarshal(env.Payload, &ids)
			if !handle(n, c, env, ids.Stream) {
				return
			}
		}
	}))

	return srv, ml
}

func writeAck(c *ws.Conn, ack streaming.AckMessage) bool {
	ack.Type = streaming.TypeAck
	data, _ := json.Marshal(ack)
	return c.WriteMessage(ws.TextMessage, data) == nil
}

// testServer acks start_demo and end_demo. rejectEnd makes the end_demo ack
// carry an error.
func testServer(t *testing.T, rejectEnd bool) (*httptest.Server, *messageLog) {
	return streamServer(t, func(_ int, c *ws.Conn, env streaming.Envelope, stream uint64) bool {
		if env.Type != streaming.TypeStartDemo && env.Type != streaming.TypeEndDemo {
			return true
		}
		ack := streaming.AckMessage{For: env.Type, Stream: stream}
		if rejectEnd && env.Type == streaming.TypeEndDemo {
			ack.Error = "size mismatch"
		}
		return writeAck(c, ack)
	})
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secret   string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestChunkCount(t *testing.T) {
	assert.Equal(t, 0, chunkCount(0, 10))
	assert.Equal(t, 1, chunkCount(10, 10))
	assert.Equal(t, 2, chunkCount(11, 10))
}

func TestStoreStreamsDemo(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv), Secret: "test", ChunkSize: 40}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	state := storagetest.Demo(t)
	require.NoError(t, b.Store(context.Background(), state, storagetest.Meta("match.tkss")))

	msgs := ml.all()
	chunks := chunkCount(state.Size(), 40)
	require.Len(t, msgs, chunks+2)
	assert.Equal(t, streaming.TypeStartDemo, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndDemo, msgs[len(msgs)-1].Type)

	var start streaming.StartDemoPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, "match.tkss", start.FileName)
	assert.Equal(t, "scrim", start.Tag)
	assert.Equal(t, state.Size(), start.Size)
	assert.Equal(t, chunks, start.Chunks)
	assert.Equal(t, "cp_process_final", start.Manifest.Map)

	var buf bytes.Buffer
	for i, env := range msgs[1 : len(msgs)-1] {
		require.Equal(t, streaming.TypeDemoChunk, env.Type)
		var chunk streaming.DemoChunkPayload
		require.NoError(t, json.Unmarshal(env.Payload, &chunk))
		assert.Equal(t, i, chunk.Seq)
		assert.Equal(t, buf.Len(), chunk.Offset)
		buf.Write(chunk.Data)
	}
	assert.Equal(t, state.Data(), buf.Bytes())

	ml.mu.Lock()
	assert.Equal(t, "test", ml.secret)
	ml.mu.Unlock()
}

func TestStoreStreamIDs(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	state := storagetest.Demo(t)
	require.NoError(t, b.Store(context.Background(), state, storagetest.Meta("a.tkss")))
	require.NoError(t, b.Store(context.Background(), state, storagetest.Meta("b.tkss")))

	var streams []uint64
	for _, env := range ml.all() {
		switch env.Type {
		case streaming.TypeStartDemo:
			var p streaming.StartDemoPayload
			require.NoError(t, json.Unmarshal(env.Payload, &p))
			streams = append(streams, p.Stream)
		case streaming.TypeEndDemo:
			var p streaming.EndDemoPayload
			require.NoError(t, json.Unmarshal(env.Payload, &p))
			streams = append(streams, p.Stream)
		}
	}
	assert.Equal(t, []uint64{1, 1, 2, 2}, streams)
}

func TestStoreIgnoresStaleAcks(t *testing.T) {
	srv, _ := streamServer(t, func(_ int, c *ws.Conn, env streaming.Envelope, stream uint64) bool {
		switch env.Type {
		case streaming.TypeStartDemo:
			// late failure of an earlier demo, then a duplicate start ack of it
			return writeAck(c, streaming.AckMessage{For: streaming.TypeEndDemo, Stream: stream - 1, Error: "late"}) &&
				writeAck(c, streaming.AckMessage{For: streaming.TypeStartDemo, Stream: stream - 1}) &&
				writeAck(c, streaming.AckMessage{For: streaming.TypeStartDemo, Stream: stream})
		case streaming.TypeEndDemo:
			return writeAck(c, streaming.AckMessage{For: streaming.TypeEndDemo, Stream: stream})
		}
		return true
	})
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv), AckTimeout: 5 * time.Second}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	state := storagetest.Demo(t)
	require.NoError(t, b.Store(context.Background(), state, storagetest.Meta("a.tkss")))
	require.NoError(t, b.Store(context.Background(), state, storagetest.Meta("b.tkss")))
}

func TestStoreFailsAfterReconnect(t *testing.T) {
	srv, ml := streamServer(t, func(n int, c *ws.Conn, env streaming.Envelope, stream uint64) bool {
		switch env.Type {
		case streaming.TypeDemoChunk:
			// the first socket dies mid-stream
			return n > 1
		case streaming.TypeStartDemo, streaming.TypeEndDemo:
			return writeAck(c, streaming.AckMessage{For: env.Type, Stream: stream})
		}
		return true
	})
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv), ChunkSize: 40, AckTimeout: 5 * time.Second}, nil)
	b.conn.backoff = 10 * time.Millisecond
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.Store(context.Background(), storagetest.Demo(t), storagetest.Meta("match.tkss"))
	require.ErrorIs(t, err, ErrInterrupted)

	assert.Eventually(t, func() bool {
		starts := 0
		for _, env := range ml.all() {
			if env.Type == streaming.TypeStartDemo {
				starts++
			}
		}
		return starts == 2
	}, 2*time.Second, 10*time.Millisecond, "start_demo is resent on the new socket")
}

func TestStoreRejected(t *testing.T) {
	srv, _ := testServer(t, true)
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.Store(context.Background(), storagetest.Demo(t), storagetest.Meta("match.tkss"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")
}

func TestStoreAckTimeout(t *testing.T) {
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv), AckTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.Store(context.Background(), storagetest.Demo(t), storagetest.Meta("match.tkss"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for ack")
}

func TestStoreAfterClose(t *testing.T) {
	srv, _ := testServer(t, false)
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	err := b.Store(context.Background(), storagetest.Demo(t), storagetest.Meta("match.tkss"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInitDialFailure(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "ws://127.0.0.1:1/stream"}, nil)
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial failed")
}

func TestNextBackoff(t *testing.T) {
	d := time.Second
	var got []time.Duration
	for i := 0; i < 7; i++ {
		d = nextBackoff(d)
		got = append(got, d)
	}
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		maxBackoff, maxBackoff, maxBackoff,
	}, got)
}
