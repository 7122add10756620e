package source

import (
	"bytes"
	"fmt"
	"io"

	"github.com/demoview/tickpack/pkg/core"
	"github.com/vmihailenco/msgpack/v5"
)

// Writer produces a container. Close must be called to flush the body.
type Writer struct {
	body io.WriteCloser
	enc  *msgpack.Encoder
}

// NewWriter writes the container prefix and header to w.
func NewWriter(w io.Writer, codec Codec, header core.Header) (*Writer, error) {
	if err := writePrefix(w, codec); err != nil {
		return nil, fmt.Errorf("write prefix: %w", err)
	}
	body, err := bodyWriter(w, codec)
	if err != nil {
		return nil, err
	}

	enc := msgpack.NewEncoder(body)
	if err := enc.Encode(&header); err != nil {
		_ = body.Close()
		return nil, fmt.Errorf("encode header: %w", err)
	}
	return &Writer{body: body, enc: enc}, nil
}

// Write appends one snapshot.
func (w *Writer) Write(snap *core.Snapshot) error {
	if err := w.enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot %d: %w", snap.Tick, err)
	}
	return nil
}

// Close flushes the body compressor. The underlying writer is left open.
func (w *Writer) Close() error {
	return w.body.Close()
}

// Marshal encodes a whole demo into a container.
func Marshal(codec Codec, header core.Header, snaps []*core.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, codec, header)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if err := w.Write(snap); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
