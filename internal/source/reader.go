package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/demoview/tickpack/pkg/core"
	"github.com/vmihailenco/msgpack/v5"
)

// TickSource yields the snapshots of one demo in tick order. Next returns
// io.EOF once the demo is exhausted.
type TickSource interface {
	Header() core.Header
	Next() (*core.Snapshot, error)
}

// Reader decodes a container into snapshots.
type Reader struct {
	header core.Header
	codec  Codec
	dec    *msgpack.Decoder
	close  func()
	read   int
}

// NewReader reads the container prefix and the demo header from r.
func NewReader(r io.Reader) (*Reader, error) {
	codec, err := readPrefix(r)
	if err != nil {
		return nil, err
	}

	body, closeBody, err := bodyReader(r, codec)
	if err != nil {
		return nil, err
	}

	dec := msgpack.NewDecoder(bufio.NewReaderSize(body, 64*1024))
	var header core.Header
	if err := dec.Decode(&header); err != nil {
		closeBody()
		return nil, fmt.Errorf("decode header: %w", unexpected(err))
	}

	return &Reader{
		header: header,
		codec:  codec,
		dec:    dec,
		close:  closeBody,
	}, nil
}

// NewBytesReader is NewReader over an in-memory container.
func NewBytesReader(raw []byte) (*Reader, error) {
	return NewReader(bytes.NewReader(raw))
}

// Header returns the demo header.
func (r *Reader) Header() core.Header {
	return r.header
}

// Codec returns the body compression of the container.
func (r *Reader) Codec() Codec {
	return r.codec
}

// Next decodes the next snapshot. It returns io.EOF at a clean end of the
// stream and io.ErrUnexpectedEOF if the stream stops inside a snapshot.
func (r *Reader) Next() (*core.Snapshot, error) {
	if _, err := r.dec.PeekCode(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("snapshot %d: %w", r.read, err)
	}

	snap := new(core.Snapshot)
	if err := r.dec.Decode(snap); err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", r.read, unexpected(err))
	}
	r.read++
	return snap, nil
}

// Close releases the decompressor.
func (r *Reader) Close() {
	r.close()
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
