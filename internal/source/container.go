// Package source reads and writes the raw tick-stream container produced by
// the replay decoder.
//
// A container is the magic "TKSS", a version byte, a codec byte and a body.
// The body, after decompression, is a msgpack stream holding one core.Header
// followed by core.Snapshot values until the end of input.
package source

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	Magic   = "TKSS"
	Version = 1

	prefixSize = len(Magic) + 2
)

var (
	ErrBadMagic           = errors.New("not a tick stream container")
	ErrUnsupportedVersion = errors.New("unsupported container version")
	ErrUnsupportedCodec   = errors.New("unsupported container codec")
)

// Codec is the compression applied to the container body.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
	CodecGzip
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecGzip:
		return "gzip"
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// ParseCodec maps a config value to a Codec.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "gzip":
		return CodecGzip, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
}

// readPrefix consumes the container prefix and returns the body codec.
func readPrefix(r io.Reader) (Codec, error) {
	var prefix [prefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrBadMagic
		}
		return 0, err
	}
	if string(prefix[:len(Magic)]) != Magic {
		return 0, ErrBadMagic
	}
	if v := prefix[len(Magic)]; v != Version {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	codec := Codec(prefix[len(Magic)+1])
	if codec > CodecGzip {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
	return codec, nil
}

func writePrefix(w io.Writer, codec Codec) error {
	prefix := append([]byte(Magic), Version, byte(codec))
	_, err := w.Write(prefix)
	return err
}

// bodyReader wraps r with the decompressor for codec.
func bodyReader(r io.Reader, codec Codec) (io.Reader, func(), error) {
	switch codec {
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec, dec.Close, nil
	case CodecGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	}
	return r, func() {}, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// bodyWriter wraps w with the compressor for codec. Closing the result
// flushes the compressor but leaves w open.
func bodyWriter(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, nil
	case CodecGzip:
		return gzip.NewWriter(w), nil
	case CodecNone:
		return nopWriteCloser{w}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
}
