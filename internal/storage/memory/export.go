// internal/storage/memory/export.go
package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/internal/util"
	"github.com/demoview/tickpack/pkg/core"
	"github.com/demoview/tickpack/pkg/tickpack"
	"github.com/klauspost/compress/zstd"
)

// ExportVersion is bumped whenever the manifest layout changes
const ExportVersion = 1

// DemoExport is the root JSON structure written next to the data file
type DemoExport struct {
	Version     int               `json:"version"`
	SourceFile  string            `json:"sourceFile"`
	ExportedAt  time.Time         `json:"exportedAt"`
	EncodeMs    int64             `json:"encodeMs"`
	DataFile    string            `json:"dataFile"`
	Compression string            `json:"compression"`
	Manifest    tickpack.Manifest `json:"manifest"`
}

// exportName builds a file system safe base name for a demo
func exportName(meta storage.Meta) string {
	name := util.SanitizeFileName(storage.BaseName(meta.FileName))
	stamp := meta.EncodedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	return fmt.Sprintf("%s_%s", name, stamp.UTC().Format("20060102_150405"))
}

// exportDemo writes the manifest and the data file for one demo
func (b *Backend) exportDemo(state *tickpack.EncodedState, meta storage.Meta) error {
	base := exportName(meta)

	compression := "none"
	dataName := base + ".bin"
	if b.cfg.CompressOutput {
		compression = "zstd"
		dataName += ".zst"
	}

	dataPath := filepath.Join(b.cfg.OutputDir, dataName)
	manifestPath := filepath.Join(b.cfg.OutputDir, base+".json")

	if err := writeData(dataPath, state.Data(), b.cfg.CompressOutput); err != nil {
		return err
	}

	export := DemoExport{
		Version:     ExportVersion,
		SourceFile:  meta.FileName,
		ExportedAt:  time.Now().UTC(),
		EncodeMs:    meta.EncodeDuration.Milliseconds(),
		DataFile:    dataName,
		Compression: compression,
		Manifest:    state.Manifest(),
	}
	if err := writeJSON(manifestPath, export); err != nil {
		return err
	}

	b.lastExportPath = dataPath
	b.lastMeta = core.UploadMetadata{
		FileName:     dataName,
		MapName:      state.MapName(),
		Server:       state.Header().Server,
		Duration:     state.Header().Duration,
		TickCount:    state.TickCount(),
		PlayerCount:  state.PlayerCount(),
		Tag:          meta.Tag,
		ManifestPath: manifestPath,
	}
	return nil
}

func writeJSON(path string, data DemoExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func writeData(path string, data []byte, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if compress {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		if _, err := enc.Write(data); err != nil {
			_ = enc.Close()
			return fmt.Errorf("failed to write data: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to finish zstd stream: %w", err)
		}
	} else if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return w.Flush()
}

// ReadData loads a data file written by the exporter, decompressing it when
// the name ends in .zst.
func ReadData(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		return io.ReadAll(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

// ReadExport loads a manifest written by the exporter
func ReadExport(path string) (DemoExport, error) {
	var export DemoExport
	raw, err := os.ReadFile(path)
	if err != nil {
		return export, err
	}
	if err := json.Unmarshal(raw, &export); err != nil {
		return export, fmt.Errorf("failed to parse export: %w", err)
	}
	return export, nil
}
