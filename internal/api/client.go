// internal/api/client.go
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/demoview/tickpack/pkg/core"
)

// UploadPath is the endpoint exported demos are posted to.
const UploadPath = "/api/v1/demos/add"

// Client handles communication with the demo viewer web server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the web server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload sends an exported record buffer, and its manifest when
// meta.ManifestPath is set, to the web server.
func (c *Client) Upload(filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var manifest *os.File
	if meta.ManifestPath != "" {
		manifest, err = os.Open(meta.ManifestPath)
		if err != nil {
			return fmt.Errorf("failed to open manifest: %w", err)
		}
		defer manifest.Close()
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// Write form fields and files in goroutine
	errCh := make(chan error, 1)
	go func() {
		err := writeForm(writer, c.apiKey, filePath, file, manifest, meta)
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
		errCh <- err
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+UploadPath, pr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return nil
}

func writeForm(w *multipart.Writer, secret, filePath string, file, manifest *os.File, meta core.UploadMetadata) error {
	fileName := meta.FileName
	if fileName == "" {
		fileName = filepath.Base(filePath)
	}

	fields := [][2]string{
		{"secret", secret},
		{"filename", fileName},
		{"mapName", meta.MapName},
		{"server", meta.Server},
		{"duration", strconv.FormatFloat(float64(meta.Duration), 'f', 3, 32)},
		{"tickCount", strconv.Itoa(meta.TickCount)},
		{"playerCount", strconv.Itoa(meta.PlayerCount)},
		{"tag", meta.Tag},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}

	if manifest == nil {
		return nil
	}
	part, err = w.CreateFormFile("manifest", filepath.Base(meta.ManifestPath))
	if err != nil {
		return fmt.Errorf("failed to create manifest form file: %w", err)
	}
	if _, err := io.Copy(part, manifest); err != nil {
		return fmt.Errorf("failed to copy manifest: %w", err)
	}
	return nil
}
