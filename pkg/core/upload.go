// pkg/core/upload.go
package core

// UploadMetadata describes an exported demo for the viewer server.
type UploadMetadata struct {
	FileName     string
	MapName      string
	Server       string
	Duration     float32
	TickCount    int
	PlayerCount  int
	Tag          string
	ManifestPath string
}
