// Package streaming defines the messages of the demo streaming protocol. A
// demo is sent as start_demo, any number of demo_chunk messages and end_demo.
// The server acks start_demo and end_demo, echoing the stream id of the
// demo.
package streaming

import (
	"encoding/json"

	"github.com/demoview/tickpack/pkg/tickpack"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartDemo = "start_demo"
	TypeDemoChunk = "demo_chunk"
	TypeEndDemo   = "end_demo"
	TypeAck       = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type   string `json:"type"`   // always "ack"
	For    string `json:"for"`    // the message type being acknowledged
	Stream uint64 `json:"stream"` // stream id of the acknowledged demo
	Error  string `json:"error,omitempty"`
}

// StartDemoPayload announces a demo and its layout.
type StartDemoPayload struct {
	Stream   uint64            `json:"stream"`
	FileName string            `json:"fileName"`
	Tag      string            `json:"tag,omitempty"`
	Size     int               `json:"size"`
	Chunks   int               `json:"chunks"`
	Manifest tickpack.Manifest `json:"manifest"`
}

// DemoChunkPayload carries one slice of the record buffer. Data is base64
// in JSON.
type DemoChunkPayload struct {
	Seq    int    `json:"seq"`
	Offset int    `json:"offset"`
	Data   []byte `json:"data"`
}

// EndDemoPayload closes a demo.
type EndDemoPayload struct {
	Stream   uint64 `json:"stream"`
	FileName string `json:"fileName"`
	Size     int    `json:"size"`
	Chunks   int    `json:"chunks"`
}
