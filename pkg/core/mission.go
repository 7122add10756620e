// pkg/core/mission.go
package core

// Header describes the demo as a whole. It is produced once by the tick source
// before the first snapshot.
type Header struct {
	Map      string  `msgpack:"map" json:"map"`
	Server   string  `msgpack:"server" json:"server"`
	Nick     string  `msgpack:"nick" json:"nick"`
	Ticks    uint32  `msgpack:"ticks" json:"ticks"`
	Duration float32 `msgpack:"duration" json:"duration"` // seconds
}

// Vector2 is a point in world space, ignoring height.
type Vector2 struct {
	X float32 `msgpack:"x" json:"x"`
	Y float32 `msgpack:"y" json:"y"`
}

// WorldBounds is the bounding box that contains every position in a demo.
// All position quantization is relative to these bounds.
type WorldBounds struct {
	Min Vector2 `msgpack:"min" json:"boundary_min"`
	Max Vector2 `msgpack:"max" json:"boundary_max"`
}

// Snapshot is the state of the game at one demo tick, as produced by the
// tick source.
type Snapshot struct {
	Tick      uint32              `msgpack:"tick"`
	World     *WorldBounds        `msgpack:"world"`
	Players   []PlayerState       `msgpack:"players"`
	Buildings map[uint32]Building `msgpack:"buildings"`
	Kills     []Kill              `msgpack:"kills"`
}
