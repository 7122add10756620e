// pkg/core/building.go
package core

// BuildingKind is the variant of an engineer building.
type BuildingKind uint8

const (
	KindUnknown BuildingKind = iota
	KindSentry
	KindDispenser
	KindTeleporter
)

// Building is one engineer building in a snapshot. Sentry-only and
// teleporter-only fields are ignored for the other kinds.
type Building struct {
	Kind     BuildingKind `msgpack:"kind"`
	Position Vector2      `msgpack:"position"`
	Angle    float32      `msgpack:"angle"`
	Health   uint16       `msgpack:"health"`
	Team     Team         `msgpack:"team"`
	Level    uint8        `msgpack:"level"`

	// sentry
	IsMini bool `msgpack:"isMini"`

	// teleporter
	IsEntrance bool `msgpack:"isEntrance"`
}
