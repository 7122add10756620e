// pkg/core/events.go
package core

import "math"

// NoAssister is the assister id of a kill nobody assisted.
const NoAssister uint16 = math.MaxUint16

// Kill is a player death reported by the tick source.
type Kill struct {
	Tick       uint32 `msgpack:"tick" json:"tick"`
	AttackerID uint16 `msgpack:"attacker" json:"attacker"`
	AssisterID uint16 `msgpack:"assister" json:"assister"`
	VictimID   uint16 `msgpack:"victim" json:"victim"`
	Weapon     string `msgpack:"weapon" json:"weapon"`
}

// HasAssister reports whether someone assisted the kill.
func (k Kill) HasAssister() bool {
	return k.AssisterID != NoAssister
}
