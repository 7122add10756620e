package record

import (
	"encoding/binary"

	"github.com/demoview/tickpack/internal/quant"
	"github.com/demoview/tickpack/pkg/core"
)

// Player is the quantized state of one player for one tick.
type Player struct {
	Position core.Vector2
	Angle    quant.Angle
	Health   uint16
	Team     core.Team
	Class    core.Class
	Charge   uint8
}

// PlayerFromState converts a snapshot player into a record. Players the
// source does not report as alive get zero health, and health is truncated
// to what the record can hold.
func PlayerFromState(s core.PlayerState) Player {
	health := s.Health & MaxHealth
	if !s.Alive() {
		health = 0
	}
	return Player{
		Position: s.Position,
		Angle:    quant.AngleFromDegrees(s.ViewAngle),
		Health:   health,
		Team:     s.Team,
		Class:    s.Class,
		Charge:   s.Charge,
	}
}

// PackPlayer encodes p relative to world.
func PackPlayer(p Player, world core.WorldBounds) [PlayerSize]byte {
	var out [PlayerSize]byte
	packXY(out[:], p.Position, world)

	teamClassHealth := uint16(p.Team&0x3)<<14 | uint16(p.Class&0xf)<<10 | p.Health&MaxHealth
	binary.LittleEndian.PutUint16(out[4:6], teamClassHealth)
	out[6] = uint8(p.Angle)
	out[7] = p.Charge
	return out
}

// UnpackPlayer decodes a record produced by PackPlayer.
func UnpackPlayer(b [PlayerSize]byte, world core.WorldBounds) Player {
	teamClassHealth := binary.LittleEndian.Uint16(b[4:6])
	return Player{
		Position: unpackXY(b[:], world),
		Angle:    quant.Angle(b[6]),
		Health:   teamClassHealth & MaxHealth,
		Team:     core.Team(teamClassHealth >> 14),
		Class:    core.Class(teamClassHealth >> 10 & 0xf),
		Charge:   b[7],
	}
}
