package record

import (
	"encoding/binary"

	"github.com/demoview/tickpack/internal/quant"
	"github.com/demoview/tickpack/pkg/core"
)

// BuildingType is the kind of building as stored in a record.
type BuildingType uint8

const (
	TeleporterEntrance BuildingType = iota
	TeleporterExit
	Dispenser
	Level1Sentry
	Level2Sentry
	Level3Sentry
	MiniSentry
	UnknownBuilding
)

func (t BuildingType) String() string {
	switch t {
	case TeleporterEntrance:
		return "TeleporterEntrance"
	case TeleporterExit:
		return "TeleporterExit"
	case Dispenser:
		return "Dispenser"
	case Level1Sentry:
		return "Level1Sentry"
	case Level2Sentry:
		return "Level2Sentry"
	case Level3Sentry:
		return "Level3Sentry"
	case MiniSentry:
		return "MiniSentry"
	default:
		return "Unknown"
	}
}

// BuildingTypeOf derives the record type from the source building variant.
func BuildingTypeOf(b core.Building) BuildingType {
	switch b.Kind {
	case core.KindSentry:
		if b.IsMini {
			return MiniSentry
		}
		switch b.Level {
		case 1:
			return Level1Sentry
		case 2:
			return Level2Sentry
		case 3:
			return Level3Sentry
		}
	case core.KindDispenser:
		return Dispenser
	case core.KindTeleporter:
		if b.IsEntrance {
			return TeleporterEntrance
		}
		return TeleporterExit
	}
	return UnknownBuilding
}

// Building is the quantized state of one building for one tick.
type Building struct {
	Position core.Vector2
	Angle    quant.Angle
	Health   uint16
	Team     core.Team
	Type     BuildingType
	Level    uint8
}

// BuildingFromState converts a snapshot building into a record.
func BuildingFromState(b core.Building) Building {
	return Building{
		Position: b.Position,
		Angle:    quant.AngleFromDegrees(b.Angle),
		Health:   b.Health & MaxHealth,
		Team:     b.Team,
		Type:     BuildingTypeOf(b),
		Level:    b.Level,
	}
}

// PackBuilding encodes b relative to world. The record has a single team
// bit: blue is 0, every other team is stored as red.
func PackBuilding(b Building, world core.WorldBounds) [BuildingSize]byte {
	var out [BuildingSize]byte
	packXY(out[:], b.Position, world)

	var team uint16 = 1
	if b.Team == core.TeamBlue {
		team = 0
	}
	levelTeamTypeHealth := uint16(b.Level&0x3)<<14 | team<<13 | uint16(b.Type&0x7)<<10 | b.Health&MaxHealth
	binary.LittleEndian.PutUint16(out[4:6], levelTeamTypeHealth)
	out[6] = uint8(b.Angle)
	return out
}

// UnpackBuilding decodes a record produced by PackBuilding.
func UnpackBuilding(raw [BuildingSize]byte, world core.WorldBounds) Building {
	levelTeamTypeHealth := binary.LittleEndian.Uint16(raw[4:6])
	team := core.TeamRed
	if levelTeamTypeHealth>>13&1 == 0 {
		team = core.TeamBlue
	}
	return Building{
		Position: unpackXY(raw[:], world),
		Angle:    quant.Angle(raw[6]),
		Health:   levelTeamTypeHealth & MaxHealth,
		Team:     team,
		Type:     BuildingType(levelTeamTypeHealth >> 10 & 0x7),
		Level:    uint8(levelTeamTypeHealth >> 14),
	}
}
