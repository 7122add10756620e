// Package record packs one entity's state for one tick into a fixed number
// of little-endian bytes.
//
// Player (8 bytes):
//
//	[0:2) x  [2:4) y  [4:6) health(10) | class(4) << 10 | team(2) << 14  [6] angle  [7] charge
//
// Building (7 bytes):
//
//	[0:2) x  [2:4) y  [4:6) health(10) | type(3) << 10 | team(1) << 13 | level(2) << 14  [6] angle
package record

import (
	"encoding/binary"

	"github.com/demoview/tickpack/internal/quant"
	"github.com/demoview/tickpack/pkg/core"
)

const (
	// PlayerSize is the number of bytes per player per tick.
	PlayerSize = 8
	// BuildingSize is the number of bytes per building per tick.
	BuildingSize = 7

	// MaxHealth is the largest health value a record can hold.
	MaxHealth = 1<<10 - 1
)

func packXY(dst []byte, pos core.Vector2, world core.WorldBounds) {
	binary.LittleEndian.PutUint16(dst[0:2], quant.Quantize16(pos.X, world.Min.X, world.Max.X))
	binary.LittleEndian.PutUint16(dst[2:4], quant.Quantize16(pos.Y, world.Min.Y, world.Max.Y))
}

func unpackXY(src []byte, world core.WorldBounds) core.Vector2 {
	return core.Vector2{
		X: quant.Dequantize16(binary.LittleEndian.Uint16(src[0:2]), world.Min.X, world.Max.X),
		Y: quant.Dequantize16(binary.LittleEndian.Uint16(src[2:4]), world.Min.Y, world.Max.Y),
	}
}
