// Package quant converts between floating point domains and fixed-width
// unsigned integers by linear min-max scaling.
package quant

import "math"

// maxCode returns 2^bits - 1.
func maxCode(bits uint) float32 {
	return float32(uint64(1)<<bits - 1)
}

// Quantize maps value in [lo, hi] onto [0, 2^bits-1], truncating toward
// zero. Values outside [lo, hi] are not clamped; the caller guarantees the
// range.
func Quantize(value, lo, hi float32, bits uint) uint32 {
	// every intermediate is rounded to float32
	ratio := float32(float32(value-lo) / float32(hi-lo))
	return uint32(float32(ratio * maxCode(bits)))
}

// Dequantize is the inverse of Quantize.
func Dequantize(code uint32, lo, hi float32, bits uint) float32 {
	ratio := float32(float32(code) / maxCode(bits))
	return float32(ratio*float32(hi-lo)) + lo
}

// Step is the size of one quantization step for the given range and width.
// Round trip error is bounded by it.
func Step(lo, hi float32, bits uint) float64 {
	return (float64(hi) - float64(lo)) / float64(maxCode(bits))
}

// Quantize16 is Quantize for a 16 bit code.
func Quantize16(value, lo, hi float32) uint16 {
	return uint16(Quantize(value, lo, hi, 16))
}

// Dequantize16 is Dequantize for a 16 bit code.
func Dequantize16(code uint16, lo, hi float32) float32 {
	return Dequantize(uint32(code), lo, hi, 16)
}

// Angle is a view angle quantized to one byte.
type Angle uint8

// AngleFromDegrees reduces deg into [0, 360) and quantizes it. Negative
// angles wrap around instead of being truncated.
func AngleFromDegrees(deg float32) Angle {
	d := math.Mod(float64(deg), 360)
	if d < 0 {
		d += 360
	}
	return Angle(Quantize(float32(d), 0, 360, 8))
}

// Degrees reconstructs the angle in degrees.
func (a Angle) Degrees() float32 {
	return Dequantize(uint32(a), 0, 360, 8)
}
