package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/demoview/tickpack/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Game world positions are stored as planar XY geometries in WKB. There is
// no spatial reference: the unit is the game's world unit.

// ErrInvalidBounds is returned when a bounds string cannot be parsed or
// describes an empty box.
var ErrInvalidBounds = errors.New("invalid world bounds provided")

// PointFromVector converts a world position into a point.
func PointFromVector(v core.Vector2) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: float64(v.X), Y: float64(v.Y)},
			Type: geom.DimXY,
		},
	)
}

// VectorFromPoint converts a point back to a world position. It reports
// false for an empty point.
func VectorFromPoint(p geom.Point) (core.Vector2, bool) {
	coords, ok := p.Coordinates()
	if !ok {
		return core.Vector2{}, false
	}
	return core.Vector2{X: float32(coords.X), Y: float32(coords.Y)}, true
}

// BoundsPoints returns the min and max corners of w as points.
func BoundsPoints(w core.WorldBounds) (lo, hi geom.Point) {
	return PointFromVector(w.Min), PointFromVector(w.Max)
}

// BoundsFromPoints rebuilds world bounds from stored corner points.
func BoundsFromPoints(lo, hi geom.Point) (core.WorldBounds, error) {
	minV, ok := VectorFromPoint(lo)
	if !ok {
		return core.WorldBounds{}, ErrInvalidBounds
	}
	maxV, ok := VectorFromPoint(hi)
	if !ok {
		return core.WorldBounds{}, ErrInvalidBounds
	}
	return core.WorldBounds{Min: minV, Max: maxV}, nil
}

// ParseBounds parses "minX,minY,maxX,maxY" into world bounds.
func ParseBounds(s string) (core.WorldBounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.WorldBounds{}, ErrInvalidBounds
	}
	var vals [4]float32
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return core.WorldBounds{}, ErrInvalidBounds
		}
		vals[i] = float32(v)
	}
	w := core.WorldBounds{
		Min: core.Vector2{X: vals[0], Y: vals[1]},
		Max: core.Vector2{X: vals[2], Y: vals[3]},
	}
	if w.Max.X <= w.Min.X || w.Max.Y <= w.Min.Y {
		return core.WorldBounds{}, ErrInvalidBounds
	}
	return w, nil
}

// Contains reports whether v lies inside w, edges included.
func Contains(w core.WorldBounds, v core.Vector2) bool {
	return v.X >= w.Min.X && v.X <= w.Max.X && v.Y >= w.Min.Y && v.Y <= w.Max.Y
}
