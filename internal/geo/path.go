package geo

import (
	"github.com/demoview/tickpack/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Outline returns the closed ring around w, starting and ending at Min.
func Outline(w core.WorldBounds) geom.LineString {
	flat := []float64{
		float64(w.Min.X), float64(w.Min.Y),
		float64(w.Max.X), float64(w.Min.Y),
		float64(w.Max.X), float64(w.Max.Y),
		float64(w.Min.X), float64(w.Max.Y),
		float64(w.Min.X), float64(w.Min.Y),
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// Path builds a line through positions, dropping consecutive duplicates.
// Fewer than two distinct positions give an empty line.
func Path(positions []core.Vector2) geom.LineString {
	flat := make([]float64, 0, len(positions)*2)
	var last core.Vector2
	for i, p := range positions {
		if i > 0 && p == last {
			continue
		}
		flat = append(flat, float64(p.X), float64(p.Y))
		last = p
	}
	if len(flat) < 4 {
		return geom.LineString{}
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// PathLength returns the number of vertices in a path.
func PathLength(ls geom.LineString) int {
	return ls.Coordinates().Length()
}
