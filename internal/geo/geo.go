package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/livepid/tracker/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// GEO POINTS
// Tiles are stored as XYZ points with the plane in Z. Geometry values are
// written as WKB, which both SQLite and Postgres keep as plain bytes.

// ErrInvalidPoint is returned when a geometry does not hold a tile coordinate.
var ErrInvalidPoint = errors.New("invalid tile point")

// TilePoint converts a tile coordinate into a 3D point.
func TilePoint(p core.WorldPoint) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: float64(p.X), Y: float64(p.Y)},
		Z:    float64(p.Plane),
		Type: geom.DimXYZ,
	})
}

// WorldPointFromGeom converts a stored point back into a tile coordinate.
func WorldPointFromGeom(pt geom.Point) (core.WorldPoint, error) {
	c, ok := pt.Coordinates()
	if !ok {
		return core.WorldPoint{}, ErrInvalidPoint
	}
	if !isWhole(c.X) || !isWhole(c.Y) || !isWhole(c.Z) {
		return core.WorldPoint{}, fmt.Errorf("%w: non-integer coordinate %v", ErrInvalidPoint, c)
	}
	return core.WorldPoint{X: int(c.X), Y: int(c.Y), Plane: int(c.Z)}, nil
}

// Segment builds the attacker-to-victim line for one attack.
func Segment(from, to core.WorldPoint) geom.LineString {
	seq := geom.NewSequence([]float64{
		float64(from.X), float64(from.Y), float64(from.Plane),
		float64(to.X), float64(to.Y), float64(to.Plane),
	}, geom.DimXYZ)
	return geom.NewLineString(seq)
}

// ChebyshevLength is the tile distance covered by a segment, ignoring the plane.
func ChebyshevLength(ls geom.LineString) int {
	seq := ls.Coordinates()
	if seq.Length() < 2 {
		return 0
	}
	a, b := seq.GetXY(0), seq.GetXY(seq.Length()-1)
	return int(math.Max(math.Abs(a.X-b.X), math.Abs(a.Y-b.Y)))
}

func isWhole(f float64) bool {
	return f == math.Trunc(f)
}
