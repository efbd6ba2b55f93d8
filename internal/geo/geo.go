// Package geo implements the planar (2d) and spherical (2dsphere) geometry
// primitives spec.md §4.6 needs: point/box/polygon/center containment,
// GeoJSON parsing, and great-circle distance. The engine favors a correct
// linear-scan implementation over an optimized one — spec.md §4.6 says as
// much explicitly ("must be correct, not optimal").
package geo

import "math"

// EarthRadiusKM is the sphere radius MongoDB uses for 2dsphere radian
// conversions (spec.md §4.6).
const EarthRadiusKM = 6378.1

// Point is a planar or unprojected (lon, lat) coordinate pair.
type Point struct {
	X, Y float64 // X=lon, Y=lat for GeoJSON; X,Y for legacy 2d pairs
}

// PlanarDistance is the Euclidean distance between two legacy 2d points.
func PlanarDistance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// HaversineMeters returns the great-circle distance between two (lon, lat)
// points in metres, using Earth radius 6378.1km (spec.md Glossary).
func HaversineMeters(a, b Point) float64 {
	const toRad = math.Pi / 180
	lat1, lat2 := a.Y*toRad, b.Y*toRad
	dLat := (b.Y - a.Y) * toRad
	dLon := (b.X - a.X) * toRad

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKM * 1000 * c
}

// PointInPolygon reports whether pt lies inside the planar polygon
// described by ring (a closed or open list of vertices), using the
// standard ray-casting algorithm.
func PointInPolygon(pt Point, ring []Point) bool {
	inside := false
	n := len(ring)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi.Y > pt.Y) != (pj.Y > pt.Y) &&
			pt.X < (pj.X-pi.X)*(pt.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
	}
	return inside
}

// InBox reports whether pt lies within the axis-aligned rectangle defined
// by its two opposite corners.
func InBox(pt, lo, hi Point) bool {
	minX, maxX := math.Min(lo.X, hi.X), math.Max(lo.X, hi.X)
	minY, maxY := math.Min(lo.Y, hi.Y), math.Max(lo.Y, hi.Y)
	return pt.X >= minX && pt.X <= maxX && pt.Y >= minY && pt.Y <= maxY
}

// InCenter reports whether pt lies within radius of center, using planar
// Euclidean distance ($center) — used by 2d $geoWithin.
func InCenter(pt, center Point, radius float64) bool {
	return PlanarDistance(pt, center) <= radius
}

// InCenterSphere reports whether pt lies within radius (in radians) of
// center on the unit sphere — used by 2dsphere $geoWithin $centerSphere.
func InCenterSphere(pt, center Point, radiusRadians float64) bool {
	const toRad = math.Pi / 180
	lat1, lat2 := center.Y*toRad, pt.Y*toRad
	dLat := (pt.Y - center.Y) * toRad
	dLon := (pt.X - center.X) * toRad
	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	angular := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return angular <= radiusRadians
}

// BoundingRing returns the [x,y] vertex list of ring as Points.
func BoundingRing(coords [][]float64) []Point {
	out := make([]Point, len(coords))
	for i, c := range coords {
		if len(c) >= 2 {
			out[i] = Point{X: c[0], Y: c[1]}
		}
	}
	return out
}
