package match

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/geo"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

// geoNearFieldOp compiles $near/$nearSphere as a distance-bounds filter.
// Actual candidate generation and distance-sort ordering for $near is the
// index layer's job (spec.md §4.6); requiring a geo index to even run is
// enforced there (error 291). Here we only apply $minDistance/$maxDistance
// when present, so $near composes correctly inside $and/$or/$elemMatch.
func geoNearFieldOp(arg interface{}) (fieldPredicate, error) {
	d, ok := asOperatorDoc(arg)
	if !ok {
		return nil, dberr.BadValue("$near requires a document argument")
	}
	var geometry *geo.Geometry
	var legacyPoint *geo.Point
	var minDist, maxDist float64
	hasMin, hasMax := false, false

	for _, e := range d {
		switch e.Key {
		case "$geometry":
			g, err := geo.ParseGeometry(e.Value)
			if err != nil {
				return nil, err
			}
			geometry = g
		case "$minDistance":
			f, _ := bsonval.AsFloat64(e.Value)
			minDist, hasMin = f, true
		case "$maxDistance":
			f, _ := bsonval.AsFloat64(e.Value)
			maxDist, hasMax = f, true
		}
	}
	if geometry == nil {
		if arr, ok := bsonval.ToArray(arg); ok && len(arr) >= 2 {
			x, _ := bsonval.AsFloat64(arr[0])
			y, _ := bsonval.AsFloat64(arr[1])
			legacyPoint = &geo.Point{X: x, Y: y}
		}
	}

	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		pt, ok := extractPoint(v)
		if !ok {
			return false
		}
		var dist float64
		if geometry != nil {
			dist = geo.HaversineMeters(pt, geometry.Point)
		} else if legacyPoint != nil {
			dist = geo.PlanarDistance(pt, *legacyPoint)
		} else {
			return true
		}
		if hasMin && dist < minDist {
			return false
		}
		if hasMax && dist > maxDist {
			return false
		}
		return true
	}, nil
}

func geoWithinOp(arg interface{}) (fieldPredicate, error) {
	d, ok := asOperatorDoc(arg)
	if !ok {
		return nil, dberr.BadValue("$geoWithin requires a document argument")
	}
	for _, e := range d {
		switch e.Key {
		case "$geometry":
			g, err := geo.ParseGeometry(e.Value)
			if err != nil {
				return nil, err
			}
			return func(doc primitive.D, path string) bool {
				pt, ok := extractPoint(pathutil.Get(doc, path))
				if !ok {
					return false
				}
				ptGeom := &geo.Geometry{Type: "Point", Point: pt}
				return geo.Intersects(ptGeom, g)
			}, nil
		case "$box":
			arr, ok := bsonval.ToArray(e.Value)
			if !ok || len(arr) != 2 {
				return nil, dberr.BadValue("$box requires two corner points")
			}
			lo, ok1 := coordsToPoint(arr[0])
			hi, ok2 := coordsToPoint(arr[1])
			if !ok1 || !ok2 {
				return nil, dberr.BadValue("$box corners must be coordinate pairs")
			}
			return func(doc primitive.D, path string) bool {
				pt, ok := extractPoint(pathutil.Get(doc, path))
				return ok && geo.InBox(pt, lo, hi)
			}, nil
		case "$polygon":
			pts, err := coordArrayToPoints(e.Value)
			if err != nil {
				return nil, err
			}
			return func(doc primitive.D, path string) bool {
				pt, ok := extractPoint(pathutil.Get(doc, path))
				return ok && geo.PointInPolygon(pt, pts)
			}, nil
		case "$center":
			arr, ok := bsonval.ToArray(e.Value)
			if !ok || len(arr) != 2 {
				return nil, dberr.BadValue("$center requires [center, radius]")
			}
			center, ok := coordsToPoint(arr[0])
			radius, ok2 := bsonval.AsFloat64(arr[1])
			if !ok || !ok2 {
				return nil, dberr.BadValue("$center requires a coordinate pair and radius")
			}
			return func(doc primitive.D, path string) bool {
				pt, ok := extractPoint(pathutil.Get(doc, path))
				return ok && geo.InCenter(pt, center, radius)
			}, nil
		case "$centerSphere":
			arr, ok := bsonval.ToArray(e.Value)
			if !ok || len(arr) != 2 {
				return nil, dberr.BadValue("$centerSphere requires [center, radiusRadians]")
			}
			center, ok := coordsToPoint(arr[0])
			radius, ok2 := bsonval.AsFloat64(arr[1])
			if !ok || !ok2 {
				return nil, dberr.BadValue("$centerSphere requires a coordinate pair and radius")
			}
			return func(doc primitive.D, path string) bool {
				pt, ok := extractPoint(pathutil.Get(doc, path))
				return ok && geo.InCenterSphere(pt, center, radius)
			}, nil
		}
	}
	return nil, dberr.BadValue("$geoWithin requires one of $geometry, $box, $polygon, $center, $centerSphere")
}

func geoIntersectsOp(arg interface{}) (fieldPredicate, error) {
	d, ok := asOperatorDoc(arg)
	if !ok {
		return nil, dberr.BadValue("$geoIntersects requires a document argument")
	}
	var geometry *geo.Geometry
	for _, e := range d {
		if e.Key == "$geometry" {
			g, err := geo.ParseGeometry(e.Value)
			if err != nil {
				return nil, err
			}
			geometry = g
		}
	}
	if geometry == nil {
		return nil, dberr.BadValue("$geoIntersects requires $geometry")
	}
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		g, err := geo.ParseGeometry(v)
		if err != nil {
			if pt, ok := extractPoint(v); ok {
				g = &geo.Geometry{Type: "Point", Point: pt}
			} else {
				return false
			}
		}
		return geo.Intersects(g, geometry)
	}, nil
}

// extractPoint reads a legacy [x, y] pair or a GeoJSON Point document from
// a field value.
func extractPoint(v interface{}) (geo.Point, bool) {
	if d, ok := v.(primitive.D); ok {
		m := bsonval.ToDoc(d)
		for _, e := range m {
			if e.Key == "type" {
				if g, err := geo.ParseGeometry(d); err == nil && g.Type == "Point" {
					return g.Point, true
				}
			}
		}
	}
	if arr, ok := bsonval.ToArray(v); ok && len(arr) >= 2 {
		return coordsToPoint(arr)
	}
	return geo.Point{}, false
}

func coordsToPoint(v interface{}) (geo.Point, bool) {
	arr, ok := bsonval.ToArray(v)
	if !ok || len(arr) < 2 {
		return geo.Point{}, false
	}
	x, ok1 := bsonval.AsFloat64(arr[0])
	y, ok2 := bsonval.AsFloat64(arr[1])
	if !ok1 || !ok2 {
		return geo.Point{}, false
	}
	return geo.Point{X: x, Y: y}, true
}

func coordArrayToPoints(v interface{}) ([]geo.Point, error) {
	arr, ok := bsonval.ToArray(v)
	if !ok {
		return nil, dberr.BadValue("expected an array of coordinate pairs")
	}
	out := make([]geo.Point, 0, len(arr))
	for _, item := range arr {
		pt, ok := coordsToPoint(item)
		if !ok {
			return nil, dberr.BadValue("invalid coordinate pair in polygon")
		}
		out = append(out, pt)
	}
	return out, nil
}
