package index

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/geo"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

// geoIndex stores one (kind, field) geo key for $near/$geoWithin/
// $geoIntersects/$geoNear (spec.md §4.6). Linear-scan over a correctness-
// favoring list rather than an R-tree, matching the package's stated
// priority ("correct, not optimal"). byID is bucketed by bsonval.Hash(id)
// rather than keyed by id directly: an _id may be a document (an
// unhashable primitive.D) as well as a scalar.
type geoIndex struct {
	kind  string // "2d" or "2dsphere"
	field string
	byID  map[uint64][]geoRecord
}

type geoRecord struct {
	id    interface{}
	entry geoEntry
}

type geoEntry struct {
	legacy   geo.Point
	isLegacy bool
	parsed   *geo.Geometry
}

func newGeoIndex(kind, field string) *geoIndex {
	return &geoIndex{kind: kind, field: field, byID: map[uint64][]geoRecord{}}
}

func (g *geoIndex) insert(id interface{}, doc primitive.D) {
	v := pathutil.Get(doc, g.field)
	e, ok := parseGeoValue(v)
	if !ok {
		return
	}
	g.remove(id)
	h := bsonval.Hash(id)
	g.byID[h] = append(g.byID[h], geoRecord{id: id, entry: e})
}

func (g *geoIndex) remove(id interface{}) {
	h := bsonval.Hash(id)
	bucket := g.byID[h]
	for i, rec := range bucket {
		if bsonval.Equal(rec.id, id) {
			g.byID[h] = append(bucket[:i:i], bucket[i+1:]...)
			return
		}
	}
}

// entries yields every (id, geoEntry) pair currently stored, flattening
// the hash buckets for callers that need to range over the whole index.
func (g *geoIndex) entries() []geoRecord {
	var out []geoRecord
	for _, bucket := range g.byID {
		out = append(out, bucket...)
	}
	return out
}

func parseGeoValue(v interface{}) (geoEntry, bool) {
	switch t := v.(type) {
	case primitive.A:
		pair := coordPair([]interface{}(t))
		if pair == nil {
			return geoEntry{}, false
		}
		return geoEntry{legacy: *pair, isLegacy: true}, true
	case []interface{}:
		pair := coordPair(t)
		if pair == nil {
			return geoEntry{}, false
		}
		return geoEntry{legacy: *pair, isLegacy: true}, true
	default:
		g, err := geo.ParseGeometry(v)
		if err != nil {
			return geoEntry{}, false
		}
		return geoEntry{parsed: g}, true
	}
}

func coordPair(a []interface{}) *geo.Point {
	if len(a) < 2 {
		return nil
	}
	x, okx := toF(a[0])
	y, oky := toF(a[1])
	if !okx || !oky {
		return nil
	}
	return &geo.Point{X: x, Y: y}
}

func toF(v interface{}) (float64, bool) {
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

func pointOf(e geoEntry) (geo.Point, bool) {
	if e.isLegacy {
		return e.legacy, true
	}
	if e.parsed != nil && e.parsed.Type == "Point" {
		return e.parsed.Point, true
	}
	return geo.Point{}, false
}

// GeoNear returns ids sorted by ascending distance from center, using planar
// distance for a 2d index and haversine metres for 2dsphere.
func (idx *Index) GeoNear(center geo.Point, maxDistance float64, hasMax bool) ([]interface{}, error) {
	if idx.geo == nil {
		return nil, dberr.New(291, "unable to find index for $geoNear query")
	}
	type cand struct {
		id   interface{}
		dist float64
	}
	var cands []cand
	for _, rec := range idx.geo.entries() {
		id, e := rec.id, rec.entry
		pt, ok := pointOf(e)
		if !ok {
			continue
		}
		var d float64
		if idx.geo.kind == "2dsphere" {
			d = geo.HaversineMeters(center, pt)
		} else {
			d = geo.PlanarDistance(center, pt)
		}
		if hasMax && d > maxDistance {
			continue
		}
		cands = append(cands, cand{id, d})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	out := make([]interface{}, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out, nil
}

// GeoWithinBox returns ids whose point lies in the axis-aligned box [lo,hi].
func (idx *Index) GeoWithinBox(lo, hi geo.Point) ([]interface{}, error) {
	if idx.geo == nil {
		return nil, dberr.New(291, "unable to find index for $geoWithin query")
	}
	var out []interface{}
	for _, rec := range idx.geo.entries() {
		id, e := rec.id, rec.entry
		pt, ok := pointOf(e)
		if ok && geo.InBox(pt, lo, hi) {
			out = append(out, id)
		}
	}
	return out, nil
}

// GeoWithinCenter returns ids within radius of center ($center / $centerSphere).
func (idx *Index) GeoWithinCenter(center geo.Point, radius float64, spherical bool) ([]interface{}, error) {
	if idx.geo == nil {
		return nil, dberr.New(291, "unable to find index for $geoWithin query")
	}
	var out []interface{}
	for _, rec := range idx.geo.entries() {
		id, e := rec.id, rec.entry
		pt, ok := pointOf(e)
		if !ok {
			continue
		}
		var in bool
		if spherical {
			in = geo.InCenterSphere(pt, center, radius)
		} else {
			in = geo.InCenter(pt, center, radius)
		}
		if in {
			out = append(out, id)
		}
	}
	return out, nil
}

// GeoWithinPolygon returns ids whose point lies inside ring.
func (idx *Index) GeoWithinPolygon(ring []geo.Point) ([]interface{}, error) {
	if idx.geo == nil {
		return nil, dberr.New(291, "unable to find index for $geoWithin query")
	}
	var out []interface{}
	for _, rec := range idx.geo.entries() {
		id, e := rec.id, rec.entry
		pt, ok := pointOf(e)
		if ok && geo.PointInPolygon(pt, ring) {
			out = append(out, id)
		}
	}
	return out, nil
}

// GeoIntersects returns ids whose stored geometry (a GeoJSON shape, or a
// legacy pair treated as a Point) intersects geom. It requires a geo index.
func (idx *Index) GeoIntersects(geom *geo.Geometry) ([]interface{}, error) {
	if idx.geo == nil {
		return nil, dberr.New(291, "unable to find index for $geoIntersects query")
	}
	var out []interface{}
	for _, rec := range idx.geo.entries() {
		id, e := rec.id, rec.entry
		var other *geo.Geometry
		if e.parsed != nil {
			other = e.parsed
		} else if e.isLegacy {
			other = &geo.Geometry{Type: "Point", Point: e.legacy}
		} else {
			continue
		}
		if geo.Intersects(geom, other) {
			out = append(out, id)
		}
	}
	return out, nil
}

// HasGeo reports whether idx covers geo queries at all.
func (idx *Index) HasGeo() bool { return idx.geo != nil }

// GeoKind reports "2d" or "2dsphere" ("" if this is not a geo index).
func (idx *Index) GeoKind() string {
	if idx.geo == nil {
		return ""
	}
	return idx.geo.kind
}
