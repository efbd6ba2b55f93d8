package mangodb

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/geo"
	"github.com/JKershaw/mangodb/internal/match"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

// FindOptions mirrors the wire "find" command's optional fields (spec.md
// §6); Safe-style pass-through struct rather than a network config, since
// this engine has no wire layer of its own.
type FindOptions struct {
	Projection primitive.D
	Sort       primitive.D
	Skip       int64
	Limit      int64
}

// Find compiles filter and returns a snapshotting Cursor over the matching
// documents (spec.md §5 "snapshot+id-set"), applying sort/skip/limit but
// NOT projection — callers read full documents from the cursor and apply
// Project themselves, since findAndModify's `fields` option reuses the same
// projection compiler independently of Find.
func (c *Collection) Find(filter primitive.D, opts FindOptions) (*Cursor, error) {
	m, err := match.Compile(filter)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids, err := c.geoNearCandidatesLocked(filter)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = c.candidateIDsLocked(filter)
	}
	var matched []interface{}
	for _, id := range ids {
		r := c.findRecordLocked(id)
		if r != nil && m.Matches(r.doc) {
			matched = append(matched, id)
		}
	}
	if len(opts.Sort) > 0 {
		matched = sortDocsByIDs(c, matched, parseSortSpec(opts.Sort))
	}
	matched = applySkipLimit(matched, opts.Skip, opts.Limit)
	return newCursor(c, matched), nil
}

// geoNearCandidatesLocked recognizes a top-level {field: {$near:...}} or
// {field: {$nearSphere:...}} clause and returns its matching document ids
// pre-sorted by ascending distance via the field's geo index (spec.md §4.6:
// "$near uses... returning results sorted ascending by distance"; absence
// of a compatible geo index raises error 291). Returns a nil id slice when
// filter has no $near clause, signalling the caller to fall back to normal
// candidate selection. A caller-supplied sort option still overrides this
// order upstream in Find.
func (c *Collection) geoNearCandidatesLocked(filter primitive.D) ([]interface{}, error) {
	for _, e := range filter {
		d, ok := e.Value.(primitive.D)
		if !ok || len(e.Key) == 0 || e.Key[0] == '$' {
			continue
		}
		for _, op := range d {
			if op.Key != "$near" && op.Key != "$nearSphere" {
				continue
			}
			idx, err := c.indexes.ForGeoField(e.Key)
			if err != nil {
				return nil, err
			}
			center, hasMax, maxDist, err := parseNearOperand(op.Value)
			if err != nil {
				return nil, err
			}
			ids, err := idx.GeoNear(center, maxDist, hasMax)
			if err != nil {
				return nil, err
			}
			return ids, nil
		}
	}
	return nil, nil
}

func parseNearOperand(v interface{}) (geo.Point, bool, float64, error) {
	d, ok := v.(primitive.D)
	if !ok {
		if arr, ok := bsonval.ToArray(v); ok && len(arr) >= 2 {
			x, _ := bsonval.AsFloat64(arr[0])
			y, _ := bsonval.AsFloat64(arr[1])
			return geo.Point{X: x, Y: y}, false, 0, nil
		}
		return geo.Point{}, false, 0, dberr.BadValue("$near/$nearSphere requires a coordinate pair or $geometry")
	}
	var hasMax bool
	var maxDist float64
	var center geo.Point
	found := false
	for _, e := range d {
		switch e.Key {
		case "$geometry":
			g, err := geo.ParseGeometry(e.Value)
			if err != nil {
				return geo.Point{}, false, 0, err
			}
			center = g.Point
			found = true
		case "$maxDistance":
			f, _ := bsonval.AsFloat64(e.Value)
			maxDist, hasMax = f, true
		}
	}
	if !found {
		if arr, ok := bsonval.ToArray(v); ok && len(arr) >= 2 {
			x, _ := bsonval.AsFloat64(arr[0])
			y, _ := bsonval.AsFloat64(arr[1])
			center = geo.Point{X: x, Y: y}
			found = true
		}
	}
	if !found {
		return geo.Point{}, false, 0, dberr.BadValue("$near/$nearSphere requires a coordinate pair or $geometry")
	}
	return center, hasMax, maxDist, nil
}

// candidateIDsLocked implements spec.md §4.6's rule-based candidate
// selection: equality on an indexed field's leading key narrows to that
// index's matching ids; anything else falls back to a full scan.
func (c *Collection) candidateIDsLocked(filter primitive.D) []interface{} {
	for _, e := range filter {
		if len(e.Key) == 0 || e.Key[0] == '$' {
			continue
		}
		if isOperatorDocField(e.Value) {
			continue
		}
		idx := c.indexes.ForField(e.Key)
		if idx == nil {
			continue
		}
		return idx.EqualityLookup(e.Value)
	}
	out := make([]interface{}, len(c.order))
	for i, r := range c.order {
		out[i] = r.id
	}
	return out
}

func isOperatorDocField(v interface{}) bool {
	d, ok := v.(primitive.D)
	if !ok {
		return false
	}
	for _, e := range d {
		if len(e.Key) > 0 && e.Key[0] == '$' {
			return true
		}
	}
	return false
}

// applySkipLimit applies spec.md §8 boundary rules: limit 0 means
// unlimited; negative limit caps a single batch at |n| without signalling
// "more results may exist".
func applySkipLimit(ids []interface{}, skip, limit int64) []interface{} {
	if skip > 0 {
		if skip >= int64(len(ids)) {
			return nil
		}
		ids = ids[skip:]
	}
	if limit == 0 {
		return ids
	}
	n := limit
	if n < 0 {
		n = -n
	}
	if n < int64(len(ids)) {
		ids = ids[:n]
	}
	return ids
}

// Project applies a find/findAndModify-style projection document: inclusion
// mode keeps _id (unless explicitly excluded) plus named fields; exclusion
// mode keeps everything except named fields.
func Project(doc primitive.D, projection primitive.D) primitive.D {
	if len(projection) == 0 {
		return doc
	}
	idExcluded := false
	anyInclude := false
	for _, e := range projection {
		if truthyProjectionValue(e.Value) {
			if e.Key != "_id" {
				anyInclude = true
			}
		} else if e.Key == "_id" {
			idExcluded = true
		}
	}
	if !anyInclude {
		out := append(primitive.D{}, doc...)
		for _, e := range projection {
			if !truthyProjectionValue(e.Value) {
				out = pathutil.Unset(out, e.Key)
			}
		}
		return out
	}
	var out primitive.D
	if !idExcluded {
		if v := pathutil.Get(doc, "_id"); !bsonval.IsMissing(v) {
			out = append(out, primitive.E{Key: "_id", Value: v})
		}
	}
	for _, e := range projection {
		if e.Key == "_id" || !truthyProjectionValue(e.Value) {
			continue
		}
		v := pathutil.Get(doc, e.Key)
		if !bsonval.IsMissing(v) {
			out, _ = pathutil.Set(out, e.Key, v)
		}
	}
	return out
}

func truthyProjectionValue(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	default:
		f, ok := bsonval.AsFloat64(v)
		return !ok || f != 0
	}
}
