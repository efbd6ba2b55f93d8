package agg

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/geo"
	"github.com/JKershaw/mangodb/internal/match"
)

// $geoNear operates directly on the materialized document stream rather
// than through the internal/index geo variant: the pipeline stage form
// (spec.md §4.5) names its own "near"/"key"/"distanceField" options and does
// not require a 2d/2dsphere index to already exist on the collection.
func init() {
	registerStage("$geoNear", func(arg interface{}) (stage, error) {
		spec, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$geoNear requires a document argument")
		}
		nearRaw, hasNear := docGetAgg(spec, "near")
		if !hasNear {
			return nil, dberr.BadValue("$geoNear requires 'near'")
		}
		center, spherical, err := extractNearPoint(nearRaw)
		if err != nil {
			return nil, err
		}
		if sp, ok := docGetAgg(spec, "spherical"); ok {
			if b, ok := sp.(bool); ok {
				spherical = b
			}
		}
		key, _ := docGetAgg(spec, "key")
		keyField, _ := key.(string)
		distanceField, _ := docGetAgg(spec, "distanceField")
		distField, _ := distanceField.(string)
		if distField == "" {
			return nil, dberr.BadValue("$geoNear requires 'distanceField'")
		}
		var maxDist float64
		hasMax := false
		if v, ok := docGetAgg(spec, "maxDistance"); ok {
			if f, ok := bsonval.AsFloat64(v); ok {
				maxDist, hasMax = f, true
			}
		}
		var minDist float64
		hasMin := false
		if v, ok := docGetAgg(spec, "minDistance"); ok {
			if f, ok := bsonval.AsFloat64(v); ok {
				minDist, hasMin = f, true
			}
		}
		var matcher *match.Matcher
		if q, ok := docGetAgg(spec, "query"); ok {
			qd, ok := asDoc(q)
			if ok {
				m, err := match.Compile(qd)
				if err != nil {
					return nil, err
				}
				matcher = m
			}
		}
		includeLocs, _ := docGetAgg(spec, "includeLocs")
		locsField, _ := includeLocs.(string)

		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			type cand struct {
				doc  primitive.D
				dist float64
				loc  interface{}
			}
			var cands []cand
			for _, d := range docs {
				if matcher != nil && !matcher.Matches(d) {
					continue
				}
				field := keyField
				loc := locateGeoField(d, field)
				if loc == nil {
					continue
				}
				pt, ok := extractAnyPoint(loc)
				if !ok {
					continue
				}
				var dist float64
				if spherical {
					dist = geo.HaversineMeters(center, pt)
				} else {
					dist = geo.PlanarDistance(center, pt)
				}
				if hasMax && dist > maxDist {
					continue
				}
				if hasMin && dist < minDist {
					continue
				}
				cands = append(cands, cand{doc: d, dist: dist, loc: loc})
			}
			sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
			out := make([]primitive.D, len(cands))
			for i, c := range cands {
				res := append(primitive.D{}, c.doc...)
				res = setDotted(res, distField, c.dist)
				if locsField != "" {
					res = setDotted(res, locsField, c.loc)
				}
				out[i] = res
			}
			return out, nil
		}, nil
	})
}

func locateGeoField(doc primitive.D, field string) interface{} {
	if field != "" {
		v := fieldValue(doc, field)
		if bsonval.IsMissing(v) {
			return nil
		}
		return v
	}
	for _, e := range doc {
		if _, ok := extractAnyPoint(e.Value); ok {
			return e.Value
		}
	}
	return nil
}

func extractAnyPoint(v interface{}) (geo.Point, bool) {
	switch t := v.(type) {
	case primitive.A:
		return pairToPoint([]interface{}(t))
	case []interface{}:
		return pairToPoint(t)
	case primitive.D:
		g, err := geo.ParseGeometry(t)
		if err == nil && g.Type == "Point" {
			return g.Point, true
		}
	case primitive.M:
		g, err := geo.ParseGeometry(t)
		if err == nil && g.Type == "Point" {
			return g.Point, true
		}
	}
	return geo.Point{}, false
}

func pairToPoint(a []interface{}) (geo.Point, bool) {
	if len(a) < 2 {
		return geo.Point{}, false
	}
	x, okx := bsonval.AsFloat64(a[0])
	y, oky := bsonval.AsFloat64(a[1])
	if !okx || !oky {
		return geo.Point{}, false
	}
	return geo.Point{X: x, Y: y}, true
}

func extractNearPoint(raw interface{}) (geo.Point, bool, error) {
	switch t := raw.(type) {
	case primitive.A:
		pt, ok := pairToPoint([]interface{}(t))
		if !ok {
			return geo.Point{}, false, dberr.BadValue("$geoNear: invalid 'near' coordinate pair")
		}
		return pt, false, nil
	case []interface{}:
		pt, ok := pairToPoint(t)
		if !ok {
			return geo.Point{}, false, dberr.BadValue("$geoNear: invalid 'near' coordinate pair")
		}
		return pt, false, nil
	default:
		g, err := geo.ParseGeometry(raw)
		if err != nil || g.Type != "Point" {
			return geo.Point{}, false, dberr.BadValue("$geoNear: 'near' must be a coordinate pair or GeoJSON Point")
		}
		return g.Point, true, nil
	}
}
