// modern_utils.go - document conversion helpers for the legacy-API facade
package mangodb

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toDoc normalizes an arbitrary caller-supplied value (bson.M, bson.D, a
// tagged struct, or nil) into a primitive.D the core engine understands, by
// round-tripping it through the official BSON codec rather than hand-rolling
// a reflection-based converter.
func toDoc(v interface{}) (primitive.D, error) {
	if v == nil {
		return primitive.D{}, nil
	}
	if d, ok := v.(primitive.D); ok {
		return d, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc primitive.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// toDocSlice applies toDoc across a variadic argument list.
func toDocSlice(vs []interface{}) ([]primitive.D, error) {
	out := make([]primitive.D, len(vs))
	for i, v := range vs {
		d, err := toDoc(v)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// decodeInto writes doc into dst (a pointer to a struct, map, or bson.M/D),
// again via the official codec, mirroring how ModernIt.Next/All decode a
// stored document into whatever shape the caller asked for.
func decodeInto(doc primitive.D, dst interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, dst)
}

// idFilter builds the {_id: id} selector FindId/UpdateId/RemoveId use.
func idFilter(id interface{}) primitive.D {
	return primitive.D{{Key: "_id", Value: id}}
}
