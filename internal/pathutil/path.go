// Package pathutil implements the single dotted-path resolver described in
// spec.md §4.1/§9: the matcher consumes a *set* of candidate values (array
// flattening), the update writer consumes exactly one target slot.
package pathutil

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
)

// Split breaks a dotted path into its segments. "a.b.c" -> ["a","b","c"].
func Split(path string) []string {
	return strings.Split(path, ".")
}

// Candidates resolves path against doc for query matching, returning every
// value the path can reach. Traversing an array with a non-integer segment
// fans out across elements (spec.md §4.1); the result is the flattened
// multiset used by the matcher. The result is never empty: a wholly absent
// path yields one bsonval.Missing candidate.
func Candidates(doc interface{}, path string) []interface{} {
	return resolve(doc, Split(path))
}

func resolve(cur interface{}, segs []string) []interface{} {
	if len(segs) == 0 {
		return []interface{}{cur}
	}
	seg := segs[0]
	rest := segs[1:]

	switch v := cur.(type) {
	case primitive.D:
		for _, e := range v {
			if e.Key == seg {
				return resolve(e.Value, rest)
			}
		}
		return []interface{}{bsonval.Missing{}}
	case primitive.M:
		if val, ok := v[seg]; ok {
			return resolve(val, rest)
		}
		return []interface{}{bsonval.Missing{}}
	case map[string]interface{}:
		if val, ok := v[seg]; ok {
			return resolve(val, rest)
		}
		return []interface{}{bsonval.Missing{}}
	case primitive.A:
		return resolveArray([]interface{}(v), seg, rest)
	case []interface{}:
		return resolveArray(v, seg, rest)
	default:
		return []interface{}{bsonval.Missing{}}
	}
}

func resolveArray(arr []interface{}, seg string, rest []string) []interface{} {
	if idx, err := strconv.Atoi(seg); err == nil {
		if idx < 0 || idx >= len(arr) {
			return []interface{}{bsonval.Missing{}}
		}
		return resolve(arr[idx], rest)
	}
	// Field-name segment over an array: fan out across elements and flatten
	// (spec.md §4.1). Also include the case where the path addresses the
	// array itself when no further segments exist — handled by caller via
	// len(rest)==0 below.
	var out []interface{}
	for _, elt := range arr {
		out = append(out, resolve(elt, append([]string{seg}, rest...))...)
	}
	if len(out) == 0 {
		out = append(out, bsonval.Missing{})
	}
	return out
}

// Get resolves path against doc for general single-value use (e.g.
// aggregation `$path` expressions): it returns the first candidate,
// flattening one level of array field-fan-out into an array result the way
// aggregation expressions expect ($field on an array of subdocuments
// projects to an array of the subfield's values).
func Get(doc interface{}, path string) interface{} {
	return getSeg(doc, Split(path))
}

func getSeg(cur interface{}, segs []string) interface{} {
	if len(segs) == 0 {
		return cur
	}
	seg := segs[0]
	rest := segs[1:]

	switch v := cur.(type) {
	case primitive.D:
		for _, e := range v {
			if e.Key == seg {
				return getSeg(e.Value, rest)
			}
		}
		return bsonval.Missing{}
	case primitive.M:
		if val, ok := v[seg]; ok {
			return getSeg(val, rest)
		}
		return bsonval.Missing{}
	case map[string]interface{}:
		if val, ok := v[seg]; ok {
			return getSeg(val, rest)
		}
		return bsonval.Missing{}
	case primitive.A:
		return getArraySeg([]interface{}(v), seg, rest)
	case []interface{}:
		return getArraySeg(v, seg, rest)
	default:
		return bsonval.Missing{}
	}
}

func getArraySeg(arr []interface{}, seg string, rest []string) interface{} {
	if idx, err := strconv.Atoi(seg); err == nil {
		if idx < 0 || idx >= len(arr) {
			return bsonval.Missing{}
		}
		return getSeg(arr[idx], rest)
	}
	out := make(primitive.A, 0, len(arr))
	for _, elt := range arr {
		sub := getSeg(elt, append([]string{seg}, rest...))
		if !bsonval.IsMissing(sub) {
			out = append(out, sub)
		}
	}
	return out
}

// Exists reports whether path is present in doc (distinguishes explicit
// null from an absent field, per $exists:true semantics).
func Exists(doc interface{}, path string) bool {
	segs := Split(path)
	return existsSeg(doc, segs)
}

func existsSeg(cur interface{}, segs []string) bool {
	if len(segs) == 0 {
		return true
	}
	seg := segs[0]
	rest := segs[1:]
	switch v := cur.(type) {
	case primitive.D:
		for _, e := range v {
			if e.Key == seg {
				return existsSeg(e.Value, rest)
			}
		}
		return false
	case primitive.M:
		if val, ok := v[seg]; ok {
			return existsSeg(val, rest)
		}
		return false
	case map[string]interface{}:
		if val, ok := v[seg]; ok {
			return existsSeg(val, rest)
		}
		return false
	case primitive.A:
		if idx, err := strconv.Atoi(seg); err == nil {
			if idx < 0 || idx >= len(v) {
				return false
			}
			return existsSeg(v[idx], rest)
		}
		for _, elt := range v {
			if existsSeg(elt, append([]string{seg}, rest...)) {
				return true
			}
		}
		return false
	}
	return false
}
