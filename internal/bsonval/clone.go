package bsonval

import (
	"fmt"
	"hash/fnv"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Clone performs a deep copy of v, preserving the exact numeric variant
// (int32 stays int32, float64 stays float64, etc. — spec.md §4.1).
func Clone(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.D:
		out := make(primitive.D, len(t))
		for i, e := range t {
			out[i] = primitive.E{Key: e.Key, Value: Clone(e.Value)}
		}
		return out
	case primitive.M:
		out := make(primitive.M, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case primitive.A:
		out := make(primitive.A, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case primitive.Binary:
		data := make([]byte, len(t.Data))
		copy(data, t.Data)
		return primitive.Binary{Subtype: t.Subtype, Data: data}
	default:
		// Scalars (numbers, strings, bool, ObjectID, DateTime, Regex,
		// Decimal128, nil, Missing, Undefined, MinKey, MaxKey) are
		// immutable value types in Go and need no deep copy.
		return v
	}
}

// ToDoc coerces a value known to represent a document (primitive.D,
// primitive.M, or map[string]interface{}) into primitive.D, preserving key
// order when it already exists and falling back to sorted key order for
// unordered map inputs so hashing/cloning stay deterministic.
func ToDoc(v interface{}) primitive.D {
	switch t := v.(type) {
	case primitive.D:
		return t
	case primitive.M:
		return mapToSortedD(map[string]interface{}(t))
	case map[string]interface{}:
		return mapToSortedD(t)
	}
	return nil
}

func mapToSortedD(m map[string]interface{}) primitive.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := make(primitive.D, 0, len(m))
	for _, k := range keys {
		d = append(d, primitive.E{Key: k, Value: m[k]})
	}
	return d
}

// ToArray coerces a value known to represent an array into primitive.A.
func ToArray(v interface{}) (primitive.A, bool) {
	switch t := v.(type) {
	case primitive.A:
		return t, true
	case []interface{}:
		return primitive.A(t), true
	}
	return nil, false
}

// Hash produces a structural hash compatible with Equal: two values that
// compare equal (ignoring document key order at the top level, per spec.md
// §3 "key order preserved but not significant for equality") hash equally.
func Hash(v interface{}) uint64 {
	h := fnv.New64a()
	hashInto(h, v)
	return h.Sum64()
}

func hashInto(h interface{ Write([]byte) (int, error) }, v interface{}) {
	write := func(s string) { h.Write([]byte(s)) }
	switch t := normalize(v).(type) {
	case nil, Missing, primitive.Undefined:
		write("\x00null")
	case primitive.MinKey:
		write("\x00min")
	case primitive.MaxKey:
		write("\x00max")
	case bool:
		write(fmt.Sprintf("\x01%v", t))
	case int32, int64, float64, primitive.Decimal128:
		f, _ := AsFloat64(t)
		write(fmt.Sprintf("\x02%v", f))
	case string:
		write("\x03" + t)
	case primitive.D:
		write("\x04{")
		// Hash documents order-independently by summing per-field hashes,
		// matching spec.md's "key order ... not significant for equality".
		var acc uint64
		for _, e := range t {
			fh := fnv.New64a()
			hashInto(fh, e.Key)
			hashInto(fh, e.Value)
			acc += fh.Sum64()
		}
		write(fmt.Sprintf("%d}", acc))
	case primitive.A:
		write("\x05[")
		for _, e := range t {
			hashInto(h, e)
			write(",")
		}
		write("]")
	case primitive.Binary:
		write(fmt.Sprintf("\x06%d:%x", t.Subtype, t.Data))
	case primitive.ObjectID:
		write("\x07" + t.Hex())
	case primitive.DateTime:
		write(fmt.Sprintf("\x09%d", int64(t)))
	case primitive.Regex:
		write("\x0a" + t.Pattern + "\x00" + t.Options)
	default:
		write(fmt.Sprintf("\xff%v", t))
	}
}
