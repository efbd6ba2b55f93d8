// Package bsonval implements the tagged dynamic value model described in
// spec.md §3-4.1: MongoDB's total ordering across BSON types, deep clone,
// structural equality and hashing. Values are represented with the same
// concrete types go.mongodb.org/mongo-driver/bson/primitive already uses on
// the wire (primitive.ObjectID, primitive.Decimal128, primitive.Regex,
// primitive.DateTime, primitive.Binary, primitive.A/D/M/E, primitive.
// Undefined, primitive.MinKey, primitive.MaxKey) instead of a bespoke union
// type — the ecosystem library already encodes the type universe this
// engine needs.
package bsonval

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Missing is a sentinel distinct from nil: it marks a dotted path segment
// that does not exist in a document, as opposed to a field explicitly set
// to null. Missing compares equal to null under Equal (spec.md §3) but is
// invisible to $exists:true.
type Missing struct{}

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v interface{}) bool {
	_, ok := v.(Missing)
	return ok
}

// IsNullish reports whether v is nil, Missing, or primitive.Undefined —
// the three values that compare equal to null under the matcher's equality
// rule.
func IsNullish(v interface{}) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case Missing, primitive.Undefined:
		return true
	}
	return false
}

// typeRank assigns each BSON type its position in the total order from
// spec.md §3: minKey < null/missing < numbers < string < document < array <
// binary < objectId < bool < datetime < regex < maxKey.
func typeRank(v interface{}) int {
	switch v.(type) {
	case primitive.MinKey:
		return 0
	case nil, Missing, primitive.Undefined:
		return 1
	case int32, int64, float64, primitive.Decimal128:
		return 2
	case string:
		return 3
	case primitive.D, primitive.M, map[string]interface{}:
		return 4
	case primitive.A, []interface{}:
		return 5
	case primitive.Binary, []byte:
		return 6
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case primitive.DateTime, time.Time:
		return 9
	case primitive.Regex:
		return 10
	case primitive.MaxKey:
		return 11
	default:
		// Unknown concrete types (e.g. structs passed by callers) are
		// treated as documents after normalization by the caller; fall
		// back to the document rank rather than panicking.
		return 4
	}
}

// IsNumeric reports whether v is one of the four numeric BSON subtypes.
func IsNumeric(v interface{}) bool {
	switch v.(type) {
	case int32, int64, float64, primitive.Decimal128:
		return true
	}
	return false
}

// AsFloat64 converts a numeric value to float64 for comparison/arithmetic.
// ok is false for non-numeric input.
func AsFloat64(v interface{}) (f float64, ok bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case primitive.Decimal128:
		f, err := decimal128ToFloat(n)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func decimal128ToFloat(d primitive.Decimal128) (float64, error) {
	// primitive.Decimal128 doesn't expose a direct float accessor; round
	// trip through its big.Int/exponent representation via String(), which
	// is the documented way to extract a textual form.
	return parseDecimalString(d.String())
}

func parseDecimalString(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscan(s, &f)
	return f, err
}

// IsNaN reports whether v is a floating point NaN. NaN is unordered but
// sorts as less than all other numbers (spec.md §3) and never matches
// numeric equality.
func IsNaN(v interface{}) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

// Compare implements the total order of spec.md §3 for two scalar or
// compound values. It does NOT apply the array-element matching rule used
// by the query matcher (arrays compare element-by-element here, the way a
// reference server compares two array-typed field values directly); use
// the matcher package for $gt/$lt field-predicate semantics against an
// array-valued field.
func Compare(a, b interface{}) int {
	a = normalize(a)
	b = normalize(b)

	// emptyArraySentinel is a SortKey()-only marker that sorts strictly
	// below the null family (spec.md §3 "the empty array sorts below
	// null"); it never appears in stored documents.
	_, aEmpty := a.(emptyArraySentinel)
	_, bEmpty := b.(emptyArraySentinel)
	if aEmpty || bEmpty {
		switch {
		case aEmpty && bEmpty:
			return 0
		case aEmpty:
			return -1
		default:
			return 1
		}
	}

	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0, 1, 11: // minKey, null-family, maxKey: all equal within rank
		return 0
	case 2:
		return compareNumeric(a, b)
	case 3:
		return bytes.Compare([]byte(a.(string)), []byte(b.(string)))
	case 4:
		return compareDocs(toD(a), toD(b))
	case 5:
		return compareArrays(toA(a), toA(b))
	case 6:
		return compareBinary(a, b)
	case 7:
		oa, ob := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(oa[:], ob[:])
	case 8:
		ba, bb := a.(bool), b.(bool)
		if ba == bb {
			return 0
		}
		if !ba {
			return -1
		}
		return 1
	case 9:
		return compareInt64(toMillis(a), toMillis(b))
	case 10:
		ra, rb := a.(primitive.Regex), b.(primitive.Regex)
		if c := bytes.Compare([]byte(ra.Pattern), []byte(rb.Pattern)); c != 0 {
			return c
		}
		return bytes.Compare([]byte(ra.Options), []byte(rb.Options))
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toMillis(v interface{}) int64 {
	switch t := v.(type) {
	case primitive.DateTime:
		return int64(t)
	case time.Time:
		return t.UnixMilli()
	}
	return 0
}

// compareNumeric promotes both operands to the widest numeric type involved
// (spec.md §9) and compares by real value. NaN sorts below every other
// number, including negative infinity.
func compareNumeric(a, b interface{}) int {
	fa, _ := AsFloat64(a)
	fb, _ := AsFloat64(b)
	naA, naB := math.IsNaN(fa), math.IsNaN(fb)
	switch {
	case naA && naB:
		return 0
	case naA:
		return -1
	case naB:
		return 1
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	default:
		return 0
	}
}

func compareBinary(a, b interface{}) int {
	ba := binaryBytes(a)
	bb := binaryBytes(b)
	if len(ba) != len(bb) {
		if len(ba) < len(bb) {
			return -1
		}
		return 1
	}
	return bytes.Compare(ba, bb)
}

func binaryBytes(v interface{}) []byte {
	switch t := v.(type) {
	case primitive.Binary:
		return t.Data
	case []byte:
		return t
	}
	return nil
}

// compareDocs compares two documents field by field in stored key order,
// the way a reference server compares embedded-document values directly
// (not via field-path traversal).
func compareDocs(a, b primitive.D) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := bytes.Compare([]byte(a[i].Key), []byte(b[i].Key)); c != 0 {
			return c
		}
		if c := Compare(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// compareArrays compares two arrays lexicographically, element by element.
// This is distinct from the "least/greatest element" rule applied only
// when an array-valued field participates in a $sort (see SortKey).
func compareArrays(a, b primitive.A) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Equal reports structural equality under the value model. Unlike Compare,
// NaN never equals NaN (spec.md §4.1 "equal (uses compare but treats
// NaN≠NaN)").
func Equal(a, b interface{}) bool {
	if IsNaN(a) || IsNaN(b) {
		return false
	}
	if IsNullish(a) && IsNullish(b) {
		return true
	}
	return Compare(a, b) == 0
}

// SortKey reduces value v to the representative scalar used when v
// participates in a $sort: an array sorts by its least element ascending
// / greatest element descending (spec.md §3, §8); the empty array sorts
// below null. Non-array values are returned unchanged.
func SortKey(v interface{}, descending bool) interface{} {
	v = normalize(v)
	arr, ok := v.(primitive.A)
	if !ok {
		if a2, ok2 := v.([]interface{}); ok2 {
			arr = primitive.A(a2)
			ok = true
		}
	}
	if !ok {
		return v
	}
	if len(arr) == 0 {
		// Sorts below null regardless of direction; emulate with a
		// synthetic value ranked just under the null family.
		return emptyArraySentinel{}
	}
	best := arr[0]
	for _, elt := range arr[1:] {
		c := Compare(elt, best)
		if (!descending && c < 0) || (descending && c > 0) {
			best = elt
		}
	}
	return best
}

// emptyArraySentinel sorts strictly below null/missing in both directions,
// satisfying "the empty array sorts below null" (spec.md §3, §8).
type emptyArraySentinel struct{}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.M:
		return mapToD(map[string]interface{}(t))
	case map[string]interface{}:
		return mapToD(t)
	case emptyArraySentinel:
		return t
	}
	return v
}

func mapToD(m map[string]interface{}) primitive.D {
	d := make(primitive.D, 0, len(m))
	for k, v := range m {
		d = append(d, primitive.E{Key: k, Value: v})
	}
	return d
}

func toD(v interface{}) primitive.D {
	switch t := v.(type) {
	case primitive.D:
		return t
	case primitive.M:
		return mapToD(map[string]interface{}(t))
	case map[string]interface{}:
		return mapToD(t)
	}
	return nil
}

func toA(v interface{}) primitive.A {
	switch t := v.(type) {
	case primitive.A:
		return t
	case []interface{}:
		return primitive.A(t)
	}
	return nil
}
