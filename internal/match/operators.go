package match

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

// fieldPredicate is a compiled single-operator check bound to a path; it is
// re-evaluated per document (spec.md §4.2 "Compilation invariants").
type fieldPredicate func(doc primitive.D, path string) bool

func compileOperator(op string, arg interface{}, _ string) (fieldPredicate, error) {
	switch op {
	case "$eq":
		return func(doc primitive.D, path string) bool {
			return literalMatches(pathutil.Get(doc, path), arg)
		}, nil
	case "$ne":
		return func(doc primitive.D, path string) bool {
			return !literalMatches(pathutil.Get(doc, path), arg)
		}, nil
	case "$gt":
		return compareOp(arg, func(c int) bool { return c > 0 })
	case "$gte":
		return compareOp(arg, func(c int) bool { return c >= 0 })
	case "$lt":
		return compareOp(arg, func(c int) bool { return c < 0 })
	case "$lte":
		return compareOp(arg, func(c int) bool { return c <= 0 })
	case "$in":
		return inOp(arg, false)
	case "$nin":
		return inOp(arg, true)
	case "$exists":
		want, _ := arg.(bool)
		return func(doc primitive.D, path string) bool {
			return pathutil.Exists(doc, path) == want
		}, nil
	case "$type":
		return typeOp(arg)
	case "$mod":
		return modOp(arg)
	case "$size":
		return sizeOp(arg)
	case "$all":
		return allOp(arg)
	case "$elemMatch":
		return elemMatchOp(arg)
	case "$not":
		return notOp(arg)
	case "$bitsAllSet":
		return bitsOp(arg, bitsAllSet)
	case "$bitsAllClear":
		return bitsOp(arg, bitsAllClear)
	case "$bitsAnySet":
		return bitsOp(arg, bitsAnySet)
	case "$bitsAnyClear":
		return bitsOp(arg, bitsAnyClear)
	case "$near", "$nearSphere":
		return geoNearFieldOp(arg)
	case "$geoWithin":
		return geoWithinOp(arg)
	case "$geoIntersects":
		return geoIntersectsOp(arg)
	default:
		return nil, dberr.FailedToParse("unknown query operator: %s", op)
	}
}

func compareOp(arg interface{}, test func(int) bool) (fieldPredicate, error) {
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		if arr, ok := bsonval.ToArray(v); ok {
			for _, elt := range arr {
				if compareMatches(elt, arg, test) {
					return true
				}
			}
			return false
		}
		return compareMatches(v, arg, test)
	}, nil
}

func compareMatches(v, arg interface{}, test func(int) bool) bool {
	if bsonval.IsNaN(v) || bsonval.IsNaN(arg) {
		return false
	}
	return test(bsonval.Compare(v, arg))
}

func inOp(arg interface{}, negate bool) (fieldPredicate, error) {
	arr, ok := bsonval.ToArray(arg)
	if !ok {
		return nil, dberr.BadValue("$in/$nin requires an array argument")
	}
	var regexes []*regexp.Regexp
	var literals []interface{}
	for _, m := range arr {
		if rx, ok := m.(primitive.Regex); ok {
			if compiled, err := compileGoRegex(rx.Pattern, rx.Options); err == nil {
				regexes = append(regexes, compiled)
			}
			continue
		}
		literals = append(literals, m)
	}
	match := func(v interface{}) bool {
		for _, l := range literals {
			if bsonval.Equal(v, l) {
				return true
			}
		}
		if s, ok := v.(string); ok {
			for _, rx := range regexes {
				if rx.MatchString(s) {
					return true
				}
			}
		}
		return false
	}
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		found := match(v)
		if !found {
			if a, ok := bsonval.ToArray(v); ok {
				for _, elt := range a {
					if match(elt) {
						found = true
						break
					}
				}
			}
		}
		if negate {
			return !found
		}
		return found
	}, nil
}

var typeAliases = map[string]func(interface{}) bool{
	"double":    func(v interface{}) bool { _, ok := v.(float64); return ok },
	"string":    func(v interface{}) bool { _, ok := v.(string); return ok },
	"object":    func(v interface{}) bool { _, ok := v.(primitive.D); return ok },
	"array":     func(v interface{}) bool { _, ok := bsonval.ToArray(v); return ok },
	"binData":   func(v interface{}) bool { _, ok := v.(primitive.Binary); return ok },
	"undefined": func(v interface{}) bool { _, ok := v.(primitive.Undefined); return ok },
	"objectId":  func(v interface{}) bool { _, ok := v.(primitive.ObjectID); return ok },
	"bool":      func(v interface{}) bool { _, ok := v.(bool); return ok },
	"date":      func(v interface{}) bool { _, ok := v.(primitive.DateTime); return ok },
	"null":      func(v interface{}) bool { return v == nil },
	"regex":     func(v interface{}) bool { _, ok := v.(primitive.Regex); return ok },
	"int":       func(v interface{}) bool { _, ok := v.(int32); return ok },
	"long":      func(v interface{}) bool { _, ok := v.(int64); return ok },
	"decimal":   func(v interface{}) bool { _, ok := v.(primitive.Decimal128); return ok },
	"number":    bsonval.IsNumeric,
	"minKey":    func(v interface{}) bool { _, ok := v.(primitive.MinKey); return ok },
	"maxKey":    func(v interface{}) bool { _, ok := v.(primitive.MaxKey); return ok },
}

func typeOp(arg interface{}) (fieldPredicate, error) {
	var checks []func(interface{}) bool
	add := func(a interface{}) error {
		if s, ok := a.(string); ok {
			fn, ok := typeAliases[s]
			if !ok {
				return dberr.BadValue("unknown type alias %q", s)
			}
			checks = append(checks, fn)
			return nil
		}
		return dberr.BadValue("$type requires a string alias or array of aliases")
	}
	if arr, ok := bsonval.ToArray(arg); ok {
		for _, a := range arr {
			if err := add(a); err != nil {
				return nil, err
			}
		}
	} else if err := add(arg); err != nil {
		return nil, err
	}
	matchesAny := func(v interface{}) bool {
		for _, c := range checks {
			if c(v) {
				return true
			}
		}
		return false
	}
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		if matchesAny(v) {
			return true
		}
		// "the type array matches only when V is an array" -- already
		// covered above; for non-array type aliases, also match if V is
		// an array containing an element of that type.
		if arr, ok := bsonval.ToArray(v); ok {
			for _, elt := range arr {
				if matchesAny(elt) {
					return true
				}
			}
		}
		return false
	}, nil
}

func modOp(arg interface{}) (fieldPredicate, error) {
	arr, ok := bsonval.ToArray(arg)
	if !ok || len(arr) != 2 {
		return nil, dberr.BadValue("$mod requires an array of two numbers")
	}
	divisor, ok1 := bsonval.AsFloat64(arr[0])
	remainder, ok2 := bsonval.AsFloat64(arr[1])
	if !ok1 || !ok2 || int64(divisor) == 0 {
		return nil, dberr.BadValue("$mod divisor must be a non-zero number")
	}
	d := int64(divisor)
	r := int64(remainder)
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		f, ok := bsonval.AsFloat64(v)
		if !ok {
			return false
		}
		return int64(f)%d == r
	}, nil
}

func sizeOp(arg interface{}) (fieldPredicate, error) {
	f, ok := bsonval.AsFloat64(arg)
	if !ok {
		return nil, dberr.BadValue("$size requires a numeric argument")
	}
	n := int(f)
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		arr, ok := bsonval.ToArray(v)
		return ok && len(arr) == n
	}, nil
}

func allOp(arg interface{}) (fieldPredicate, error) {
	want, ok := bsonval.ToArray(arg)
	if !ok {
		return nil, dberr.BadValue("$all requires an array argument")
	}
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		arr, ok := bsonval.ToArray(v)
		if !ok {
			return false
		}
		for _, w := range want {
			found := false
			for _, elt := range arr {
				if bsonval.Equal(elt, w) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}, nil
}

func elemMatchOp(arg interface{}) (fieldPredicate, error) {
	d, isOperatorDoc := asOperatorDoc(arg)
	if isOperatorDoc {
		preds := make([]fieldPredicate, 0, len(d))
		for _, e := range d {
			p, err := compileOperator(e.Key, e.Value, "")
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		return func(doc primitive.D, path string) bool {
			v := pathutil.Get(doc, path)
			arr, ok := bsonval.ToArray(v)
			if !ok {
				return false
			}
			for _, elt := range arr {
				wrapped := primitive.D{{Key: "v", Value: elt}}
				allOK := true
				for _, p := range preds {
					if !p(wrapped, "v") {
						allOK = false
						break
					}
				}
				if allOK {
					return true
				}
			}
			return false
		}, nil
	}

	sub, err := Compile(arg)
	if err != nil {
		return nil, err
	}
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		arr, ok := bsonval.ToArray(v)
		if !ok {
			return false
		}
		for _, elt := range arr {
			eltDoc, ok := elt.(primitive.D)
			if !ok {
				eltDoc = bsonval.ToDoc(elt)
			}
			if sub.Matches(eltDoc) {
				return true
			}
		}
		return false
	}, nil
}

func notOp(arg interface{}) (fieldPredicate, error) {
	var inner fieldPredicate
	if rx, ok := arg.(primitive.Regex); ok {
		p, err := compileRegex(rx.Pattern, rx.Options)
		if err != nil {
			return nil, err
		}
		inner = p
	} else if d, ok := asOperatorDoc(arg); ok {
		preds := make([]fieldPredicate, 0, len(d))
		for _, e := range d {
			p, err := compileOperator(e.Key, e.Value, "")
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		inner = func(doc primitive.D, path string) bool {
			for _, p := range preds {
				if !p(doc, path) {
					return false
				}
			}
			return true
		}
	} else {
		return nil, dberr.BadValue("$not requires an operator document or regex")
	}
	// "unlike $ne, does NOT match when the field is missing" (spec.md §4.2).
	return func(doc primitive.D, path string) bool {
		if !pathutil.Exists(doc, path) {
			return false
		}
		return !inner(doc, path)
	}, nil
}

func compileRegex(pattern, options string) (fieldPredicate, error) {
	rx, err := compileGoRegex(pattern, options)
	if err != nil {
		return nil, dberr.BadValue("invalid regex: %v", err)
	}
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		if s, ok := v.(string); ok {
			return rx.MatchString(s)
		}
		if arr, ok := bsonval.ToArray(v); ok {
			for _, elt := range arr {
				if s, ok := elt.(string); ok && rx.MatchString(s) {
					return true
				}
			}
		}
		return false
	}, nil
}

// compileGoRegex translates MongoDB regex option letters to Go's RE2 inline
// flags. i, m and s map directly; x is passed through too, and RE2 has no x
// flag, so a pattern with the x option fails to compile. Other letters are
// ignored.
func compileGoRegex(pattern, options string) (*regexp.Regexp, error) {
	var flags string
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags += string(o)
		case 'x':
			flags += "x"
		}
	}
	p := pattern
	if flags != "" {
		p = "(?" + flags + ")" + p
	}
	return regexp.Compile(p)
}

type bitsTest func(fieldBits, maskBits uint64, positions []uint) bool

func bitsAllSet(fieldBits, maskBits uint64, positions []uint) bool {
	if len(positions) > 0 {
		for _, p := range positions {
			if fieldBits&(uint64(1)<<p) == 0 {
				return false
			}
		}
		return true
	}
	return fieldBits&maskBits == maskBits
}

func bitsAllClear(fieldBits, maskBits uint64, positions []uint) bool {
	if len(positions) > 0 {
		for _, p := range positions {
			if fieldBits&(uint64(1)<<p) != 0 {
				return false
			}
		}
		return true
	}
	return fieldBits&maskBits == 0
}

func bitsAnySet(fieldBits, maskBits uint64, positions []uint) bool {
	if len(positions) > 0 {
		for _, p := range positions {
			if fieldBits&(uint64(1)<<p) != 0 {
				return true
			}
		}
		return false
	}
	return fieldBits&maskBits != 0
}

func bitsAnyClear(fieldBits, maskBits uint64, positions []uint) bool {
	if len(positions) > 0 {
		for _, p := range positions {
			if fieldBits&(uint64(1)<<p) == 0 {
				return true
			}
		}
		return false
	}
	return fieldBits&maskBits != maskBits
}

func bitsOp(arg interface{}, test bitsTest) (fieldPredicate, error) {
	var mask uint64
	var positions []uint
	if f, ok := bsonval.AsFloat64(arg); ok {
		mask = uint64(int64(f))
	} else if arr, ok := bsonval.ToArray(arg); ok {
		for _, p := range arr {
			f, ok := bsonval.AsFloat64(p)
			if !ok {
				return nil, dberr.BadValue("bitwise operators require numeric positions")
			}
			positions = append(positions, uint(f))
		}
	} else {
		return nil, dberr.BadValue("bitwise operators require a mask or position list")
	}
	return func(doc primitive.D, path string) bool {
		v := pathutil.Get(doc, path)
		f, ok := bsonval.AsFloat64(v)
		if !ok {
			return false
		}
		return test(uint64(int64(f)), mask, positions)
	}, nil
}
