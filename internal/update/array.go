package update

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/match"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

func existingArray(doc primitive.D, path string) ([]interface{}, error) {
	old := pathutil.Get(doc, path)
	if bsonval.IsMissing(old) || old == nil {
		return nil, nil
	}
	switch t := old.(type) {
	case primitive.A:
		return append([]interface{}{}, []interface{}(t)...), nil
	case []interface{}:
		return append([]interface{}{}, t...), nil
	default:
		return nil, dberr.BadValue("path contains a non-array element")
	}
}

func init() {
	registerOp("$push", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		arr, err := existingArray(doc, path)
		if err != nil {
			return false, doc, err
		}
		items := []interface{}{arg}
		var sliceN *int
		var sortSpec interface{}
		var position *int
		if d, ok := asDoc(arg); ok && hasKey(d, "$each") {
			items = nil
			for _, e := range d {
				switch e.Key {
				case "$each":
					each, _ := bsonval.ToArray(e.Value)
					items = each
				case "$slice":
					if f, ok := bsonval.AsFloat64(e.Value); ok {
						n := int(f)
						sliceN = &n
					}
				case "$sort":
					sortSpec = e.Value
				case "$position":
					if f, ok := bsonval.AsFloat64(e.Value); ok {
						n := int(f)
						position = &n
					}
				}
			}
		}
		if position != nil {
			pos := *position
			if pos < 0 {
				pos = len(arr) + pos
			}
			if pos < 0 {
				pos = 0
			}
			if pos > len(arr) {
				pos = len(arr)
			}
			merged := make([]interface{}, 0, len(arr)+len(items))
			merged = append(merged, arr[:pos]...)
			merged = append(merged, items...)
			merged = append(merged, arr[pos:]...)
			arr = merged
		} else {
			arr = append(arr, items...)
		}
		if sortSpec != nil {
			switch s := sortSpec.(type) {
			case int32:
				sortScalarArr(arr, int(s))
			case int64:
				sortScalarArr(arr, int(s))
			case float64:
				sortScalarArr(arr, int(s))
			case primitive.D:
				sortByFieldsArr(arr, s)
			}
		}
		if sliceN != nil {
			n := *sliceN
			switch {
			case n == 0:
				arr = nil
			case n > 0:
				if n < len(arr) {
					arr = arr[:n]
				}
			default:
				if -n < len(arr) {
					arr = arr[len(arr)+n:]
				}
			}
		}
		newDoc, err := pathutil.Set(doc, path, primitive.A(arr))
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})

	registerOp("$pop", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		arr, err := existingArray(doc, path)
		if err != nil {
			return false, doc, err
		}
		if len(arr) == 0 {
			return false, doc, nil
		}
		f, _ := bsonval.AsFloat64(arg)
		if f < 0 {
			arr = arr[1:]
		} else {
			arr = arr[:len(arr)-1]
		}
		newDoc, err := pathutil.Set(doc, path, primitive.A(arr))
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})

	registerOp("$pull", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		arr, err := existingArray(doc, path)
		if err != nil {
			return false, doc, err
		}
		if arr == nil {
			return false, doc, nil
		}
		matches, err := pullPredicate(arg)
		if err != nil {
			return false, doc, err
		}
		out := make([]interface{}, 0, len(arr))
		changed := false
		for _, e := range arr {
			if matches(e) {
				changed = true
				continue
			}
			out = append(out, e)
		}
		if !changed {
			return false, doc, nil
		}
		newDoc, err := pathutil.Set(doc, path, primitive.A(out))
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})

	registerOp("$pullAll", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		arr, err := existingArray(doc, path)
		if err != nil {
			return false, doc, err
		}
		if arr == nil {
			return false, doc, nil
		}
		removeVals, ok := bsonval.ToArray(arg)
		if !ok {
			return false, doc, dberr.BadValue("$pullAll requires an array argument")
		}
		out := make([]interface{}, 0, len(arr))
		changed := false
		for _, e := range arr {
			remove := false
			for _, r := range removeVals {
				if bsonval.Equal(e, r) {
					remove = true
					break
				}
			}
			if remove {
				changed = true
				continue
			}
			out = append(out, e)
		}
		if !changed {
			return false, doc, nil
		}
		newDoc, err := pathutil.Set(doc, path, primitive.A(out))
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})

	registerOp("$addToSet", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		arr, err := existingArray(doc, path)
		if err != nil {
			return false, doc, err
		}
		items := []interface{}{arg}
		if d, ok := asDoc(arg); ok && hasKey(d, "$each") && len(d) == 1 {
			each, _ := bsonval.ToArray(d[0].Value)
			items = each
		}
		changed := false
		for _, it := range items {
			found := false
			for _, e := range arr {
				if bsonval.Equal(e, it) {
					found = true
					break
				}
			}
			if !found {
				arr = append(arr, it)
				changed = true
			}
		}
		if !changed {
			return false, doc, nil
		}
		newDoc, err := pathutil.Set(doc, path, primitive.A(arr))
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})
}

func hasKey(d primitive.D, key string) bool {
	for _, e := range d {
		if e.Key == key {
			return true
		}
	}
	return false
}

// pullPredicate builds the element-removal test for $pull: arg may be a
// literal (element equality, or sub-document query if arr holds documents),
// or a query-operator document evaluated against each element.
func pullPredicate(arg interface{}) (func(interface{}) bool, error) {
	if d, ok := asDoc(arg); ok && isQueryLikeDoc(d) {
		m, err := match.Compile(primitive.D{{Key: "x", Value: arg}})
		if err != nil {
			return nil, err
		}
		return func(elt interface{}) bool {
			return m.Matches(primitive.D{{Key: "x", Value: elt}})
		}, nil
	}
	if d, ok := asDoc(arg); ok {
		m, err := match.Compile(d)
		if err != nil {
			return nil, err
		}
		return func(elt interface{}) bool {
			ed, ok := asDoc(elt)
			return ok && m.Matches(ed)
		}, nil
	}
	return func(elt interface{}) bool {
		return bsonval.Equal(elt, arg)
	}, nil
}

// isQueryLikeDoc reports whether d looks like a match-operator document
// rather than a plain equality sub-document target for $pull.
func isQueryLikeDoc(d primitive.D) bool {
	for _, e := range d {
		if len(e.Key) > 0 && e.Key[0] == '$' {
			return true
		}
	}
	return false
}

func sortScalarArr(arr []interface{}, dir int) {
	sort.SliceStable(arr, func(i, j int) bool {
		c := bsonval.Compare(arr[i], arr[j])
		if dir < 0 {
			return c > 0
		}
		return c < 0
	})
}

func sortByFieldsArr(arr []interface{}, spec primitive.D) {
	sort.SliceStable(arr, func(i, j int) bool {
		for _, e := range spec {
			dir := 1
			if f, ok := bsonval.AsFloat64(e.Value); ok && f < 0 {
				dir = -1
			}
			vi := pathutil.Get(docOf(arr[i]), e.Key)
			vj := pathutil.Get(docOf(arr[j]), e.Key)
			c := bsonval.Compare(vi, vj)
			if c != 0 {
				if dir < 0 {
					return c > 0
				}
				return c < 0
			}
		}
		return false
	})
}

func docOf(v interface{}) primitive.D {
	d, _ := asDoc(v)
	return d
}
