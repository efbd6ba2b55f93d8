package pathutil

import (
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/dberr"
)

// Set writes value at path inside root, creating missing intermediate
// documents as it goes (spec.md §4.1 write-path resolution). root must be
// a primitive.D (or *primitive.D semantics via the returned, possibly new,
// document — callers should always use the returned value as the new
// root). Integer segments address array elements; growing an array to
// satisfy a numeric segment beyond its length is disallowed except through
// $push/$set, so Set performs null-fill padding (the one case spec.md
// explicitly allows for "$set on array.N").
func Set(root primitive.D, path string, value interface{}) (primitive.D, error) {
	segs := Split(path)
	newRoot, err := setSeg(root, segs, value)
	if err != nil {
		return root, err
	}
	d, ok := newRoot.(primitive.D)
	if !ok {
		return root, dberr.BadValue("cannot set path %q: root is not a document", path)
	}
	return d, nil
}

func setSeg(cur interface{}, segs []string, value interface{}) (interface{}, error) {
	seg := segs[0]
	last := len(segs) == 1

	if idx, err := strconv.Atoi(seg); err == nil {
		arr, ok := asArray(cur)
		if !ok {
			if cur == nil || isMissingLike(cur) {
				arr = primitive.A{}
			} else {
				return nil, dberr.BadValue("cannot create field %q in element that is not an array", seg)
			}
		}
		for idx >= len(arr) {
			arr = append(arr, nil)
		}
		if last {
			arr[idx] = value
		} else {
			next, err := setSeg(arr[idx], segs[1:], value)
			if err != nil {
				return nil, err
			}
			arr[idx] = next
		}
		return arr, nil
	}

	doc, ok := asDoc(cur)
	if !ok {
		if cur == nil || isMissingLike(cur) {
			doc = primitive.D{}
		} else {
			return nil, dberr.BadValue("cannot create field %q in element that is not a document", seg)
		}
	}

	for i, e := range doc {
		if e.Key == seg {
			if last {
				doc[i].Value = value
			} else {
				next, err := setSeg(e.Value, segs[1:], value)
				if err != nil {
					return nil, err
				}
				doc[i].Value = next
			}
			return doc, nil
		}
	}
	// Field absent: create it.
	if last {
		doc = append(doc, primitive.E{Key: seg, Value: value})
		return doc, nil
	}
	next, err := setSeg(nil, segs[1:], value)
	if err != nil {
		return nil, err
	}
	doc = append(doc, primitive.E{Key: seg, Value: next})
	return doc, nil
}

// Unset removes path from root if present; absent paths are a no-op.
func Unset(root primitive.D, path string) primitive.D {
	segs := Split(path)
	out, _ := unsetSeg(root, segs)
	d, ok := out.(primitive.D)
	if !ok {
		return root
	}
	return d
}

func unsetSeg(cur interface{}, segs []string) (interface{}, bool) {
	seg := segs[0]
	last := len(segs) == 1

	if idx, err := strconv.Atoi(seg); err == nil {
		arr, ok := asArray(cur)
		if !ok || idx < 0 || idx >= len(arr) {
			return cur, false
		}
		if last {
			arr[idx] = nil // $unset on an array index nulls the slot, it does not shrink the array
		} else {
			next, changed := unsetSeg(arr[idx], segs[1:])
			if changed {
				arr[idx] = next
			}
		}
		return arr, true
	}

	doc, ok := asDoc(cur)
	if !ok {
		return cur, false
	}
	for i, e := range doc {
		if e.Key == seg {
			if last {
				return append(doc[:i], doc[i+1:]...), true
			}
			next, changed := unsetSeg(e.Value, segs[1:])
			if changed {
				doc[i].Value = next
			}
			return doc, changed
		}
	}
	return doc, false
}

func asDoc(v interface{}) (primitive.D, bool) {
	switch t := v.(type) {
	case primitive.D:
		return t, true
	case primitive.M:
		d := make(primitive.D, 0, len(t))
		for k, val := range t {
			d = append(d, primitive.E{Key: k, Value: val})
		}
		return d, true
	}
	return nil, false
}

func asArray(v interface{}) (primitive.A, bool) {
	switch t := v.(type) {
	case primitive.A:
		return append(primitive.A{}, t...), true
	case []interface{}:
		return append(primitive.A{}, t...), true
	}
	return nil, false
}

func isMissingLike(v interface{}) bool {
	return v == nil
}
