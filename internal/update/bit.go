package update

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

func asIntBits(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int32:
		return int64(t), true
	case int64:
		return t, true
	}
	return 0, false
}

func init() {
	registerOp("$bit", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		d, ok := asDoc(arg)
		if !ok {
			return false, doc, dberr.BadValue("$bit requires a document argument")
		}
		old := pathutil.Get(doc, path)
		var oldBits int64
		if !bsonval.IsMissing(old) && old != nil {
			b, ok := asIntBits(old)
			if !ok {
				return false, doc, dberr.BadValue("$bit requires an integer field, got %T", old)
			}
			oldBits = b
		}
		newBits := oldBits
		for _, e := range d {
			mask, ok := asIntBits(e.Value)
			if !ok {
				return false, doc, dberr.BadValue("$bit operand must be an integer")
			}
			switch e.Key {
			case "and":
				newBits &= mask
			case "or":
				newBits |= mask
			case "xor":
				newBits ^= mask
			default:
				return false, doc, dberr.BadValue("$bit: unsupported operation %q", e.Key)
			}
		}
		var newVal interface{} = newBits
		if _, wasInt32 := old.(int32); wasInt32 || old == nil || bsonval.IsMissing(old) {
			if i32, fits := int32Fits(newBits); fits {
				newVal = i32
			}
		}
		if newBits == oldBits {
			return false, doc, nil
		}
		newDoc, err := pathutil.Set(doc, path, newVal)
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})
}

func int32Fits(v int64) (int32, bool) {
	if v >= -2147483648 && v <= 2147483647 {
		return int32(v), true
	}
	return 0, false
}
