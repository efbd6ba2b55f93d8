package update

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

func widenNumeric(a, b interface{}) interface{} {
	_, aIsFloat := a.(float64)
	_, bIsFloat := b.(float64)
	_, aIsInt64 := a.(int64)
	_, bIsInt64 := b.(int64)
	af, _ := bsonval.AsFloat64(a)
	bf, _ := bsonval.AsFloat64(b)
	sum := af + bf
	switch {
	case aIsFloat || bIsFloat:
		return sum
	case aIsInt64 || bIsInt64:
		return int64(sum)
	default:
		return int32(sum)
	}
}

func multiplyNumeric(a, b interface{}) interface{} {
	_, aIsFloat := a.(float64)
	_, bIsFloat := b.(float64)
	_, aIsInt64 := a.(int64)
	_, bIsInt64 := b.(int64)
	af, _ := bsonval.AsFloat64(a)
	bf, _ := bsonval.AsFloat64(b)
	prod := af * bf
	switch {
	case aIsFloat || bIsFloat:
		return prod
	case aIsInt64 || bIsInt64:
		return int64(prod)
	default:
		return int32(prod)
	}
}

func numericArithOp(name string, combine func(old, delta interface{}) interface{}) {
	registerOp(name, func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		if !bsonval.IsNumeric(arg) {
			return false, doc, dberr.BadValue("Cannot apply %s to a value of non-numeric type", name)
		}
		old := pathutil.Get(doc, path)
		var newVal interface{}
		if bsonval.IsMissing(old) || old == nil {
			newVal = arg
		} else if !bsonval.IsNumeric(old) {
			return false, doc, dberr.BadValue("Cannot apply %s to a value of non-numeric type at path %q", name, path)
		} else {
			newVal = combine(old, arg)
		}
		if bsonval.Equal(old, newVal) {
			return false, doc, nil
		}
		newDoc, err := pathutil.Set(doc, path, newVal)
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})
}

func minMaxOp(name string, wantLower bool) {
	registerOp(name, func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		old := pathutil.Get(doc, path)
		if bsonval.IsMissing(old) || old == nil {
			newDoc, err := pathutil.Set(doc, path, arg)
			return true, newDoc, err
		}
		c := bsonval.Compare(arg, old)
		replace := (wantLower && c < 0) || (!wantLower && c > 0)
		if !replace {
			return false, doc, nil
		}
		newDoc, err := pathutil.Set(doc, path, arg)
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})
}

func init() {
	numericArithOp("$inc", widenNumeric)
	numericArithOp("$mul", multiplyNumeric)
	minMaxOp("$min", true)
	minMaxOp("$max", false)

	registerOp("$currentDate", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		var value interface{} = primitive.NewDateTimeFromTime(time.Now())
		if d, ok := asDoc(arg); ok {
			for _, e := range d {
				if e.Key == "$type" {
					if s, ok := e.Value.(string); ok && s == "timestamp" {
						now := time.Now()
						value = primitive.Timestamp{T: uint32(now.Unix()), I: 1}
					}
				}
			}
		}
		newDoc, err := pathutil.Set(doc, path, value)
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})
}
