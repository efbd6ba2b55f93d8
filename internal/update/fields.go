package update

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

func init() {
	registerOp("$set", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		old := pathutil.Get(doc, path)
		if bsonval.Equal(old, arg) {
			return false, doc, nil
		}
		newDoc, err := pathutil.Set(doc, path, arg)
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})

	registerOp("$setOnInsert", operators["$set"])

	registerOp("$unset", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		if !pathutil.Exists(doc, path) {
			return false, doc, nil
		}
		return true, pathutil.Unset(doc, path), nil
	})

	registerOp("$rename", func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error) {
		dest, ok := arg.(string)
		if !ok {
			return false, doc, nil
		}
		if !pathutil.Exists(doc, path) {
			return false, doc, nil
		}
		v := pathutil.Get(doc, path)
		newDoc := pathutil.Unset(doc, path)
		newDoc, err := pathutil.Set(newDoc, dest, v)
		if err != nil {
			return false, doc, err
		}
		return true, newDoc, nil
	})
}
