package agg

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
)

func init() {
	registerStage("$unwind", func(arg interface{}) (stage, error) {
		var path string
		var includeIndex string
		var preserveEmpty bool
		switch v := arg.(type) {
		case string:
			path = v
		default:
			d, ok := asDoc(v)
			if !ok {
				return nil, dberr.BadValue("$unwind requires a string or document argument")
			}
			for _, e := range d {
				switch e.Key {
				case "path":
					s, _ := e.Value.(string)
					path = s
				case "includeArrayIndex":
					s, _ := e.Value.(string)
					includeIndex = s
				case "preserveNullAndEmptyArrays":
					b, _ := e.Value.(bool)
					preserveEmpty = b
				}
			}
		}
		field := strings.TrimPrefix(path, "$")
		if field == "" {
			return nil, dberr.BadValue("$unwind requires a non-empty field path")
		}
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			var out []primitive.D
			for _, d := range docs {
				val := fieldValue(d, field)
				arr, isArr := bsonval.ToArray(val)
				if bsonval.IsMissing(val) || (isArr && len(arr) == 0) || (!isArr && val == nil) {
					if preserveEmpty {
						res := append(primitive.D{}, d...)
						if !isArr {
							res = unsetDotted(res, field)
						}
						out = append(out, res)
					}
					continue
				}
				if !isArr {
					arr = primitive.A{val}
				}
				for i, item := range arr {
					res := append(primitive.D{}, d...)
					res = setDotted(res, field, item)
					if includeIndex != "" {
						res = setDotted(res, includeIndex, int64(i))
					}
					out = append(out, res)
				}
			}
			return out, nil
		}, nil
	})
}
