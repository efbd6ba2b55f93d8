package agg

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/expr"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

func init() {
	registerStage("$project", func(arg interface{}) (stage, error) {
		spec, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$project requires a document argument")
		}
		type field struct {
			key     string
			include bool
			compute *expr.Compiled
		}
		fields := make([]field, 0, len(spec))
		idExcluded := false
		anyInclude := false
		for _, e := range spec {
			switch v := e.Value.(type) {
			case int32, int64, float64:
				f, _ := bsonval.AsFloat64(v)
				if f == 0 {
					if e.Key == "_id" {
						idExcluded = true
					}
					fields = append(fields, field{key: e.Key, include: false})
				} else {
					anyInclude = true
					fields = append(fields, field{key: e.Key, include: true})
				}
			case bool:
				if !v && e.Key == "_id" {
					idExcluded = true
				}
				if v {
					anyInclude = true
				}
				fields = append(fields, field{key: e.Key, include: v})
			default:
				c, err := expr.Compile(e.Value)
				if err != nil {
					return nil, err
				}
				anyInclude = true
				fields = append(fields, field{key: e.Key, include: true, compute: c})
			}
		}
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			out := make([]primitive.D, len(docs))
			for i, d := range docs {
				var res primitive.D
				if anyInclude {
					if !idExcluded {
						res = append(res, primitive.E{Key: "_id", Value: fieldValue(d, "_id")})
					}
					for _, f := range fields {
						if f.key == "_id" || !f.include {
							continue
						}
						var val interface{}
						if f.compute != nil {
							v, err := f.compute.Eval(d)
							if err != nil {
								return nil, err
							}
							val = v
						} else {
							val = pathutil.Get(d, f.key)
						}
						if !bsonval.IsMissing(val) {
							res = setDotted(res, f.key, val)
						}
					}
				} else {
					res = append(primitive.D{}, d...)
					for _, f := range fields {
						res = unsetDotted(res, f.key)
					}
				}
				out[i] = res
			}
			return out, nil
		}, nil
	})

	registerStage("$addFields", addFieldsStage)
	registerStage("$set", addFieldsStage)

	registerStage("$unset", func(arg interface{}) (stage, error) {
		var paths []string
		switch v := arg.(type) {
		case string:
			paths = []string{v}
		default:
			arr, ok := bsonval.ToArray(v)
			if !ok {
				return nil, dberr.BadValue("$unset requires a string or array of strings")
			}
			for _, it := range arr {
				if s, ok := it.(string); ok {
					paths = append(paths, s)
				}
			}
		}
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			out := make([]primitive.D, len(docs))
			for i, d := range docs {
				res := append(primitive.D{}, d...)
				for _, p := range paths {
					res = unsetDotted(res, p)
				}
				out[i] = res
			}
			return out, nil
		}, nil
	})

	registerStage("$replaceRoot", func(arg interface{}) (stage, error) {
		d, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$replaceRoot requires a document argument")
		}
		newRootRaw, _ := docGetAgg(d, "newRoot")
		c, err := expr.Compile(newRootRaw)
		if err != nil {
			return nil, err
		}
		return replaceRootStage(c), nil
	})

	registerStage("$replaceWith", func(arg interface{}) (stage, error) {
		c, err := expr.Compile(arg)
		if err != nil {
			return nil, err
		}
		return replaceRootStage(c), nil
	})
}

func replaceRootStage(c *expr.Compiled) stage {
	return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
		out := make([]primitive.D, 0, len(docs))
		for _, d := range docs {
			v, err := c.Eval(d)
			if err != nil {
				return nil, err
			}
			nd, ok := asDoc(v)
			if !ok {
				return nil, dberr.BadValue("$replaceRoot/$replaceWith must evaluate to a document")
			}
			out = append(out, nd)
		}
		return out, nil
	}
}

func addFieldsStage(arg interface{}) (stage, error) {
	spec, ok := asDoc(arg)
	if !ok {
		return nil, dberr.BadValue("$addFields/$set requires a document argument")
	}
	type field struct {
		key     string
		compute *expr.Compiled
	}
	fields := make([]field, 0, len(spec))
	for _, e := range spec {
		c, err := expr.Compile(e.Value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field{e.Key, c})
	}
	return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
		out := make([]primitive.D, len(docs))
		for i, d := range docs {
			res := append(primitive.D{}, d...)
			for _, f := range fields {
				v, err := f.compute.Eval(d)
				if err != nil {
					return nil, err
				}
				res = setDotted(res, f.key, v)
			}
			out[i] = res
		}
		return out, nil
	}, nil
}

func docGetAgg(d primitive.D, key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func setDotted(doc primitive.D, path string, value interface{}) primitive.D {
	segs := strings.Split(path, ".")
	out, _ := setSegAgg(doc, segs, value)
	d, ok := out.(primitive.D)
	if !ok {
		return doc
	}
	return d
}

func setSegAgg(cur interface{}, segs []string, value interface{}) (interface{}, bool) {
	seg := segs[0]
	last := len(segs) == 1
	doc, ok := cur.(primitive.D)
	if !ok {
		doc = primitive.D{}
	}
	for i, e := range doc {
		if e.Key == seg {
			if last {
				doc[i].Value = value
			} else {
				next, _ := setSegAgg(e.Value, segs[1:], value)
				doc[i].Value = next
			}
			return doc, true
		}
	}
	if last {
		return append(doc, primitive.E{Key: seg, Value: value}), true
	}
	next, _ := setSegAgg(nil, segs[1:], value)
	return append(doc, primitive.E{Key: seg, Value: next}), true
}

func unsetDotted(doc primitive.D, path string) primitive.D {
	segs := strings.Split(path, ".")
	out, _ := unsetSegAgg(doc, segs)
	d, ok := out.(primitive.D)
	if !ok {
		return doc
	}
	return d
}

func unsetSegAgg(cur interface{}, segs []string) (interface{}, bool) {
	doc, ok := cur.(primitive.D)
	if !ok {
		return cur, false
	}
	seg := segs[0]
	last := len(segs) == 1
	for i, e := range doc {
		if e.Key == seg {
			if last {
				return append(doc[:i:i], doc[i+1:]...), true
			}
			next, changed := unsetSegAgg(e.Value, segs[1:])
			if changed {
				doc[i].Value = next
			}
			return doc, changed
		}
	}
	return doc, false
}
