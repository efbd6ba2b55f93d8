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
	registerStage("$lookup", func(arg interface{}) (stage, error) {
		spec, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$lookup requires a document argument")
		}
		var from, as string
		var localField, foreignField string
		var letSpec primitive.D
		var subPipelineRaw interface{}
		hasSubPipeline := false
		for _, e := range spec {
			switch e.Key {
			case "from":
				from, _ = e.Value.(string)
			case "as":
				as, _ = e.Value.(string)
			case "localField":
				localField, _ = e.Value.(string)
			case "foreignField":
				foreignField, _ = e.Value.(string)
			case "let":
				letSpec, _ = asDoc(e.Value)
			case "pipeline":
				subPipelineRaw = e.Value
				hasSubPipeline = true
			}
		}
		if from == "" || as == "" {
			return nil, dberr.FailedToParse("$lookup requires 'from' and 'as'")
		}
		if hasSubPipeline {
			if _, err := Compile(subPipelineRaw); err != nil {
				return nil, err
			}
		}
		type letField struct {
			key string
			c   *expr.Compiled
		}
		letFields := make([]letField, 0, len(letSpec))
		for _, e := range letSpec {
			c, err := expr.Compile(e.Value)
			if err != nil {
				return nil, err
			}
			letFields = append(letFields, letField{e.Key, c})
		}
		return func(env Env, docs []primitive.D) ([]primitive.D, error) {
			if env.Resolve == nil {
				return nil, dberr.New(dberr.CodeInternalError, "$lookup: no collection resolver configured")
			}
			foreign, err := env.Resolve(from)
			if err != nil {
				return nil, err
			}
			out := make([]primitive.D, len(docs))
			for i, d := range docs {
				var matches []primitive.D
				if hasSubPipeline {
					vars := map[string]interface{}{}
					for _, lf := range letFields {
						v, err := lf.c.Eval(d)
						if err != nil {
							return nil, err
						}
						vars[lf.key] = v
					}
					bound := substituteVars(subPipelineRaw, vars)
					p, err := Compile(bound)
					if err != nil {
						return nil, err
					}
					matches, err = p.Run(env, foreign)
					if err != nil {
						return nil, err
					}
				} else {
					lv := fieldValue(d, localField)
					for _, fd := range foreign {
						fv := fieldValue(fd, foreignField)
						if valuesMatch(lv, fv) {
							matches = append(matches, fd)
						}
					}
				}
				res := append(primitive.D{}, d...)
				arr := make(primitive.A, len(matches))
				for j, m := range matches {
					arr[j] = m
				}
				res = setDotted(res, as, arr)
				out[i] = res
			}
			return out, nil
		}, nil
	})

	registerStage("$unionWith", func(arg interface{}) (stage, error) {
		var coll string
		var subPipeline interface{}
		switch v := arg.(type) {
		case string:
			coll = v
		default:
			d, ok := asDoc(v)
			if !ok {
				return nil, dberr.BadValue("$unionWith requires a string or document argument")
			}
			for _, e := range d {
				switch e.Key {
				case "coll":
					coll, _ = e.Value.(string)
				case "pipeline":
					subPipeline = e.Value
				}
			}
		}
		if coll == "" {
			return nil, dberr.FailedToParse("$unionWith requires a collection name")
		}
		var compiledSub *Pipeline
		var err error
		if subPipeline != nil {
			compiledSub, err = Compile(subPipeline)
			if err != nil {
				return nil, err
			}
		}
		return func(env Env, docs []primitive.D) ([]primitive.D, error) {
			if env.Resolve == nil {
				return nil, dberr.New(dberr.CodeInternalError, "$unionWith: no collection resolver configured")
			}
			other, err := env.Resolve(coll)
			if err != nil {
				return nil, err
			}
			if compiledSub != nil {
				other, err = compiledSub.Run(env, other)
				if err != nil {
					return nil, err
				}
			}
			out := make([]primitive.D, 0, len(docs)+len(other))
			out = append(out, docs...)
			out = append(out, other...)
			return out, nil
		}, nil
	})
}

// substituteVars walks a raw pipeline/expression tree and replaces any
// "$$name" or "$$name.tail" string leaf with its bound $let value, resolved
// ahead of compilation so the sub-pipeline never needs its own variable
// scope at evaluation time.
func substituteVars(raw interface{}, vars map[string]interface{}) interface{} {
	switch v := raw.(type) {
	case string:
		if !strings.HasPrefix(v, "$$") {
			return v
		}
		rest := v[2:]
		name := rest
		tail := ""
		if idx := strings.IndexByte(rest, '.'); idx >= 0 {
			name, tail = rest[:idx], rest[idx+1:]
		}
		if name == "ROOT" || name == "CURRENT" || name == "NOW" {
			return v
		}
		val, ok := vars[name]
		if !ok {
			return v
		}
		if tail == "" {
			return val
		}
		return pathutil.Get(val, tail)
	case primitive.D:
		out := make(primitive.D, len(v))
		for i, e := range v {
			out[i] = primitive.E{Key: e.Key, Value: substituteVars(e.Value, vars)}
		}
		return out
	case primitive.M:
		out := primitive.M{}
		for k, e := range v {
			out[k] = substituteVars(e, vars)
		}
		return out
	case primitive.A:
		out := make(primitive.A, len(v))
		for i, e := range v {
			out[i] = substituteVars(e, vars)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = substituteVars(e, vars)
		}
		return out
	default:
		return v
	}
}

func valuesMatch(a, b interface{}) bool {
	aArr, aIsArr := bsonval.ToArray(a)
	bArr, bIsArr := bsonval.ToArray(b)
	if !aIsArr && !bIsArr {
		return bsonval.Equal(a, b)
	}
	if aIsArr {
		for _, av := range aArr {
			if bIsArr {
				for _, bv := range bArr {
					if bsonval.Equal(av, bv) {
						return true
					}
				}
			} else if bsonval.Equal(av, b) {
				return true
			}
		}
		return false
	}
	for _, bv := range bArr {
		if bsonval.Equal(a, bv) {
			return true
		}
	}
	return false
}
