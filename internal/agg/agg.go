// Package agg implements the aggregation pipeline of spec.md §4.5: a
// sequence of stages transforming an in-memory document stream. The engine
// favors a materialized intermediate (a []primitive.D per stage boundary)
// over true streaming, matching the package's explicit non-goal of a
// cost-based query planner — correctness and spec coverage over throughput.
package agg

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/expr"
	"github.com/JKershaw/mangodb/internal/match"
)

// Lookup resolves another collection's full document set by name, letting
// $lookup/$unionWith cross collection boundaries without this
// package depending on the root mangodb package (avoiding an import cycle).
type Lookup func(collection string) ([]primitive.D, error)

// Env is the cross-stage context a compiled Pipeline runs with.
type Env struct {
	Resolve Lookup
}

// stage is one compiled pipeline step.
type stage func(env Env, docs []primitive.D) ([]primitive.D, error)

// Pipeline is a compiled aggregation pipeline ready for repeated Run calls.
type Pipeline struct {
	stages []stage
}

// Compile compiles a raw pipeline array (spec.md §4.5) into a Pipeline.
func Compile(raw interface{}) (*Pipeline, error) {
	arr, ok := bsonval.ToArray(raw)
	if !ok {
		return nil, dberr.FailedToParse("aggregate pipeline must be an array")
	}
	p := &Pipeline{}
	for _, item := range arr {
		d, ok := asDoc(item)
		if !ok || len(d) != 1 {
			return nil, dberr.FailedToParse("each pipeline stage must be a single-key document")
		}
		s, err := compileStage(d[0].Key, d[0].Value)
		if err != nil {
			return nil, err
		}
		p.stages = append(p.stages, s)
	}
	return p, nil
}

// Run executes the compiled pipeline against docs in env.
func (p *Pipeline) Run(env Env, docs []primitive.D) ([]primitive.D, error) {
	cur := docs
	var err error
	for _, s := range p.stages {
		cur, err = s(env, cur)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func compileStage(name string, arg interface{}) (stage, error) {
	builder, ok := stageRegistry[name]
	if !ok {
		return nil, dberr.FailedToParse("unknown aggregation stage: %s", name)
	}
	return builder(arg)
}

var stageRegistry = map[string]func(interface{}) (stage, error){}

func registerStage(name string, fn func(interface{}) (stage, error)) {
	stageRegistry[name] = fn
}

func asDoc(v interface{}) (primitive.D, bool) {
	switch t := v.(type) {
	case primitive.D:
		return t, true
	case primitive.M:
		return bsonval.ToDoc(t), true
	case map[string]interface{}:
		return bsonval.ToDoc(t), true
	}
	return nil, false
}

func evalExprDoc(doc primitive.D, compiled *expr.Compiled) (interface{}, error) {
	return compiled.Eval(doc)
}

func init() {
	registerStage("$match", func(arg interface{}) (stage, error) {
		d, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$match requires a document argument")
		}
		m, err := match.Compile(d)
		if err != nil {
			return nil, err
		}
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			out := make([]primitive.D, 0, len(docs))
			for _, d := range docs {
				if m.Matches(d) {
					out = append(out, d)
				}
			}
			return out, nil
		}, nil
	})

	registerStage("$sort", func(arg interface{}) (stage, error) {
		spec, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$sort requires a document argument")
		}
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			out := append([]primitive.D{}, docs...)
			sort.SliceStable(out, func(i, j int) bool {
				return lessByFields(out[i], out[j], spec)
			})
			return out, nil
		}, nil
	})

	registerStage("$limit", func(arg interface{}) (stage, error) {
		f, ok := bsonval.AsFloat64(arg)
		if !ok {
			return nil, dberr.BadValue("$limit requires a numeric argument")
		}
		n := int(f)
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			if n < len(docs) {
				return docs[:n], nil
			}
			return docs, nil
		}, nil
	})

	registerStage("$skip", func(arg interface{}) (stage, error) {
		f, ok := bsonval.AsFloat64(arg)
		if !ok {
			return nil, dberr.BadValue("$skip requires a numeric argument")
		}
		n := int(f)
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			if n >= len(docs) {
				return nil, nil
			}
			return docs[n:], nil
		}, nil
	})

	registerStage("$count", func(arg interface{}) (stage, error) {
		field, ok := arg.(string)
		if !ok {
			return nil, dberr.BadValue("$count requires a string argument")
		}
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			return []primitive.D{{{Key: field, Value: int32(len(docs))}}}, nil
		}, nil
	})
}

func lessByFields(a, b primitive.D, spec primitive.D) bool {
	for _, e := range spec {
		dir := 1
		if f, ok := bsonval.AsFloat64(e.Value); ok && f < 0 {
			dir = -1
		}
		va := fieldValue(a, e.Key)
		vb := fieldValue(b, e.Key)
		c := bsonval.Compare(bsonval.SortKey(va, dir < 0), bsonval.SortKey(vb, dir < 0))
		if c != 0 {
			if dir < 0 {
				return c > 0
			}
			return c < 0
		}
	}
	return false
}

func fieldValue(doc primitive.D, path string) interface{} {
	segs := strings.Split(path, ".")
	var cur interface{} = doc
	for _, s := range segs {
		cur = childField(cur, s)
	}
	return cur
}

func childField(v interface{}, key string) interface{} {
	switch t := v.(type) {
	case primitive.D:
		for _, e := range t {
			if e.Key == key {
				return e.Value
			}
		}
	case primitive.M:
		return t[key]
	}
	return bsonval.Missing{}
}
