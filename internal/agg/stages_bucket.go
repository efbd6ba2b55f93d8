package agg

import (
	"math/rand"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/expr"
)

func init() {
	registerStage("$bucket", func(arg interface{}) (stage, error) {
		spec, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$bucket requires a document argument")
		}
		groupByRaw, _ := docGetAgg(spec, "groupBy")
		groupBy, err := expr.Compile(groupByRaw)
		if err != nil {
			return nil, err
		}
		boundariesRaw, _ := docGetAgg(spec, "boundaries")
		boundariesArr, ok := bsonval.ToArray(boundariesRaw)
		if !ok || len(boundariesArr) < 2 {
			return nil, dberr.BadValue("$bucket requires at least two boundaries")
		}
		boundaries := []interface{}(boundariesArr)
		defaultVal, hasDefault := docGetAgg(spec, "default")

		type outField struct {
			key  string
			c    accumulator
			expr *expr.Compiled
		}
		var outputs []outField
		if outSpec, ok := docGetAgg(spec, "output"); ok {
			od, _ := asDoc(outSpec)
			for _, e := range od {
				fd, ok := asDoc(e.Value)
				if !ok || len(fd) != 1 {
					return nil, dberr.FailedToParse("$bucket output field %q must name one accumulator", e.Key)
				}
				acc, ok := accumulators[fd[0].Key]
				if !ok {
					return nil, dberr.FailedToParse("unknown $bucket accumulator: %s", fd[0].Key)
				}
				c, err := expr.Compile(fd[0].Value)
				if err != nil {
					return nil, err
				}
				outputs = append(outputs, outField{e.Key, acc, c})
			}
		} else {
			outputs = []outField{{"count", accumulators["$sum"], mustCompileConst(int32(1))}}
		}

		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			type bucket struct {
				id    interface{}
				state []interface{}
			}
			buckets := map[interface{}]*bucket{}
			var order []interface{}
			getBucket := func(id interface{}) *bucket {
				b, ok := buckets[id]
				if !ok {
					b = &bucket{id: id, state: make([]interface{}, len(outputs))}
					for i, o := range outputs {
						b.state[i] = o.c.init()
					}
					buckets[id] = b
					order = append(order, id)
				}
				return b
			}
			for _, d := range docs {
				v, err := groupBy.Eval(d)
				if err != nil {
					return nil, err
				}
				id, matched := boundaryBucket(v, boundaries)
				if !matched {
					if !hasDefault {
						return nil, dberr.BadValue("$bucket: value does not fall within any boundary and no default was specified")
					}
					id = defaultVal
				}
				b := getBucket(id)
				for i, o := range outputs {
					val, err := o.expr.Eval(d)
					if err != nil {
						return nil, err
					}
					b.state[i] = o.c.step(b.state[i], val)
				}
			}
			sort.SliceStable(order, func(i, j int) bool {
				return bsonval.Compare(order[i], order[j]) < 0
			})
			out := make([]primitive.D, 0, len(order))
			for _, id := range order {
				b := buckets[id]
				res := primitive.D{{Key: "_id", Value: b.id}}
				for i, o := range outputs {
					res = append(res, primitive.E{Key: o.key, Value: o.c.finish(b.state[i])})
				}
				out = append(out, res)
			}
			return out, nil
		}, nil
	})

	registerStage("$bucketAuto", func(arg interface{}) (stage, error) {
		spec, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$bucketAuto requires a document argument")
		}
		groupByRaw, _ := docGetAgg(spec, "groupBy")
		groupBy, err := expr.Compile(groupByRaw)
		if err != nil {
			return nil, err
		}
		bucketsRaw, _ := docGetAgg(spec, "buckets")
		f, ok := bsonval.AsFloat64(bucketsRaw)
		if !ok || f < 1 {
			return nil, dberr.BadValue("$bucketAuto requires a positive integer 'buckets'")
		}
		numBuckets := int(f)

		type outField struct {
			key  string
			c    accumulator
			expr *expr.Compiled
		}
		var outputs []outField
		if outSpec, ok := docGetAgg(spec, "output"); ok {
			od, _ := asDoc(outSpec)
			for _, e := range od {
				fd, ok := asDoc(e.Value)
				if !ok || len(fd) != 1 {
					return nil, dberr.FailedToParse("$bucketAuto output field %q must name one accumulator", e.Key)
				}
				acc, ok := accumulators[fd[0].Key]
				if !ok {
					return nil, dberr.FailedToParse("unknown $bucketAuto accumulator: %s", fd[0].Key)
				}
				c, err := expr.Compile(fd[0].Value)
				if err != nil {
					return nil, err
				}
				outputs = append(outputs, outField{e.Key, acc, c})
			}
		} else {
			outputs = []outField{{"count", accumulators["$sum"], mustCompileConst(int32(1))}}
		}

		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			type scored struct {
				doc primitive.D
				key interface{}
			}
			vals := make([]scored, len(docs))
			for i, d := range docs {
				v, err := groupBy.Eval(d)
				if err != nil {
					return nil, err
				}
				vals[i] = scored{d, v}
			}
			sort.SliceStable(vals, func(i, j int) bool {
				return bsonval.Compare(vals[i].key, vals[j].key) < 0
			})
			n := len(vals)
			if n == 0 {
				return nil, nil
			}
			perBucket := n / numBuckets
			if perBucket == 0 {
				perBucket = 1
			}
			remainder := n % numBuckets
			var out []primitive.D
			idx := 0
			for b := 0; b < numBuckets && idx < n; b++ {
				size := perBucket
				if b < remainder {
					size++
				}
				end := idx + size
				if end > n {
					end = n
				}
				if end <= idx {
					break
				}
				group := vals[idx:end]
				minKey := group[0].key
				var maxKey interface{}
				if end < n {
					maxKey = vals[end].key
				} else {
					maxKey = group[len(group)-1].key
				}
				state := make([]interface{}, len(outputs))
				for i, o := range outputs {
					state[i] = o.c.init()
				}
				for _, g := range group {
					for i, o := range outputs {
						val, err := o.expr.Eval(g.doc)
						if err != nil {
							return nil, err
						}
						state[i] = o.c.step(state[i], val)
					}
				}
				res := primitive.D{{Key: "_id", Value: primitive.D{{Key: "min", Value: minKey}, {Key: "max", Value: maxKey}}}}
				for i, o := range outputs {
					res = append(res, primitive.E{Key: o.key, Value: o.c.finish(state[i])})
				}
				out = append(out, res)
				idx = end
			}
			return out, nil
		}, nil
	})

	registerStage("$sample", func(arg interface{}) (stage, error) {
		spec, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$sample requires a document argument")
		}
		sizeRaw, _ := docGetAgg(spec, "size")
		f, ok := bsonval.AsFloat64(sizeRaw)
		if !ok || f < 0 {
			return nil, dberr.BadValue("$sample requires a non-negative 'size'")
		}
		size := int(f)
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			return reservoirSample(docs, size), nil
		}, nil
	})

	registerStage("$facet", func(arg interface{}) (stage, error) {
		spec, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$facet requires a document argument")
		}
		type facet struct {
			key string
			p   *Pipeline
		}
		facets := make([]facet, 0, len(spec))
		for _, e := range spec {
			if arr, ok := bsonval.ToArray(e.Value); ok {
				for _, item := range arr {
					if sd, ok := asDoc(item); ok && len(sd) == 1 {
						switch sd[0].Key {
						case "$facet", "$out", "$geoNear":
							return nil, dberr.BadValue("$facet sub-pipeline %q may not contain %s", e.Key, sd[0].Key)
						}
					}
				}
			}
			p, err := Compile(e.Value)
			if err != nil {
				return nil, err
			}
			facets = append(facets, facet{e.Key, p})
		}
		return func(env Env, docs []primitive.D) ([]primitive.D, error) {
			res := primitive.D{}
			for _, f := range facets {
				out, err := f.p.Run(env, docs)
				if err != nil {
					return nil, err
				}
				arr := make(primitive.A, len(out))
				for i, d := range out {
					arr[i] = d
				}
				res = append(res, primitive.E{Key: f.key, Value: arr})
			}
			return []primitive.D{res}, nil
		}, nil
	})
}

func mustCompileConst(v interface{}) *expr.Compiled {
	c, err := expr.Compile(v)
	if err != nil {
		panic(err)
	}
	return c
}

// boundaryBucket finds the half-open [boundaries[i], boundaries[i+1]) range
// containing v and returns its lower bound as the bucket id.
func boundaryBucket(v interface{}, boundaries []interface{}) (interface{}, bool) {
	for i := 0; i < len(boundaries)-1; i++ {
		if bsonval.Compare(v, boundaries[i]) >= 0 && bsonval.Compare(v, boundaries[i+1]) < 0 {
			return boundaries[i], true
		}
	}
	return nil, false
}

func reservoirSample(docs []primitive.D, size int) []primitive.D {
	if size >= len(docs) {
		out := append([]primitive.D{}, docs...)
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
	reservoir := make([]primitive.D, size)
	copy(reservoir, docs[:size])
	for i := size; i < len(docs); i++ {
		j := rand.Intn(i + 1)
		if j < size {
			reservoir[j] = docs[i]
		}
	}
	return reservoir
}
