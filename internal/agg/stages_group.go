package agg

import (
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/expr"
)

// accumulator folds one field's values across a $group bucket. init holds
// the per-bucket running state, step folds in one document's value, finish
// produces the final field value.
type accumulator struct {
	init   func() interface{}
	step   func(state interface{}, val interface{}) interface{}
	finish func(state interface{}) interface{}
}

var accumulators = map[string]accumulator{
	"$sum": {
		init: func() interface{} { return float64(0) },
		step: func(state, val interface{}) interface{} {
			f, ok := bsonval.AsFloat64(val)
			if !ok {
				return state
			}
			return state.(float64) + f
		},
		finish: func(state interface{}) interface{} { return numericResult(state.(float64)) },
	},
	"$count": {
		init: func() interface{} { return int32(0) },
		step: func(state, val interface{}) interface{} {
			return state.(int32) + 1
		},
		finish: func(state interface{}) interface{} { return state },
	},
	"$avg": {
		init: func() interface{} { return &avgState{} },
		step: func(state, val interface{}) interface{} {
			s := state.(*avgState)
			if f, ok := bsonval.AsFloat64(val); ok {
				s.sum += f
				s.count++
			}
			return s
		},
		finish: func(state interface{}) interface{} {
			s := state.(*avgState)
			if s.count == 0 {
				return nil
			}
			return s.sum / float64(s.count)
		},
	},
	"$min": {
		init: func() interface{} { return nil },
		step: func(state, val interface{}) interface{} {
			if state == nil || bsonval.Compare(val, state) < 0 {
				return val
			}
			return state
		},
		finish: func(state interface{}) interface{} { return state },
	},
	"$max": {
		init: func() interface{} { return nil },
		step: func(state, val interface{}) interface{} {
			if state == nil || bsonval.Compare(val, state) > 0 {
				return val
			}
			return state
		},
		finish: func(state interface{}) interface{} { return state },
	},
	"$first": {
		init: func() interface{} { return &firstLastState{} },
		step: func(state, val interface{}) interface{} {
			s := state.(*firstLastState)
			if !s.set {
				s.val = val
				s.set = true
			}
			return s
		},
		finish: func(state interface{}) interface{} { return state.(*firstLastState).val },
	},
	"$last": {
		init: func() interface{} { return &firstLastState{} },
		step: func(state, val interface{}) interface{} {
			s := state.(*firstLastState)
			s.val = val
			s.set = true
			return s
		},
		finish: func(state interface{}) interface{} { return state.(*firstLastState).val },
	},
	"$push": {
		init: func() interface{} { return primitive.A{} },
		step: func(state, val interface{}) interface{} {
			return append(state.(primitive.A), val)
		},
		finish: func(state interface{}) interface{} { return state },
	},
	"$addToSet": {
		init: func() interface{} { return primitive.A{} },
		step: func(state, val interface{}) interface{} {
			arr := state.(primitive.A)
			for _, existing := range arr {
				if bsonval.Equal(existing, val) {
					return arr
				}
			}
			return append(arr, val)
		},
		finish: func(state interface{}) interface{} { return state },
	},
	"$stdDevPop": {
		init: func() interface{} { return &varState{} },
		step: stepVar,
		finish: func(state interface{}) interface{} {
			return finishStdDev(state.(*varState), false)
		},
	},
	"$stdDevSamp": {
		init: func() interface{} { return &varState{} },
		step: stepVar,
		finish: func(state interface{}) interface{} {
			return finishStdDev(state.(*varState), true)
		},
	},
	"$mergeObjects": {
		init: func() interface{} { return primitive.D{} },
		step: func(state, val interface{}) interface{} {
			d, _ := asDoc(state)
			add, ok := asDoc(val)
			if !ok {
				return d
			}
			for _, e := range add {
				d = setDotted(d, e.Key, e.Value)
			}
			return d
		},
		finish: func(state interface{}) interface{} { return state },
	},
}

type avgState struct {
	sum   float64
	count int
}

type firstLastState struct {
	val interface{}
	set bool
}

type varState struct {
	n, mean, m2 float64
}

func stepVar(state, val interface{}) interface{} {
	s := state.(*varState)
	f, ok := bsonval.AsFloat64(val)
	if !ok {
		return s
	}
	s.n++
	delta := f - s.mean
	s.mean += delta / s.n
	s.m2 += delta * (f - s.mean)
	return s
}

func finishStdDev(s *varState, sample bool) interface{} {
	if sample {
		if s.n < 2 {
			return nil
		}
		return math.Sqrt(s.m2 / (s.n - 1))
	}
	if s.n < 1 {
		return nil
	}
	return math.Sqrt(s.m2 / s.n)
}

func numericResult(f float64) interface{} {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		if f >= math.MinInt32 && f <= math.MaxInt32 {
			return int32(f)
		}
		return int64(f)
	}
	return f
}

func init() {
	registerStage("$group", func(arg interface{}) (stage, error) {
		spec, ok := asDoc(arg)
		if !ok {
			return nil, dberr.BadValue("$group requires a document argument")
		}
		idRaw, hasID := docGetAgg(spec, "_id")
		if !hasID {
			return nil, dberr.FailedToParse("$group requires an _id specification")
		}
		idExpr, err := expr.Compile(idRaw)
		if err != nil {
			return nil, err
		}
		type accField struct {
			key  string
			op   string
			acc  accumulator
			expr *expr.Compiled
		}
		var fields []accField
		for _, e := range spec {
			if e.Key == "_id" {
				continue
			}
			fd, ok := asDoc(e.Value)
			if !ok || len(fd) != 1 {
				return nil, dberr.FailedToParse("$group field %q must name exactly one accumulator operator", e.Key)
			}
			acc, ok := accumulators[fd[0].Key]
			if !ok {
				return nil, dberr.FailedToParse("unknown $group accumulator: %s", fd[0].Key)
			}
			c, err := expr.Compile(fd[0].Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, accField{key: e.Key, op: fd[0].Key, acc: acc, expr: c})
		}
		return func(_ Env, docs []primitive.D) ([]primitive.D, error) {
			type bucket struct {
				id    interface{}
				order int
				state []interface{}
			}
			order := map[interface{}]*bucket{}
			var seq []*bucket
			for _, d := range docs {
				idv, err := idExpr.Eval(d)
				if err != nil {
					return nil, err
				}
				key := bsonval.Hash(idv)
				b, ok := order[key]
				if !ok {
					b = &bucket{id: idv, order: len(seq)}
					b.state = make([]interface{}, len(fields))
					for i, f := range fields {
						b.state[i] = f.acc.init()
					}
					order[key] = b
					seq = append(seq, b)
				}
				for i, f := range fields {
					v, err := f.expr.Eval(d)
					if err != nil {
						return nil, err
					}
					b.state[i] = f.acc.step(b.state[i], v)
				}
			}
			out := make([]primitive.D, len(seq))
			for i, b := range seq {
				res := primitive.D{{Key: "_id", Value: b.id}}
				for j, f := range fields {
					res = append(res, primitive.E{Key: f.key, Value: f.acc.finish(b.state[j])})
				}
				out[i] = res
			}
			return out, nil
		}, nil
	})

	registerStage("$sortByCount", func(arg interface{}) (stage, error) {
		idExpr, err := expr.Compile(arg)
		if err != nil {
			return nil, err
		}
		return func(env Env, docs []primitive.D) ([]primitive.D, error) {
			type bucket struct {
				id    interface{}
				order int
				count int32
			}
			order := map[interface{}]*bucket{}
			var seq []*bucket
			for _, d := range docs {
				idv, err := idExpr.Eval(d)
				if err != nil {
					return nil, err
				}
				key := bsonval.Hash(idv)
				b, ok := order[key]
				if !ok {
					b = &bucket{id: idv, order: len(seq)}
					order[key] = b
					seq = append(seq, b)
				}
				b.count++
			}
			out := make([]primitive.D, len(seq))
			for i, b := range seq {
				out[i] = primitive.D{{Key: "_id", Value: b.id}, {Key: "count", Value: b.count}}
			}
			sortStage, _ := compileStage("$sort", primitive.D{{Key: "count", Value: int32(-1)}})
			return sortStage(env, out)
		}, nil
	})
}
