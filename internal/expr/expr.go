// Package expr implements the aggregation expression evaluator of
// spec.md §4.4: field references, literals, and a closed dispatch table of
// ~100 operators across boolean/comparison/arithmetic/string/array/
// conditional/type/date/variable families, plus the non-deterministic
// $rand operator.
package expr

import (
	"math/rand"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

// node is a compiled expression: evaluate against one evaluation context.
type node func(ctx *Ctx) (interface{}, error)

// Compiled wraps a compiled expression tree ready for repeated evaluation.
type Compiled struct {
	root node
}

// Ctx carries per-document evaluation state: the current document ($$CURRENT),
// the pipeline root ($$ROOT), user $let bindings, and a seeded PRNG so that
// $rand draws are independent within one evaluation but the whole engine
// stays reproducible given an external seed (spec.md §9).
type Ctx struct {
	root    interface{}
	current interface{}
	vars    map[string]interface{}
	rng     *rand.Rand
}

func newCtx(doc interface{}, seed int64) *Ctx {
	return &Ctx{
		root:    doc,
		current: doc,
		vars:    map[string]interface{}{},
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (c *Ctx) child(current interface{}) *Ctx {
	nc := &Ctx{root: c.root, current: current, vars: c.vars, rng: c.rng}
	return nc
}

func (c *Ctx) withVars(extra map[string]interface{}) *Ctx {
	merged := make(map[string]interface{}, len(c.vars)+len(extra))
	for k, v := range c.vars {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return &Ctx{root: c.root, current: c.current, vars: merged, rng: c.rng}
}

// Eval evaluates the compiled expression against doc using a default seed.
// Use EvalSeeded for reproducible $rand draws across runs (e.g. tests).
func (c *Compiled) Eval(doc interface{}) (interface{}, error) {
	return c.root(newCtx(doc, defaultSeed()))
}

// EvalSeeded evaluates the compiled expression with an explicit PRNG seed.
func (c *Compiled) EvalSeeded(doc interface{}, seed int64) (interface{}, error) {
	return c.root(newCtx(doc, seed))
}

var seedCounter int64

func defaultSeed() int64 {
	seedCounter++
	return seedCounter
}

// Compile compiles a raw aggregation-expression value (spec.md §4.4) into a
// reusable Compiled.
func Compile(raw interface{}) (*Compiled, error) {
	n, err := compileNode(raw)
	if err != nil {
		return nil, err
	}
	return &Compiled{root: n}, nil
}

// compileNode is the recursive compiler shared by Compile, operator
// argument lists, and sub-expressions ($filter/$map/etc bodies).
func compileNode(raw interface{}) (node, error) {
	switch v := raw.(type) {
	case nil:
		return constNode(nil), nil
	case string:
		return compileString(v)
	case primitive.A:
		return compileArray([]interface{}(v))
	case []interface{}:
		return compileArray(v)
	case primitive.D:
		return compileDoc(v)
	case primitive.M:
		return compileDoc(bsonval.ToDoc(v))
	case map[string]interface{}:
		return compileDoc(bsonval.ToDoc(v))
	default:
		return constNode(v), nil
	}
}

func compileString(s string) (node, error) {
	switch {
	case strings.HasPrefix(s, "$$"):
		return compileVarRef(s[2:]), nil
	case strings.HasPrefix(s, "$"):
		path := s[1:]
		return func(ctx *Ctx) (interface{}, error) {
			return pathutil.Get(ctx.current, path), nil
		}, nil
	default:
		return constNode(s), nil
	}
}

func compileVarRef(rest string) node {
	segs := strings.SplitN(rest, ".", 2)
	name := segs[0]
	var tail string
	if len(segs) == 2 {
		tail = segs[1]
	}
	return func(ctx *Ctx) (interface{}, error) {
		var base interface{}
		switch name {
		case "ROOT":
			base = ctx.root
		case "CURRENT":
			base = ctx.current
		case "NOW":
			base = primitive.NewDateTimeFromTime(nowFunc())
		default:
			v, ok := ctx.vars[name]
			if !ok {
				return bsonval.Missing{}, nil
			}
			base = v
		}
		if tail == "" {
			return base, nil
		}
		return pathutil.Get(base, tail), nil
	}
}

func compileArray(items []interface{}) (node, error) {
	nodes := make([]node, len(items))
	for i, it := range items {
		n, err := compileNode(it)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return func(ctx *Ctx) (interface{}, error) {
		out := make(primitive.A, len(nodes))
		for i, n := range nodes {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}, nil
}

// compileDoc handles both the operator-call form ({$op: args}, exactly one
// $-prefixed key) and the plain document-constructor form (spec.md §4.4).
func compileDoc(d primitive.D) (node, error) {
	if len(d) == 1 && strings.HasPrefix(d[0].Key, "$") {
		builder, ok := registry[d[0].Key]
		if !ok {
			return nil, dberr.FailedToParse("unknown aggregation operator: %s", d[0].Key)
		}
		return builder(d[0].Value)
	}
	fields := make([]struct {
		key string
		n   node
	}, 0, len(d))
	for _, e := range d {
		n, err := compileNode(e.Value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, struct {
			key string
			n   node
		}{e.Key, n})
	}
	return func(ctx *Ctx) (interface{}, error) {
		out := make(primitive.D, 0, len(fields))
		for _, f := range fields {
			v, err := f.n(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, primitive.E{Key: f.key, Value: v})
		}
		return out, nil
	}, nil
}

func constNode(v interface{}) node {
	return func(*Ctx) (interface{}, error) { return v, nil }
}

// Truthy implements the JS-like truthiness rule spec.md §4.2 requires for
// $expr: null/missing/0/""/false/NaN are false, everything else is true.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bsonval.Missing:
		return false
	case primitive.Undefined:
		return false
	case bool:
		return t
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0 && !isNaN(t)
	case string:
		return t != ""
	}
	return true
}

func isNaN(f float64) bool { return f != f }

// compileArgList compiles an operator's raw argument value into a slice of
// compiled nodes, whether it was supplied as a bare array (variadic form)
// or a single expression (unary form).
func compileArgList(raw interface{}) ([]node, error) {
	if arr, ok := toRawArray(raw); ok {
		nodes := make([]node, len(arr))
		for i, it := range arr {
			n, err := compileNode(it)
			if err != nil {
				return nil, err
			}
			nodes[i] = n
		}
		return nodes, nil
	}
	n, err := compileNode(raw)
	if err != nil {
		return nil, err
	}
	return []node{n}, nil
}

func toRawArray(raw interface{}) ([]interface{}, bool) {
	switch t := raw.(type) {
	case primitive.A:
		return []interface{}(t), true
	case []interface{}:
		return t, true
	}
	return nil, false
}

func evalAll(ctx *Ctx, nodes []node) ([]interface{}, error) {
	out := make([]interface{}, len(nodes))
	for i, n := range nodes {
		v, err := n(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
