package expr

import (
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/dberr"
)

func unaryMath(name string, fn func(float64) float64) {
	register(name, func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr(name, 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			f, nullish, err := numeric(name, v)
			if err != nil {
				return nil, err
			}
			if nullish {
				return nil, nil
			}
			return fn(f), nil
		}, nil
	})
}

func init() {
	register("$add", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			sum := 0.0
			anyDate := false
			for _, n := range nodes {
				v, err := n(ctx)
				if err != nil {
					return nil, err
				}
				if ms, ok := dateMillis(v); ok {
					anyDate = true
					sum += float64(ms)
					continue
				}
				f, nullish, err := numeric("$add", v)
				if err != nil {
					return nil, err
				}
				if nullish {
					return nil, nil
				}
				sum += f
			}
			if anyDate {
				return msToDateTime(int64(sum)), nil
			}
			return normalizeNumber(sum), nil
		}, nil
	})

	register("$subtract", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr("$subtract", 2, len(nodes))
		}
		a, b := nodes[0], nodes[1]
		return func(ctx *Ctx) (interface{}, error) {
			va, err := a(ctx)
			if err != nil {
				return nil, err
			}
			vb, err := b(ctx)
			if err != nil {
				return nil, err
			}
			if msa, ok := dateMillis(va); ok {
				if msb, ok := dateMillis(vb); ok {
					return normalizeNumber(float64(msa - msb)), nil
				}
				fb, nullish, err := numeric("$subtract", vb)
				if err != nil {
					return nil, err
				}
				if nullish {
					return nil, nil
				}
				return msToDateTime(msa - int64(fb)), nil
			}
			fa, nullishA, err := numeric("$subtract", va)
			if err != nil {
				return nil, err
			}
			fb, nullishB, err := numeric("$subtract", vb)
			if err != nil {
				return nil, err
			}
			if nullishA || nullishB {
				return nil, nil
			}
			return normalizeNumber(fa - fb), nil
		}, nil
	})

	register("$multiply", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			prod := 1.0
			for _, n := range nodes {
				v, err := n(ctx)
				if err != nil {
					return nil, err
				}
				f, nullish, err := numeric("$multiply", v)
				if err != nil {
					return nil, err
				}
				if nullish {
					return nil, nil
				}
				prod *= f
			}
			return normalizeNumber(prod), nil
		}, nil
	})

	register("$divide", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr("$divide", 2, len(nodes))
		}
		a, b := nodes[0], nodes[1]
		return func(ctx *Ctx) (interface{}, error) {
			va, err := a(ctx)
			if err != nil {
				return nil, err
			}
			vb, err := b(ctx)
			if err != nil {
				return nil, err
			}
			fa, nullishA, err := numeric("$divide", va)
			if err != nil {
				return nil, err
			}
			fb, nullishB, err := numeric("$divide", vb)
			if err != nil {
				return nil, err
			}
			if nullishA || nullishB {
				return nil, nil
			}
			// Division by zero propagates IEEE-754 +/-Inf or NaN rather
			// than erroring (spec.md §4.4 "Error domain").
			return fa / fb, nil
		}, nil
	})

	register("$mod", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr("$mod", 2, len(nodes))
		}
		a, b := nodes[0], nodes[1]
		return func(ctx *Ctx) (interface{}, error) {
			va, err := a(ctx)
			if err != nil {
				return nil, err
			}
			vb, err := b(ctx)
			if err != nil {
				return nil, err
			}
			fa, nullishA, err := numeric("$mod", va)
			if err != nil {
				return nil, err
			}
			fb, nullishB, err := numeric("$mod", vb)
			if err != nil {
				return nil, err
			}
			if nullishA || nullishB {
				return nil, nil
			}
			if fb == 0 {
				return nil, dberr.BadValue("$mod by zero")
			}
			return normalizeNumber(math.Mod(fa, fb)), nil
		}, nil
	})

	unaryMath("$abs", math.Abs)
	unaryMath("$ceil", math.Ceil)
	unaryMath("$floor", math.Floor)
	unaryMath("$sqrt", func(f float64) float64 {
		return math.Sqrt(f)
	})
	unaryMath("$exp", math.Exp)
	unaryMath("$ln", math.Log)
	unaryMath("$log10", math.Log10)

	register("$pow", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr("$pow", 2, len(nodes))
		}
		a, b := nodes[0], nodes[1]
		return func(ctx *Ctx) (interface{}, error) {
			va, err := a(ctx)
			if err != nil {
				return nil, err
			}
			vb, err := b(ctx)
			if err != nil {
				return nil, err
			}
			fa, _, err := numeric("$pow", va)
			if err != nil {
				return nil, err
			}
			fb, _, err := numeric("$pow", vb)
			if err != nil {
				return nil, err
			}
			return normalizeNumber(math.Pow(fa, fb)), nil
		}, nil
	})

	register("$log", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr("$log", 2, len(nodes))
		}
		a, base := nodes[0], nodes[1]
		return func(ctx *Ctx) (interface{}, error) {
			va, err := a(ctx)
			if err != nil {
				return nil, err
			}
			vb, err := base(ctx)
			if err != nil {
				return nil, err
			}
			fa, _, err := numeric("$log", va)
			if err != nil {
				return nil, err
			}
			fb, _, err := numeric("$log", vb)
			if err != nil {
				return nil, err
			}
			return normalizeNumber(math.Log(fa) / math.Log(fb)), nil
		}, nil
	})

	register("$round", func(raw interface{}) (node, error) {
		return roundTruncOp("$round", raw, func(f float64, places int) float64 {
			shift := math.Pow(10, float64(places))
			return math.RoundToEven(f*shift) / shift
		})
	})
	register("$trunc", func(raw interface{}) (node, error) {
		return roundTruncOp("$trunc", raw, func(f float64, places int) float64 {
			shift := math.Pow(10, float64(places))
			return math.Trunc(f*shift) / shift
		})
	})
}

func roundTruncOp(name string, raw interface{}, apply func(float64, int) float64) (node, error) {
	nodes, err := compileArgList(raw)
	if err != nil {
		return nil, err
	}
	if len(nodes) < 1 || len(nodes) > 2 {
		return nil, dberr.BadValue("%s requires 1 or 2 arguments", name)
	}
	valNode := nodes[0]
	var placesNode node
	if len(nodes) == 2 {
		placesNode = nodes[1]
	}
	return func(ctx *Ctx) (interface{}, error) {
		v, err := valNode(ctx)
		if err != nil {
			return nil, err
		}
		f, nullish, err := numeric(name, v)
		if err != nil {
			return nil, err
		}
		if nullish {
			return nil, nil
		}
		places := 0
		if placesNode != nil {
			pv, err := placesNode(ctx)
			if err != nil {
				return nil, err
			}
			pf, _, err := numeric(name, pv)
			if err != nil {
				return nil, err
			}
			places = int(pf)
		}
		return normalizeNumber(apply(f, places)), nil
	}, nil
}

// normalizeNumber narrows an integral result to int32 when it fits, or to
// int64 when its magnitude is below 2^53, the same rule the $sum accumulator
// applies; non-integral and non-finite results stay float64.
func normalizeNumber(f float64) interface{} {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		if f >= math.MinInt32 && f <= math.MaxInt32 {
			return int32(f)
		}
		return int64(f)
	}
	return f
}

func dateMillis(v interface{}) (int64, bool) {
	dt, ok := v.(primitive.DateTime)
	if !ok {
		return 0, false
	}
	return int64(dt), true
}

func msToDateTime(ms int64) interface{} {
	return primitive.DateTime(ms)
}
