package expr

import "github.com/JKershaw/mangodb/internal/bsonval"

func cmpOp(name string, test func(int) bool) {
	register(name, func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr(name, 2, len(nodes))
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
			return test(bsonval.Compare(va, vb)), nil
		}, nil
	})
}

func init() {
	cmpOp("$eq", func(c int) bool { return c == 0 })
	cmpOp("$ne", func(c int) bool { return c != 0 })
	cmpOp("$gt", func(c int) bool { return c > 0 })
	cmpOp("$gte", func(c int) bool { return c >= 0 })
	cmpOp("$lt", func(c int) bool { return c < 0 })
	cmpOp("$lte", func(c int) bool { return c <= 0 })

	register("$cmp", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr("$cmp", 2, len(nodes))
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
			c := bsonval.Compare(va, vb)
			switch {
			case c < 0:
				return int32(-1), nil
			case c > 0:
				return int32(1), nil
			default:
				return int32(0), nil
			}
		}, nil
	})
}
