package expr

import (
	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
)

func init() {
	register("$cond", func(raw interface{}) (node, error) {
		var ifN, thenN, elseN node
		var err error
		if d, ok := rawDoc(raw); ok {
			ifRaw, _ := docGet(d, "if")
			thenRaw, _ := docGet(d, "then")
			elseRaw, _ := docGet(d, "else")
			if ifN, err = compileNode(ifRaw); err != nil {
				return nil, err
			}
			if thenN, err = compileNode(thenRaw); err != nil {
				return nil, err
			}
			if elseN, err = compileNode(elseRaw); err != nil {
				return nil, err
			}
		} else {
			nodes, err := compileArgList(raw)
			if err != nil {
				return nil, err
			}
			if len(nodes) != 3 {
				return nil, argCountErr("$cond", 3, len(nodes))
			}
			ifN, thenN, elseN = nodes[0], nodes[1], nodes[2]
		}
		return func(ctx *Ctx) (interface{}, error) {
			cv, err := ifN(ctx)
			if err != nil {
				return nil, err
			}
			if Truthy(cv) {
				return thenN(ctx)
			}
			return elseN(ctx)
		}, nil
	})

	register("$ifNull", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) < 2 {
			return nil, dberr.BadValue("$ifNull requires at least 2 arguments")
		}
		return func(ctx *Ctx) (interface{}, error) {
			for i, n := range nodes {
				v, err := n(ctx)
				if err != nil {
					return nil, err
				}
				if !bsonval.IsNullish(v) || i == len(nodes)-1 {
					return v, nil
				}
			}
			return nil, nil
		}, nil
	})

	register("$switch", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$switch requires a document argument")
		}
		branchesRaw, _ := docGet(d, "branches")
		branches, ok := toRawArray(branchesRaw)
		if !ok {
			return nil, dberr.BadValue("$switch.branches must be an array")
		}
		type branch struct {
			caseN, thenN node
		}
		compiled := make([]branch, len(branches))
		for i, b := range branches {
			bd, ok := rawDoc(b)
			if !ok {
				return nil, dberr.BadValue("$switch branch must be a document")
			}
			caseRaw, _ := docGet(bd, "case")
			thenRaw, _ := docGet(bd, "then")
			cn, err := compileNode(caseRaw)
			if err != nil {
				return nil, err
			}
			tn, err := compileNode(thenRaw)
			if err != nil {
				return nil, err
			}
			compiled[i] = branch{cn, tn}
		}
		var defaultN node
		if dv, ok := docGet(d, "default"); ok {
			var err error
			defaultN, err = compileNode(dv)
			if err != nil {
				return nil, err
			}
		}
		return func(ctx *Ctx) (interface{}, error) {
			for _, b := range compiled {
				cv, err := b.caseN(ctx)
				if err != nil {
					return nil, err
				}
				if Truthy(cv) {
					return b.thenN(ctx)
				}
			}
			if defaultN != nil {
				return defaultN(ctx)
			}
			return nil, dberr.BadValue("$switch has no default and no branch matched")
		}, nil
	})
}
