package expr

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
)

func asArray(op string, v interface{}) ([]interface{}, error) {
	switch t := v.(type) {
	case primitive.A:
		return []interface{}(t), nil
	case []interface{}:
		return t, nil
	default:
		return nil, dberr.BadValue("%s requires an array operand, got %T", op, v)
	}
}

func init() {
	register("$size", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr("$size", 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			arr, err := asArray("$size", v)
			if err != nil {
				return nil, err
			}
			return int32(len(arr)), nil
		}, nil
	})

	register("$arrayElemAt", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr("$arrayElemAt", 2, len(nodes))
		}
		arrN, idxN := nodes[0], nodes[1]
		return func(ctx *Ctx) (interface{}, error) {
			av, err := arrN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(av) {
				return nil, nil
			}
			arr, err := asArray("$arrayElemAt", av)
			if err != nil {
				return nil, err
			}
			iv, err := idxN(ctx)
			if err != nil {
				return nil, err
			}
			f, _ := bsonval.AsFloat64(iv)
			idx := int(f)
			if idx < 0 {
				idx = len(arr) + idx
			}
			if idx < 0 || idx >= len(arr) {
				return nil, nil
			}
			return arr[idx], nil
		}, nil
	})

	register("$concatArrays", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			out := primitive.A{}
			for _, n := range nodes {
				v, err := n(ctx)
				if err != nil {
					return nil, err
				}
				if bsonval.IsNullish(v) {
					return nil, nil
				}
				arr, err := asArray("$concatArrays", v)
				if err != nil {
					return nil, err
				}
				out = append(out, arr...)
			}
			return out, nil
		}, nil
	})

	register("$in", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 2 {
			return nil, argCountErr("$in", 2, len(nodes))
		}
		needleN, arrN := nodes[0], nodes[1]
		return func(ctx *Ctx) (interface{}, error) {
			needle, err := needleN(ctx)
			if err != nil {
				return nil, err
			}
			av, err := arrN(ctx)
			if err != nil {
				return nil, err
			}
			arr, err := asArray("$in", av)
			if err != nil {
				return nil, err
			}
			for _, e := range arr {
				if bsonval.Equal(needle, e) {
					return true, nil
				}
			}
			return false, nil
		}, nil
	})

	register("$indexOfArray", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) < 2 || len(nodes) > 4 {
			return nil, dberr.BadValue("$indexOfArray requires 2 to 4 arguments")
		}
		arrN, needleN := nodes[0], nodes[1]
		var startN, endN node
		if len(nodes) >= 3 {
			startN = nodes[2]
		}
		if len(nodes) == 4 {
			endN = nodes[3]
		}
		return func(ctx *Ctx) (interface{}, error) {
			av, err := arrN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(av) {
				return nil, nil
			}
			arr, err := asArray("$indexOfArray", av)
			if err != nil {
				return nil, err
			}
			needle, err := needleN(ctx)
			if err != nil {
				return nil, err
			}
			start, end := 0, len(arr)
			if startN != nil {
				sv, err := startN(ctx)
				if err != nil {
					return nil, err
				}
				f, _ := bsonval.AsFloat64(sv)
				start = int(f)
			}
			if endN != nil {
				ev, err := endN(ctx)
				if err != nil {
					return nil, err
				}
				f, _ := bsonval.AsFloat64(ev)
				end = int(f)
			}
			if start < 0 {
				start = 0
			}
			if end > len(arr) {
				end = len(arr)
			}
			for i := start; i < end; i++ {
				if bsonval.Equal(arr[i], needle) {
					return int32(i), nil
				}
			}
			return int32(-1), nil
		}, nil
	})

	register("$range", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) < 2 || len(nodes) > 3 {
			return nil, dberr.BadValue("$range requires 2 or 3 arguments")
		}
		startN, endN := nodes[0], nodes[1]
		var stepN node
		if len(nodes) == 3 {
			stepN = nodes[2]
		}
		return func(ctx *Ctx) (interface{}, error) {
			sv, err := startN(ctx)
			if err != nil {
				return nil, err
			}
			ev, err := endN(ctx)
			if err != nil {
				return nil, err
			}
			sf, _ := bsonval.AsFloat64(sv)
			ef, _ := bsonval.AsFloat64(ev)
			start, end := int(sf), int(ef)
			step := 1
			if stepN != nil {
				tv, err := stepN(ctx)
				if err != nil {
					return nil, err
				}
				tf, _ := bsonval.AsFloat64(tv)
				step = int(tf)
			}
			if step == 0 {
				return nil, dberr.BadValue("$range requires a non-zero step")
			}
			out := primitive.A{}
			if step > 0 {
				for i := start; i < end; i += step {
					out = append(out, int32(i))
				}
			} else {
				for i := start; i > end; i += step {
					out = append(out, int32(i))
				}
			}
			return out, nil
		}, nil
	})

	register("$slice", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) < 2 || len(nodes) > 3 {
			return nil, dberr.BadValue("$slice requires 2 or 3 arguments")
		}
		return func(ctx *Ctx) (interface{}, error) {
			av, err := nodes[0](ctx)
			if err != nil {
				return nil, err
			}
			arr, err := asArray("$slice", av)
			if err != nil {
				return nil, err
			}
			n := len(arr)
			if len(nodes) == 2 {
				cv, err := nodes[1](ctx)
				if err != nil {
					return nil, err
				}
				cf, _ := bsonval.AsFloat64(cv)
				count := int(cf)
				if count >= 0 {
					if count > n {
						count = n
					}
					return primitive.A(append([]interface{}{}, arr[:count]...)), nil
				}
				start := n + count
				if start < 0 {
					start = 0
				}
				return primitive.A(append([]interface{}{}, arr[start:]...)), nil
			}
			pv, err := nodes[1](ctx)
			if err != nil {
				return nil, err
			}
			cv, err := nodes[2](ctx)
			if err != nil {
				return nil, err
			}
			pf, _ := bsonval.AsFloat64(pv)
			cf, _ := bsonval.AsFloat64(cv)
			pos := int(pf)
			count := int(cf)
			if pos < 0 {
				pos = n + pos
				if pos < 0 {
					pos = 0
				}
			}
			if pos > n {
				pos = n
			}
			end := pos + count
			if count < 0 {
				end = pos
				pos = pos + count
				if pos < 0 {
					pos = 0
				}
			}
			if end > n {
				end = n
			}
			if end < pos {
				end = pos
			}
			return primitive.A(append([]interface{}{}, arr[pos:end]...)), nil
		}, nil
	})

	register("$reverseArray", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr("$reverseArray", 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(v) {
				return nil, nil
			}
			arr, err := asArray("$reverseArray", v)
			if err != nil {
				return nil, err
			}
			out := make(primitive.A, len(arr))
			for i, e := range arr {
				out[len(arr)-1-i] = e
			}
			return out, nil
		}, nil
	})

	register("$filter", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$filter requires a document argument")
		}
		inputN, err := compileField(d, "input")
		if err != nil {
			return nil, err
		}
		condRaw, _ := docGet(d, "cond")
		condN, err := compileNode(condRaw)
		if err != nil {
			return nil, err
		}
		as := "this"
		if av, ok := docGet(d, "as"); ok {
			if s, ok := av.(string); ok {
				as = s
			}
		}
		var limitN node
		if lv, ok := docGet(d, "limit"); ok {
			limitN, err = compileNode(lv)
			if err != nil {
				return nil, err
			}
		}
		return func(ctx *Ctx) (interface{}, error) {
			iv, err := inputN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(iv) {
				return nil, nil
			}
			arr, err := asArray("$filter", iv)
			if err != nil {
				return nil, err
			}
			limit := len(arr)
			if limitN != nil {
				lv, err := limitN(ctx)
				if err != nil {
					return nil, err
				}
				lf, _ := bsonval.AsFloat64(lv)
				limit = int(lf)
			}
			out := primitive.A{}
			for _, e := range arr {
				if len(out) >= limit {
					break
				}
				sub := ctx.withVars(map[string]interface{}{as: e})
				v, err := condN(sub)
				if err != nil {
					return nil, err
				}
				if Truthy(v) {
					out = append(out, e)
				}
			}
			return out, nil
		}, nil
	})

	register("$map", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$map requires a document argument")
		}
		inputN, err := compileField(d, "input")
		if err != nil {
			return nil, err
		}
		inRaw, _ := docGet(d, "in")
		inN, err := compileNode(inRaw)
		if err != nil {
			return nil, err
		}
		as := "this"
		if av, ok := docGet(d, "as"); ok {
			if s, ok := av.(string); ok {
				as = s
			}
		}
		return func(ctx *Ctx) (interface{}, error) {
			iv, err := inputN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(iv) {
				return nil, nil
			}
			arr, err := asArray("$map", iv)
			if err != nil {
				return nil, err
			}
			out := make(primitive.A, len(arr))
			for i, e := range arr {
				sub := ctx.withVars(map[string]interface{}{as: e})
				v, err := inN(sub)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		}, nil
	})

	register("$reduce", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$reduce requires a document argument")
		}
		inputN, err := compileField(d, "input")
		if err != nil {
			return nil, err
		}
		initRaw, _ := docGet(d, "initialValue")
		initN, err := compileNode(initRaw)
		if err != nil {
			return nil, err
		}
		inRaw, _ := docGet(d, "in")
		inN, err := compileNode(inRaw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			iv, err := inputN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(iv) {
				return nil, nil
			}
			arr, err := asArray("$reduce", iv)
			if err != nil {
				return nil, err
			}
			acc, err := initN(ctx)
			if err != nil {
				return nil, err
			}
			for _, e := range arr {
				sub := ctx.withVars(map[string]interface{}{"value": acc, "this": e})
				acc, err = inN(sub)
				if err != nil {
					return nil, err
				}
			}
			return acc, nil
		}, nil
	})

	register("$zip", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$zip requires a document argument")
		}
		inputsRaw, _ := docGet(d, "inputs")
		inputsN, err := compileNode(inputsRaw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			iv, err := inputsN(ctx)
			if err != nil {
				return nil, err
			}
			lists, err := asArray("$zip", iv)
			if err != nil {
				return nil, err
			}
			arrs := make([][]interface{}, len(lists))
			minLen := -1
			for i, l := range lists {
				arr, err := asArray("$zip", l)
				if err != nil {
					return nil, err
				}
				arrs[i] = arr
				if minLen == -1 || len(arr) < minLen {
					minLen = len(arr)
				}
			}
			if minLen < 0 {
				minLen = 0
			}
			out := make(primitive.A, minLen)
			for i := 0; i < minLen; i++ {
				row := make(primitive.A, len(arrs))
				for j, arr := range arrs {
					row[j] = arr[i]
				}
				out[i] = row
			}
			return out, nil
		}, nil
	})

	register("$sortArray", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$sortArray requires a document argument")
		}
		inputN, err := compileField(d, "input")
		if err != nil {
			return nil, err
		}
		sortSpec, _ := docGet(d, "sortBy")
		return func(ctx *Ctx) (interface{}, error) {
			iv, err := inputN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(iv) {
				return nil, nil
			}
			arr, err := asArray("$sortArray", iv)
			if err != nil {
				return nil, err
			}
			out := append([]interface{}{}, arr...)
			switch spec := sortSpec.(type) {
			case int32:
				sortScalar(out, int(spec))
			case int64:
				sortScalar(out, int(spec))
			case float64:
				sortScalar(out, int(spec))
			case primitive.D:
				sortByFields(out, spec)
			}
			return primitive.A(out), nil
		}, nil
	})

	register("$isArray", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr("$isArray", 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			switch v.(type) {
			case primitive.A, []interface{}:
				return true, nil
			}
			return false, nil
		}, nil
	})
}

func sortScalar(out []interface{}, dir int) {
	sort.SliceStable(out, func(i, j int) bool {
		c := bsonval.Compare(out[i], out[j])
		if dir < 0 {
			return c > 0
		}
		return c < 0
	})
}

func sortByFields(out []interface{}, spec primitive.D) {
	sort.SliceStable(out, func(i, j int) bool {
		for _, e := range spec {
			dir := 1
			if f, ok := bsonval.AsFloat64(e.Value); ok && f < 0 {
				dir = -1
			}
			vi := fieldOf(out[i], e.Key)
			vj := fieldOf(out[j], e.Key)
			c := bsonval.Compare(vi, vj)
			if c != 0 {
				if dir < 0 {
					return c > 0
				}
				return c < 0
			}
		}
		return false
	})
}

func fieldOf(v interface{}, key string) interface{} {
	switch d := v.(type) {
	case primitive.D:
		for _, e := range d {
			if e.Key == key {
				return e.Value
			}
		}
	case primitive.M:
		return d[key]
	}
	return bsonval.Missing{}
}
