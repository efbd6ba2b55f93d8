package expr

import "github.com/JKershaw/mangodb/internal/dberr"

func init() {
	register("$let", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$let requires a document argument")
		}
		varsRaw, _ := docGet(d, "vars")
		varsDoc, ok := rawDoc(varsRaw)
		if !ok {
			return nil, dberr.BadValue("$let.vars must be a document")
		}
		type binding struct {
			name string
			n    node
		}
		bindings := make([]binding, 0, len(varsDoc))
		for _, e := range varsDoc {
			n, err := compileNode(e.Value)
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, binding{e.Key, n})
		}
		inRaw, _ := docGet(d, "in")
		inN, err := compileNode(inRaw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			extra := make(map[string]interface{}, len(bindings))
			for _, b := range bindings {
				v, err := b.n(ctx)
				if err != nil {
					return nil, err
				}
				extra[b.name] = v
			}
			return inN(ctx.withVars(extra))
		}, nil
	})
}
