package expr

func init() {
	register("$and", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			for _, n := range nodes {
				v, err := n(ctx)
				if err != nil {
					return nil, err
				}
				if !Truthy(v) {
					return false, nil
				}
			}
			return true, nil
		}, nil
	})

	register("$or", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		return func(ctx *Ctx) (interface{}, error) {
			for _, n := range nodes {
				v, err := n(ctx)
				if err != nil {
					return nil, err
				}
				if Truthy(v) {
					return true, nil
				}
			}
			return false, nil
		}, nil
	})

	register("$not", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr("$not", 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			return !Truthy(v), nil
		}, nil
	})
}
