package expr

func init() {
	register("$rand", func(raw interface{}) (node, error) {
		// $rand takes no arguments; its operand (normally an empty
		// document, {}) is ignored and never compiled.
		return func(ctx *Ctx) (interface{}, error) {
			return ctx.rng.Float64(), nil
		}, nil
	})
}
