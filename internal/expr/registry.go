package expr

import "time"

// registry is the closed operator dispatch table spec.md §9 mandates
// ("Mixed inheritance of operators → closed dispatch tables"). Each
// family's ops_*.go file registers its operators via init().
var registry = map[string]func(interface{}) (node, error){}

func register(name string, fn func(interface{}) (node, error)) {
	registry[name] = fn
}

// nowFunc is overridable in tests for deterministic $$NOW / $dateAdd etc.
var nowFunc = time.Now
