// Package match implements the compiled query predicate evaluator of
// spec.md §4.2: ~50 operators, implicit top-level conjunction, array-element
// semantics, and logical composition ($and/$or/$nor/$expr).
package match

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/expr"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

// node is a compiled predicate: evaluate against one document.
type node func(doc primitive.D) bool

// Matcher wraps the compiled predicate tree produced from a query document.
type Matcher struct {
	root node
}

// Matches reports whether doc satisfies the compiled query.
func (m *Matcher) Matches(doc primitive.D) bool {
	if m == nil || m.root == nil {
		return true
	}
	return m.root(doc)
}

// Compile compiles a query document (spec.md §4.2) into a Matcher. Unknown
// top-level operators, malformed operator arguments, and $where fail
// eagerly with no side effects (spec.md §7 "Validation").
func Compile(query interface{}) (*Matcher, error) {
	doc := asDoc(query)
	n, err := compileDoc(doc)
	if err != nil {
		return nil, err
	}
	return &Matcher{root: n}, nil
}

func compileDoc(doc primitive.D) (node, error) {
	var nodes []node
	for _, e := range doc {
		if strings.HasPrefix(e.Key, "$") {
			n, err := compileLogical(e.Key, e.Value)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
			continue
		}
		n, err := compileField(e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return andAll(nodes), nil
}

func compileLogical(op string, val interface{}) (node, error) {
	switch op {
	case "$and":
		subs, err := compileDocArray(val)
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			return func(primitive.D) bool { return true }, nil
		}
		return andAll(subs), nil
	case "$or":
		subs, err := compileDocArray(val)
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			return func(primitive.D) bool { return false }, nil
		}
		return func(doc primitive.D) bool {
			for _, n := range subs {
				if n(doc) {
					return true
				}
			}
			return false
		}, nil
	case "$nor":
		subs, err := compileDocArray(val)
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			return func(primitive.D) bool { return true }, nil
		}
		return func(doc primitive.D) bool {
			for _, n := range subs {
				if n(doc) {
					return false
				}
			}
			return true
		}, nil
	case "$expr":
		compiled, err := expr.Compile(val)
		if err != nil {
			return nil, err
		}
		return func(doc primitive.D) bool {
			v, err := compiled.Eval(doc)
			if err != nil {
				return false
			}
			return expr.Truthy(v)
		}, nil
	case "$comment":
		return func(primitive.D) bool { return true }, nil
	case "$text":
		return nil, dberr.BadValue("$text is not supported by this engine")
	case "$where":
		return nil, dberr.BadValue("$where is not supported by this engine")
	default:
		return nil, dberr.FailedToParse("unknown top-level operator: %s", op)
	}
}

func compileDocArray(val interface{}) ([]node, error) {
	arr, ok := bsonval.ToArray(val)
	if !ok {
		return nil, dberr.FailedToParse("expected an array of query documents")
	}
	out := make([]node, 0, len(arr))
	for _, item := range arr {
		n, err := compileDoc(asDoc(item))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func andAll(nodes []node) node {
	if len(nodes) == 0 {
		return func(primitive.D) bool { return true }
	}
	if len(nodes) == 1 {
		return nodes[0]
	}
	return func(doc primitive.D) bool {
		for _, n := range nodes {
			if !n(doc) {
				return false
			}
		}
		return true
	}
}

// compileField compiles the clause for a single (possibly dotted) field
// path into a predicate over whole documents.
func compileField(path string, clause interface{}) (node, error) {
	if rx, ok := clause.(primitive.Regex); ok {
		return regexFieldNode(path, rx), nil
	}

	if d, ok := asOperatorDoc(clause); ok {
		preds := make([]fieldPredicate, 0, len(d))
		var regexPattern, regexOptions string
		hasRegex := false
		for _, e := range d {
			if e.Key == "$options" {
				if s, ok := e.Value.(string); ok {
					regexOptions = s
				}
				continue
			}
			if e.Key == "$regex" {
				hasRegex = true
				switch v := e.Value.(type) {
				case string:
					regexPattern = v
				case primitive.Regex:
					regexPattern = v.Pattern
					if regexOptions == "" {
						regexOptions = v.Options
					}
				default:
					return nil, dberr.BadValue("$regex requires a string or regex pattern")
				}
				continue
			}
			p, err := compileOperator(e.Key, e.Value, path)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		if hasRegex {
			rx, err := compileRegex(regexPattern, regexOptions)
			if err != nil {
				return nil, err
			}
			preds = append(preds, rx)
		}
		return func(doc primitive.D) bool {
			for _, p := range preds {
				if !p(doc, path) {
					return false
				}
			}
			return true
		}, nil
	}

	// Literal equality: V equals C, or (V is array and some element equals C).
	return func(doc primitive.D) bool {
		v := pathutil.Get(doc, path)
		return literalMatches(v, clause)
	}, nil
}

func literalMatches(v, clause interface{}) bool {
	if bsonval.Equal(v, clause) {
		return true
	}
	if arr, ok := bsonval.ToArray(v); ok {
		for _, elt := range arr {
			if bsonval.Equal(elt, clause) {
				return true
			}
		}
	}
	return false
}

func regexFieldNode(path string, rx primitive.Regex) node {
	pred, err := compileRegex(rx.Pattern, rx.Options)
	if err != nil {
		return func(primitive.D) bool { return false }
	}
	return func(doc primitive.D) bool {
		return pred(doc, path)
	}
}

// asOperatorDoc reports whether clause is a non-empty document all of whose
// keys start with "$" — the operator-document form of spec.md §4.2.
func asOperatorDoc(clause interface{}) (primitive.D, bool) {
	d := asDocMaybe(clause)
	if d == nil {
		return nil, false
	}
	if len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

func asDocMaybe(v interface{}) primitive.D {
	switch t := v.(type) {
	case primitive.D:
		return t
	case primitive.M:
		return bsonval.ToDoc(t)
	case map[string]interface{}:
		return bsonval.ToDoc(t)
	}
	return nil
}

func asDoc(v interface{}) primitive.D {
	if v == nil {
		return nil
	}
	d := asDocMaybe(v)
	return d
}
