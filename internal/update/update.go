// Package update implements the update engine of spec.md §4.3: field,
// arithmetic, array, and bitwise operator groups applied atomically to one
// document, plus the upsert seed construction spec.md §4.3/§9 describes.
package update

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/match"
)

// Options carries the context an update needs beyond the operator document
// itself: the array filters declared alongside it, the array index (if any)
// the query matched for the "$" positional operator, and whether this
// application is the upsert-insert path (gating $setOnInsert).
type Options struct {
	ArrayFilters []primitive.D
	MatchedIndex int // -1 when no "$" positional operator is in play
	IsInsert     bool
}

// Result is the outcome of one Apply call.
type Result struct {
	Doc      primitive.D
	Modified bool
}

type applyCtx struct {
	opts           Options
	filterMatchers map[string]*match.Matcher
	touched        map[string]string // path -> operator that wrote it, for conflict detection
}

// Apply applies spec (either a replacement document or an operator document,
// spec.md §4.3) to doc and returns the new document. doc's _id is always
// preserved: a replacement document must not name a different _id, and an
// operator document may never touch _id.
func Apply(doc primitive.D, spec interface{}, opts Options) (Result, error) {
	specDoc, ok := asDoc(spec)
	if !ok {
		return Result{}, dberr.BadValue("update document must be a BSON document")
	}

	if isOperatorDoc(specDoc) {
		return applyOperators(doc, specDoc, opts)
	}
	if hasAnyOperatorKey(specDoc) {
		return Result{}, dberr.FailedToParse("update document cannot mix operator and replacement-style fields")
	}
	return applyReplacement(doc, specDoc)
}

func applyReplacement(doc, spec primitive.D) (Result, error) {
	id := idOf(doc)
	newDoc := make(primitive.D, 0, len(spec)+1)
	sawID := false
	for _, e := range spec {
		if e.Key == "_id" {
			sawID = true
			if id != nil && !bsonval.Equal(e.Value, id) {
				return Result{}, dberr.New(66, "after applying the update, the (immutable) field '_id' was found to have been altered")
			}
		}
		newDoc = append(newDoc, e)
	}
	if !sawID && id != nil {
		newDoc = append(primitive.D{{Key: "_id", Value: id}}, newDoc...)
	}
	return Result{Doc: newDoc, Modified: !bsonval.Equal(doc, newDoc)}, nil
}

func applyOperators(doc, spec primitive.D, opts Options) (Result, error) {
	ctx := &applyCtx{opts: opts, touched: map[string]string{}}
	var err error
	ctx.filterMatchers, err = compileArrayFilters(opts.ArrayFilters)
	if err != nil {
		return Result{}, err
	}

	cur := append(primitive.D{}, doc...)
	modified := false

	for _, e := range spec {
		op := e.Key
		if op == "$setOnInsert" && !opts.IsInsert {
			continue
		}
		handler, ok := operators[op]
		if !ok {
			return Result{}, dberr.FailedToParse("unknown update operator: %s", op)
		}
		fields, ok := asDoc(e.Value)
		if !ok {
			return Result{}, dberr.BadValue("%s requires a document argument", op)
		}
		for _, f := range fields {
			if f.Key == "_id" || strings.HasPrefix(f.Key, "_id.") {
				return Result{}, dberr.BadValue("performing an update on the path '_id' would modify the immutable field '_id'")
			}
			paths, err := expandPaths(cur, splitPath(f.Key), ctx)
			if err != nil {
				return Result{}, err
			}
			for _, segs := range paths {
				concrete := strings.Join(segs, ".")
				if err := checkConflict(ctx, op, concrete); err != nil {
					return Result{}, err
				}
				changed, newDoc, err := handler(cur, concrete, f.Value)
				if err != nil {
					return Result{}, err
				}
				cur = newDoc
				if changed {
					modified = true
				}
			}
		}
	}
	return Result{Doc: cur, Modified: modified}, nil
}

func checkConflict(ctx *applyCtx, op, path string) error {
	if prior, ok := ctx.touched[path]; ok && prior != op {
		return dberr.New(dberr.CodeConflictingUpdateOps,
			"Updating the path '%s' would create a conflict at '%s'", path, path)
	}
	ctx.touched[path] = op
	return nil
}

// operators is the closed dispatch table (spec.md §9) of update-operator
// groups. Each handler receives the working document, a fully concrete
// (positional-operator-resolved) dotted path, and the operator's raw
// argument for that field, returning whether the write actually changed
// anything.
var operators = map[string]func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error){}

func registerOp(name string, fn func(doc primitive.D, path string, arg interface{}) (bool, primitive.D, error)) {
	operators[name] = fn
}

func idOf(doc primitive.D) interface{} {
	for _, e := range doc {
		if e.Key == "_id" {
			return e.Value
		}
	}
	return nil
}

func isOperatorDoc(d primitive.D) bool {
	if len(d) == 0 {
		return false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return false
		}
	}
	return true
}

func hasAnyOperatorKey(d primitive.D) bool {
	for _, e := range d {
		if strings.HasPrefix(e.Key, "$") {
			return true
		}
	}
	return false
}

func asDoc(v interface{}) (primitive.D, bool) {
	switch t := v.(type) {
	case primitive.D:
		return t, true
	case primitive.M:
		return bsonval.ToDoc(t), true
	case map[string]interface{}:
		return bsonval.ToDoc(t), true
	}
	return nil, false
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func compileArrayFilters(filters []primitive.D) (map[string]*match.Matcher, error) {
	out := make(map[string]*match.Matcher, len(filters))
	for _, f := range filters {
		ident := identifierOf(f)
		if ident == "" {
			return nil, dberr.BadValue("arrayFilters entry has no identifiable top-level field")
		}
		m, err := match.Compile(f)
		if err != nil {
			return nil, err
		}
		out[ident] = m
	}
	return out, nil
}

func identifierOf(f primitive.D) string {
	for _, e := range f {
		seg := strings.SplitN(e.Key, ".", 2)[0]
		return seg
	}
	return ""
}

// expandPaths resolves every "$" (matched-query positional) and "$[id]"/
// "$[]" (array-filter positional) token in a dotted path into the set of
// fully concrete paths it denotes against cur (spec.md §4.3 "positional
// operators").
func expandPaths(cur interface{}, segs []string, ctx *applyCtx) ([][]string, error) {
	if len(segs) == 0 {
		return [][]string{{}}, nil
	}
	seg := segs[0]
	rest := segs[1:]

	switch {
	case seg == "$":
		if ctx.opts.MatchedIndex < 0 {
			return nil, dberr.BadValue("the positional operator '$' requires a query matching the array field")
		}
		arr, ok := asArrayAny(cur)
		if !ok || ctx.opts.MatchedIndex >= len(arr) {
			return nil, dberr.BadValue("the positional operator '$' found no matching array element")
		}
		idx := ctx.opts.MatchedIndex
		subs, err := expandPaths(arr[idx], rest, ctx)
		if err != nil {
			return nil, err
		}
		return prefixAll(strconv.Itoa(idx), subs), nil

	case strings.HasPrefix(seg, "$[") && strings.HasSuffix(seg, "]"):
		ident := seg[2 : len(seg)-1]
		arr, ok := asArrayAny(cur)
		if !ok {
			return nil, dberr.BadValue("the array filter positional operator requires an array field")
		}
		var indices []int
		if ident == "" {
			for i := range arr {
				indices = append(indices, i)
			}
		} else {
			m, ok := ctx.filterMatchers[ident]
			if !ok {
				return nil, dberr.BadValue("no array filter found for identifier %q", ident)
			}
			for i, elt := range arr {
				wrapped := primitive.D{{Key: ident, Value: elt}}
				if m.Matches(wrapped) {
					indices = append(indices, i)
				}
			}
		}
		var out [][]string
		for _, idx := range indices {
			subs, err := expandPaths(arr[idx], rest, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, prefixAll(strconv.Itoa(idx), subs)...)
		}
		return out, nil

	default:
		next := childOf(cur, seg)
		subs, err := expandPaths(next, rest, ctx)
		if err != nil {
			return nil, err
		}
		return prefixAll(seg, subs), nil
	}
}

func prefixAll(seg string, subs [][]string) [][]string {
	out := make([][]string, len(subs))
	for i, s := range subs {
		out[i] = append([]string{seg}, s...)
	}
	return out
}

func childOf(cur interface{}, seg string) interface{} {
	switch t := cur.(type) {
	case primitive.D:
		for _, e := range t {
			if e.Key == seg {
				return e.Value
			}
		}
	case primitive.M:
		return t[seg]
	case map[string]interface{}:
		return t[seg]
	case primitive.A:
		if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 && idx < len(t) {
			return t[idx]
		}
	case []interface{}:
		if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 && idx < len(t) {
			return t[idx]
		}
	}
	return nil
}

func asArrayAny(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case primitive.A:
		return []interface{}(t), true
	case []interface{}:
		return t, true
	}
	return nil, false
}
