package mangodb

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

func fieldPath(doc primitive.D, path string) interface{} {
	return pathutil.Get(doc, path)
}

// Cursor is a lazy sequence over a logical snapshot of a query's matching
// documents (spec.md §5 "snapshot+id-set"): it holds a frozen id vector
// taken at creation time, not a live reference into the collection, so
// writes after the snapshot never change which documents the cursor will
// yield — only their content, read as of each Next() call.
type Cursor struct {
	coll *Collection
	ids  []interface{}
	pos  int
	err  error
}

func newCursor(coll *Collection, ids []interface{}) *Cursor {
	return &Cursor{coll: coll, ids: ids}
}

// Next advances the cursor and reports whether a document is available.
func (cur *Cursor) Next() bool {
	if cur.err != nil {
		return false
	}
	return cur.pos < len(cur.ids)
}

// Document returns the current document's up-to-date content (post-image of
// any update applied since the snapshot) and advances past it.
func (cur *Cursor) Document() (primitive.D, bool) {
	for cur.pos < len(cur.ids) {
		id := cur.ids[cur.pos]
		cur.pos++
		cur.coll.mu.RLock()
		r := cur.coll.findRecordLocked(id)
		cur.coll.mu.RUnlock()
		if r == nil {
			continue // deleted since the snapshot was taken
		}
		return bsonval.Clone(r.doc).(primitive.D), true
	}
	return nil, false
}

// Err returns any error raised during iteration.
func (cur *Cursor) Err() error { return cur.err }

// Close releases the cursor; a snapshot holds no external resources so this
// only prevents further iteration.
func (cur *Cursor) Close() {
	cur.pos = len(cur.ids)
}

// All drains the cursor into a slice, for callers that don't need lazy
// iteration.
func (cur *Cursor) All() ([]primitive.D, error) {
	var out []primitive.D
	for cur.Next() {
		d, ok := cur.Document()
		if !ok {
			break
		}
		out = append(out, d)
	}
	return out, cur.err
}

// sortSpec pairs a field path with ascending/descending direction for
// $sort-style multi-key ordering.
type sortSpec struct {
	field string
	desc  bool
}

func parseSortSpec(spec primitive.D) []sortSpec {
	out := make([]sortSpec, 0, len(spec))
	for _, e := range spec {
		desc := false
		if f, ok := bsonval.AsFloat64(e.Value); ok && f < 0 {
			desc = true
		}
		out = append(out, sortSpec{field: e.Key, desc: desc})
	}
	return out
}

func sortDocsByIDs(coll *Collection, ids []interface{}, specs []sortSpec) []interface{} {
	type scored struct {
		id  interface{}
		doc primitive.D
	}
	rows := make([]scored, 0, len(ids))
	for _, id := range ids {
		r := coll.findRecordLocked(id)
		if r == nil {
			continue
		}
		rows = append(rows, scored{id, r.doc})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range specs {
			va := fieldPath(rows[i].doc, s.field)
			vb := fieldPath(rows[j].doc, s.field)
			c := bsonval.Compare(bsonval.SortKey(va, s.desc), bsonval.SortKey(vb, s.desc))
			if c != 0 {
				if s.desc {
					return c > 0
				}
				return c < 0
			}
		}
		return false
	})
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r.id
	}
	return out
}
