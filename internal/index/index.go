// Package index implements the secondary-index layer of spec.md §4.6: an
// ordered keyed index over one or more document fields (sorted-slice,
// binary-search maintenance; no external B-tree library is wired),
// uniqueness enforcement, sparse/multikey handling, and
// the 2d/2dsphere geo variants in geo.go.
package index

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/pathutil"
)

// Spec describes one index the way createIndexes/listIndexes (spec.md §6)
// shape it: an ordered key document (field -> 1/-1/"2d"/"2dsphere") plus
// the unique/sparse modifiers.
type Spec struct {
	Name   string
	Keys   primitive.D
	Unique bool
	Sparse bool
}

// DefaultName derives the default index name from its key document the way
// a reference server does: "<field>_<dir>" pairs joined with underscores.
func DefaultName(keys primitive.D) string {
	var b []byte
	for i, e := range keys {
		if i > 0 {
			b = append(b, '_')
		}
		b = append(b, e.Key...)
		b = append(b, '_')
		switch v := e.Value.(type) {
		case string:
			b = append(b, v...)
		default:
			if f, ok := bsonval.AsFloat64(v); ok && f < 0 {
				b = append(b, '-', '1')
			} else {
				b = append(b, '1')
			}
		}
	}
	return string(b)
}

// entry is one compound-key occurrence: a document may contribute more
// than one entry when one of its key fields is an array (multikey index,
// spec.md §4.6).
type entry struct {
	key primitive.A // one value per Spec.Keys field
	id  interface{}
}

// Index is a single ordered secondary index over a collection. byID is
// keyed by bsonval.Hash(id) rather than id itself: _id (and therefore any
// indexed document's id) may be any value other than an array, including a
// document (spec.md §3), and a primitive.D is a slice — unhashable, and a
// runtime panic as a raw map key.
type Index struct {
	Spec    Spec
	entries []entry
	byID    map[uint64][]int
	geo     *geoIndex // non-nil when Spec names a 2d/2dsphere field
}

// New builds an empty index for spec. A geo key ("2d"/"2dsphere" as the
// sole or leading key value) additionally wires a geoIndex.
func New(spec Spec) *Index {
	idx := &Index{Spec: spec, byID: map[uint64][]int{}}
	if kind, field, ok := geoKeyOf(spec.Keys); ok {
		idx.geo = newGeoIndex(kind, field)
	}
	return idx
}

func geoKeyOf(keys primitive.D) (kind, field string, ok bool) {
	for _, e := range keys {
		if s, isStr := e.Value.(string); isStr && (s == "2d" || s == "2dsphere") {
			return s, e.Key, true
		}
	}
	return "", "", false
}

// Insert adds doc's key(s) to the index, enforcing uniqueness. Sparse
// indexes skip documents missing every key field entirely.
func (idx *Index) Insert(id interface{}, doc primitive.D) error {
	if idx.geo != nil {
		idx.geo.insert(id, doc)
	}
	keys, skip := idx.extractKeys(doc)
	if skip {
		return nil
	}
	for _, k := range keys {
		if idx.Spec.Unique {
			if existing := idx.lookupExact(k); len(existing) > 0 {
				return dberr.DuplicateKey(idx.Spec.Name, describeKey(idx.Spec.Keys, k))
			}
		}
		idx.insertEntry(entry{key: k, id: id})
	}
	return nil
}

// Remove deletes every entry belonging to id.
func (idx *Index) Remove(id interface{}, doc primitive.D) {
	if idx.geo != nil {
		idx.geo.remove(id)
	}
	h := bsonval.Hash(id)
	var positions []int
	for _, p := range idx.byID[h] {
		if bsonval.Equal(idx.entries[p].id, id) {
			positions = append(positions, p)
		}
	}
	if len(positions) == 0 {
		return
	}
	sort.Sort(sort.Reverse(sort.IntSlice(positions)))
	for _, p := range positions {
		idx.entries = append(idx.entries[:p], idx.entries[p+1:]...)
	}
	idx.reindexPositions()
}

// Replace updates id's entries to reflect newDoc, preserving uniqueness.
func (idx *Index) Replace(id interface{}, oldDoc, newDoc primitive.D) error {
	idx.Remove(id, oldDoc)
	if err := idx.Insert(id, newDoc); err != nil {
		idx.Insert(id, oldDoc) // best-effort rollback
		return err
	}
	return nil
}

func (idx *Index) extractKeys(doc primitive.D) (keys []primitive.A, allMissing bool) {
	perField := make([][]interface{}, len(idx.Spec.Keys))
	missingCount := 0
	for i, e := range idx.Spec.Keys {
		vals := pathutil.Candidates(doc, e.Key)
		if len(vals) == 1 && bsonval.IsMissing(vals[0]) {
			missingCount++
		}
		perField[i] = vals
	}
	if idx.Spec.Sparse && missingCount == len(idx.Spec.Keys) {
		return nil, true
	}
	// Cartesian product across fields, matching multikey fan-out for each
	// field independently (spec.md §4.6 "multikey").
	combos := [][]interface{}{{}}
	for _, vals := range perField {
		var next [][]interface{}
		for _, c := range combos {
			for _, v := range vals {
				row := append(append([]interface{}{}, c...), v)
				next = append(next, row)
			}
		}
		combos = next
	}
	out := make([]primitive.A, len(combos))
	for i, c := range combos {
		out[i] = primitive.A(c)
	}
	return out, false
}

func (idx *Index) insertEntry(e entry) {
	pos := sort.Search(len(idx.entries), func(i int) bool {
		return compareKeys(idx.entries[i].key, e.key) >= 0
	})
	idx.entries = append(idx.entries, entry{})
	copy(idx.entries[pos+1:], idx.entries[pos:])
	idx.entries[pos] = e
	idx.reindexPositions()
}

func (idx *Index) reindexPositions() {
	for k := range idx.byID {
		delete(idx.byID, k)
	}
	for i, e := range idx.entries {
		h := bsonval.Hash(e.id)
		idx.byID[h] = append(idx.byID[h], i)
	}
}

func (idx *Index) lookupExact(key primitive.A) []interface{} {
	lo := sort.Search(len(idx.entries), func(i int) bool {
		return compareKeys(idx.entries[i].key, key) >= 0
	})
	var out []interface{}
	for i := lo; i < len(idx.entries) && compareKeys(idx.entries[i].key, key) == 0; i++ {
		out = append(out, idx.entries[i].id)
	}
	return out
}

// EqualityLookup returns every document id whose leading key field equals
// value (single-field equality candidate selection, spec.md §4.6
// "rule-based candidate selection").
func (idx *Index) EqualityLookup(value interface{}) []interface{} {
	if len(idx.Spec.Keys) == 0 {
		return nil
	}
	lo := sort.Search(len(idx.entries), func(i int) bool {
		return len(idx.entries[i].key) > 0 && bsonval.Compare(idx.entries[i].key[0], value) >= 0
	})
	seen := map[uint64][]interface{}{}
	var out []interface{}
	for i := lo; i < len(idx.entries); i++ {
		if len(idx.entries[i].key) == 0 || bsonval.Compare(idx.entries[i].key[0], value) != 0 {
			break
		}
		id := idx.entries[i].id
		if !seenID(seen, id) {
			out = append(out, id)
		}
	}
	return out
}

// seenID reports whether id has already been recorded in seen, recording it
// if not. Ids are hashed rather than used as map keys directly since an _id
// may be a document (an unhashable primitive.D) as well as a scalar.
func seenID(seen map[uint64][]interface{}, id interface{}) bool {
	h := bsonval.Hash(id)
	for _, existing := range seen[h] {
		if bsonval.Equal(existing, id) {
			return true
		}
	}
	seen[h] = append(seen[h], id)
	return false
}

// AllIDsSorted returns every indexed id in key order (leading field),
// deduplicated, ascending. Used to satisfy a $sort matching the index's
// leading field without a separate in-memory sort.
func (idx *Index) AllIDsSorted() []interface{} {
	seen := map[uint64][]interface{}{}
	var out []interface{}
	for _, e := range idx.entries {
		if !seenID(seen, e.id) {
			out = append(out, e.id)
		}
	}
	return out
}

func compareKeys(a, b primitive.A) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := bsonval.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func describeKey(keys primitive.D, key primitive.A) string {
	d := make(primitive.D, 0, len(keys))
	for i, e := range keys {
		if i < len(key) {
			d = append(d, primitive.E{Key: e.Key, Value: key[i]})
		}
	}
	return bsonString(d)
}

func bsonString(d primitive.D) string {
	out := "{ "
	for i, e := range d {
		if i > 0 {
			out += ", "
		}
		out += e.Key + ": "
		out += stringifyValue(e.Value)
	}
	return out + " }"
}

func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return "\"" + t + "\""
	case primitive.ObjectID:
		return "ObjectId(\"" + t.Hex() + "\")"
	default:
		return fmt.Sprintf("%v", t)
	}
}
