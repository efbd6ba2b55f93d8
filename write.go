package mangodb

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/match"
	"github.com/JKershaw/mangodb/internal/pathutil"
	"github.com/JKershaw/mangodb/internal/update"
)

// InsertOne stores doc (allocating _id if absent) and returns the id used.
func (c *Collection) InsertOne(doc primitive.D) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertDocLocked(doc)
}

// InsertMany stores docs in list order. When ordered is true, the first
// failure stops the batch (spec.md §5 "Ordering guarantees"); remaining
// documents are reported as not inserted. When false, every document is
// attempted and failures are collected.
func (c *Collection) InsertMany(docs []primitive.D, ordered bool) (n int, writeErrors []WriteError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range docs {
		if _, err := c.insertDocLocked(d); err != nil {
			writeErrors = append(writeErrors, WriteError{Index: i, Err: err})
			if ordered {
				return n, writeErrors
			}
			continue
		}
		n++
	}
	return n, writeErrors
}

// WriteError pairs a batch-relative operation index with the error it
// raised (spec.md §5/§6 "writeErrors").
type WriteError struct {
	Index int
	Err   error
}

// UpdateSpec is one entry of the wire "update" command's updates array.
type UpdateSpec struct {
	Filter       primitive.D
	Update       interface{}
	Multi        bool
	Upsert       bool
	ArrayFilters []primitive.D
}

// UpdateResult reports match/modify accounting for one UpdateSpec (spec.md
// §4.3 "Accounting").
type UpdateResult struct {
	Matched    int64
	Modified   int64
	UpsertedID interface{}
}

// UpdateOne/UpdateMany/ApplyUpdate all funnel through this: find candidate
// documents, apply the update engine to each, and perform the upsert path
// when nothing matched.
func (c *Collection) ApplyUpdate(spec UpdateSpec) (UpdateResult, error) {
	m, err := match.Compile(spec.Filter)
	if err != nil {
		return UpdateResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var targets []*record
	for _, r := range c.order {
		if m.Matches(r.doc) {
			targets = append(targets, r)
			if !spec.Multi {
				break
			}
		}
	}

	var res UpdateResult
	if len(targets) == 0 {
		if !spec.Upsert {
			return res, nil
		}
		seed, err := buildUpsertSeed(spec.Filter, spec.Update)
		if err != nil {
			return res, err
		}
		id, err := c.insertDocLocked(seed)
		if err != nil {
			return res, err
		}
		res.UpsertedID = id
		return res, nil
	}

	for _, r := range targets {
		res.Matched++
		result, err := update.Apply(r.doc, spec.Update, update.Options{
			ArrayFilters: spec.ArrayFilters,
			MatchedIndex: -1,
		})
		if err != nil {
			return res, err
		}
		if !result.Modified {
			continue
		}
		if err := c.replaceDocLocked(r.id, result.Doc); err != nil {
			return res, err
		}
		res.Modified++
	}
	return res, nil
}

// buildUpsertSeed implements spec.md §4.3 "Upsert": deep-merge the filter's
// equality fragments, then apply the update document (operator or
// replacement form), then ensure _id.
func buildUpsertSeed(filter primitive.D, upd interface{}) (primitive.D, error) {
	seed := equalityFragments(filter)
	result, err := update.Apply(seed, upd, update.Options{MatchedIndex: -1, IsInsert: true})
	if err != nil {
		return nil, err
	}
	return result.Doc, nil
}

// equalityFragments extracts the literal/$eq field values from filter,
// excluding any other $-operator clause, per spec.md §4.3.
func equalityFragments(filter primitive.D) primitive.D {
	var out primitive.D
	for _, e := range filter {
		if len(e.Key) == 0 || e.Key[0] == '$' {
			continue
		}
		switch v := e.Value.(type) {
		case primitive.D:
			if len(v) == 1 && v[0].Key == "$eq" {
				out, _ = pathutil.Set(out, e.Key, v[0].Value)
			} else if isOperatorDocField(v) {
				continue
			} else {
				out, _ = pathutil.Set(out, e.Key, v)
			}
		default:
			out, _ = pathutil.Set(out, e.Key, v)
		}
	}
	return out
}

// DeleteSpec is one entry of the wire "delete" command's deletes array.
type DeleteSpec struct {
	Filter primitive.D
	Limit  int64 // 0 = delete all matches, 1 = delete first match only
}

// ApplyDelete removes matching documents and returns the count removed.
func (c *Collection) ApplyDelete(spec DeleteSpec) (int64, error) {
	m, err := match.Compile(spec.Filter)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []interface{}
	for _, r := range c.order {
		if m.Matches(r.doc) {
			ids = append(ids, r.id)
			if spec.Limit == 1 {
				break
			}
		}
	}
	for _, id := range ids {
		c.deleteDocLocked(id)
	}
	return int64(len(ids)), nil
}

// FindAndModifyOptions mirrors the wire findAndModify command (spec.md §6).
type FindAndModifyOptions struct {
	Filter       primitive.D
	Sort         primitive.D
	Remove       bool
	Update       interface{}
	ReturnAfter  bool
	Upsert       bool
	Fields       primitive.D
	ArrayFilters []primitive.D
}

// FindAndModify implements spec.md §4.3 "findOneAndX": operates on exactly
// one document, selected in sort order when given, returning the pre- or
// post-image per ReturnAfter.
func (c *Collection) FindAndModify(opts FindAndModifyOptions) (primitive.D, error) {
	m, err := match.Compile(opts.Filter)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var matchedIDs []interface{}
	for _, r := range c.order {
		if m.Matches(r.doc) {
			matchedIDs = append(matchedIDs, r.id)
		}
	}
	if len(opts.Sort) > 0 {
		matchedIDs = sortDocsByIDs(c, matchedIDs, parseSortSpec(opts.Sort))
	}

	if len(matchedIDs) == 0 {
		if !opts.Upsert || opts.Remove {
			return nil, nil
		}
		seed, err := buildUpsertSeed(opts.Filter, opts.Update)
		if err != nil {
			return nil, err
		}
		id, err := c.insertDocLocked(seed)
		if err != nil {
			return nil, err
		}
		if !opts.ReturnAfter {
			return nil, nil
		}
		r := c.findRecordLocked(id)
		return projectMaybe(r.doc, opts.Fields), nil
	}

	r := c.findRecordLocked(matchedIDs[0])
	before := bsonval.Clone(r.doc).(primitive.D)

	if opts.Remove {
		c.deleteDocLocked(r.id)
		return projectMaybe(before, opts.Fields), nil
	}

	result, err := update.Apply(r.doc, opts.Update, update.Options{ArrayFilters: opts.ArrayFilters, MatchedIndex: -1})
	if err != nil {
		return nil, err
	}
	if result.Modified {
		if err := c.replaceDocLocked(r.id, result.Doc); err != nil {
			return nil, err
		}
	}
	if opts.ReturnAfter {
		return projectMaybe(result.Doc, opts.Fields), nil
	}
	return projectMaybe(before, opts.Fields), nil
}

func projectMaybe(doc primitive.D, fields primitive.D) primitive.D {
	if len(fields) == 0 {
		return doc
	}
	return Project(doc, fields)
}

// Count returns the number of documents matching filter.
func (c *Collection) Count(filter primitive.D) (int64, error) {
	m, err := match.Compile(filter)
	if err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, r := range c.order {
		if m.Matches(r.doc) {
			n++
		}
	}
	return n, nil
}
