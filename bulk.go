package mangodb

import (
	"bytes"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BulkResult reports the aggregate effect of a Bulk.Run() (spec.md §5
// "Ordering guarantees"), keeping the teacher's Matched/Modified shape and
// adding the fields a document-level engine also needs to report: how many
// documents were freshly inserted, removed, and any ids the bulk upserted.
type BulkResult struct {
	Matched  int
	Modified int
	Inserted int
	Removed  int

	UpsertedIDs []BulkUpserted
}

// BulkUpserted records one upsert's batch-relative index and assigned _id.
type BulkUpserted struct {
	Index int
	ID    interface{}
}

// BulkErrorCase stores the error and the index (position) within a bulk
// operation that generated it, matching the teacher's legacy_types.go shape.
type BulkErrorCase struct {
	Index int
	Err   error
}

// BulkError aggregates one or more BulkErrorCase instances.
type BulkError struct {
	ecases []BulkErrorCase
}

func (e *BulkError) Error() string {
	if len(e.ecases) == 0 {
		return "invalid BulkError instance: no errors"
	}
	if len(e.ecases) == 1 {
		return e.ecases[0].Err.Error()
	}
	var buf bytes.Buffer
	buf.WriteString("multiple errors in bulk operation:\n")
	seen := make(map[string]bool, len(e.ecases))
	for _, c := range e.ecases {
		msg := c.Err.Error()
		if !seen[msg] {
			seen[msg] = true
			buf.WriteString("  - ")
			buf.WriteString(msg)
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// Cases exposes the individual error cases contained in the BulkError.
func (e *BulkError) Cases() []BulkErrorCase {
	return e.ecases
}

type bulkOpKind int

const (
	bulkInsert bulkOpKind = iota
	bulkUpdateOne
	bulkUpdateMany
	bulkDeleteOne
	bulkDeleteMany
)

type bulkOp struct {
	kind   bulkOpKind
	doc    primitive.D
	filter primitive.D
	update interface{}
	upsert bool
}

// Bulk queues heterogeneous write operations for a single Run(), applying
// spec.md §5's ordered/unordered semantics: ordered stops at the first
// error and reports the failed op's index; unordered attempts every op and
// collects every error.
type Bulk struct {
	coll    *Collection
	ordered bool
	ops     []bulkOp
}

// NewBulk starts an ordered bulk builder (call Unordered() to relax it).
func (c *Collection) NewBulk() *Bulk {
	return &Bulk{coll: c, ordered: true}
}

// Unordered puts the bulk operation in unordered mode.
func (b *Bulk) Unordered() *Bulk {
	b.ordered = false
	return b
}

// Insert queues documents for insertion.
func (b *Bulk) Insert(docs ...primitive.D) *Bulk {
	for _, d := range docs {
		b.ops = append(b.ops, bulkOp{kind: bulkInsert, doc: d})
	}
	return b
}

// Update queues a filter/update pair matching at most one document.
func (b *Bulk) Update(filter primitive.D, update interface{}) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdateOne, filter: filter, update: update})
	return b
}

// UpdateAll queues a filter/update pair matching every document.
func (b *Bulk) UpdateAll(filter primitive.D, update interface{}) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdateMany, filter: filter, update: update})
	return b
}

// Upsert queues a filter/update pair that inserts when nothing matches.
func (b *Bulk) Upsert(filter primitive.D, update interface{}) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdateOne, filter: filter, update: update, upsert: true})
	return b
}

// Remove queues a filter removing at most one matching document.
func (b *Bulk) Remove(filter primitive.D) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkDeleteOne, filter: filter})
	return b
}

// RemoveAll queues a filter removing every matching document.
func (b *Bulk) RemoveAll(filter primitive.D) *Bulk {
	b.ops = append(b.ops, bulkOp{kind: bulkDeleteMany, filter: filter})
	return b
}

// Run executes every queued operation per the builder's ordered/unordered
// mode, returning an aggregate BulkResult and, if any operation failed, a
// *BulkError listing every failure (spec.md §5 end-to-end scenario 6).
func (b *Bulk) Run() (*BulkResult, error) {
	res := &BulkResult{}
	var berr BulkError
	for i, op := range b.ops {
		switch op.kind {
		case bulkInsert:
			if _, err := b.coll.InsertOne(op.doc); err != nil {
				berr.ecases = append(berr.ecases, BulkErrorCase{Index: i, Err: err})
				if b.ordered {
					return res, &berr
				}
				continue
			}
			res.Inserted++
		case bulkUpdateOne, bulkUpdateMany:
			ur, err := b.coll.ApplyUpdate(UpdateSpec{
				Filter: op.filter,
				Update: op.update,
				Multi:  op.kind == bulkUpdateMany,
				Upsert: op.upsert,
			})
			if err != nil {
				berr.ecases = append(berr.ecases, BulkErrorCase{Index: i, Err: err})
				if b.ordered {
					return res, &berr
				}
				continue
			}
			res.Matched += int(ur.Matched)
			res.Modified += int(ur.Modified)
			if ur.UpsertedID != nil {
				res.UpsertedIDs = append(res.UpsertedIDs, BulkUpserted{Index: i, ID: ur.UpsertedID})
			}
		case bulkDeleteOne, bulkDeleteMany:
			limit := int64(0)
			if op.kind == bulkDeleteOne {
				limit = 1
			}
			n, err := b.coll.ApplyDelete(DeleteSpec{Filter: op.filter, Limit: limit})
			if err != nil {
				berr.ecases = append(berr.ecases, BulkErrorCase{Index: i, Err: err})
				if b.ordered {
					return res, &berr
				}
				continue
			}
			res.Removed += int(n)
		}
	}
	if len(berr.ecases) > 0 {
		return res, &berr
	}
	return res, nil
}
