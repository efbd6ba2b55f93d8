package mangodb

import (
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/index"
)

// record is one stored document plus its extracted _id, kept alongside the
// document so that identity lookups never re-walk the document body.
type record struct {
	id  interface{}
	doc primitive.D
}

// Collection is a named container of documents and their indexes (spec.md
// §3 "Collection"). All of a collection's state sits behind a single
// logical writer-exclusive lock (spec.md §5 "Shared resources") — readers
// and writers on distinct collections never contend.
type Collection struct {
	name string

	mu      sync.RWMutex
	byHash  map[uint64][]*record
	order   []*record
	indexes *index.Manager
}

func newCollection(name string) *Collection {
	return &Collection{
		name:    name,
		byHash:  map[uint64][]*record{},
		indexes: index.NewManager(),
	}
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) findRecordLocked(id interface{}) *record {
	h := bsonval.Hash(id)
	for _, r := range c.byHash[h] {
		if bsonval.Equal(r.id, id) {
			return r
		}
	}
	return nil
}

func (c *Collection) insertRecordLocked(r *record) {
	h := bsonval.Hash(r.id)
	c.byHash[h] = append(c.byHash[h], r)
	c.order = append(c.order, r)
}

func (c *Collection) removeRecordLocked(id interface{}) {
	h := bsonval.Hash(id)
	bucket := c.byHash[h]
	for i, r := range bucket {
		if bsonval.Equal(r.id, id) {
			c.byHash[h] = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	for i, r := range c.order {
		if bsonval.Equal(r.id, id) {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

// insertDocLocked validates and stores doc, allocating an _id when absent,
// and maintains every secondary index. Caller holds c.mu for writing.
func (c *Collection) insertDocLocked(doc primitive.D) (interface{}, error) {
	id, doc, err := ensureID(doc)
	if err != nil {
		return nil, err
	}
	if c.findRecordLocked(id) != nil {
		return nil, dberr.DuplicateKey("_id_", describeID(id))
	}
	if err := c.indexes.Insert(id, doc); err != nil {
		return nil, err
	}
	c.insertRecordLocked(&record{id: id, doc: doc})
	return id, nil
}

// replaceDocLocked swaps the stored document for id, maintaining indexes.
func (c *Collection) replaceDocLocked(id interface{}, newDoc primitive.D) error {
	r := c.findRecordLocked(id)
	if r == nil {
		return dberr.New(dberr.CodeInternalError, "replaceDocLocked: document %v not found", id)
	}
	if err := c.indexes.Replace(id, r.doc, newDoc); err != nil {
		return err
	}
	r.doc = newDoc
	return nil
}

// deleteDocLocked removes the stored document for id, maintaining indexes.
func (c *Collection) deleteDocLocked(id interface{}) {
	r := c.findRecordLocked(id)
	if r == nil {
		return
	}
	c.indexes.Remove(id, r.doc)
	c.removeRecordLocked(id)
}

// allDocsLocked returns every stored document in insertion order. Used by
// full scans, aggregation input, and $lookup/$unionWith resolution.
func (c *Collection) allDocsLocked() []primitive.D {
	out := make([]primitive.D, len(c.order))
	for i, r := range c.order {
		out[i] = r.doc
	}
	return out
}

// AllDocuments returns a snapshot copy of every document currently stored,
// the building block $lookup/$unionWith use to cross collection boundaries.
func (c *Collection) AllDocuments() []primitive.D {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allDocsLocked()
}

func ensureID(doc primitive.D) (interface{}, primitive.D, error) {
	for _, e := range doc {
		if e.Key == "_id" {
			if _, isArr := e.Value.(primitive.A); isArr {
				return nil, nil, dberr.BadValue("_id cannot be an array")
			}
			if arr, isArr := e.Value.([]interface{}); isArr {
				_ = arr
				return nil, nil, dberr.BadValue("_id cannot be an array")
			}
			return e.Value, bsonval.Clone(doc).(primitive.D), nil
		}
	}
	id := primitive.NewObjectID()
	out := make(primitive.D, 0, len(doc)+1)
	out = append(out, primitive.E{Key: "_id", Value: id})
	out = append(out, doc...)
	return id, bsonval.Clone(out).(primitive.D), nil
}

func describeID(id interface{}) string {
	switch t := id.(type) {
	case string:
		return "{ _id: \"" + t + "\" }"
	case primitive.ObjectID:
		return "{ _id: ObjectId(\"" + t.Hex() + "\") }"
	default:
		return fmt.Sprintf("{ _id: %v }", t)
	}
}
