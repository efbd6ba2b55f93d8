// modern_collection.go - collection operations for the legacy API facade.
package mangodb

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/index"
)

// Insert stores documents (mgo API compatible), allocating _id for any
// document that lacks one.
func (c *ModernColl) Insert(docs ...interface{}) error {
	converted, err := toDocSlice(docs)
	if err != nil {
		return err
	}
	for _, d := range converted {
		if _, err := c.coll.InsertOne(d); err != nil {
			return err
		}
	}
	return nil
}

// Find creates a query (mgo API compatible).
func (c *ModernColl) Find(query interface{}) *ModernQ {
	filter, err := toDoc(query)
	if err != nil {
		return &ModernQ{coll: c, filter: nil}
	}
	return &ModernQ{coll: c, filter: filter}
}

// FindId finds a document by its _id (mgo API compatible).
func (c *ModernColl) FindId(id interface{}) *ModernQ {
	return &ModernQ{coll: c, filter: idFilter(id)}
}

// Count counts every document in the collection.
func (c *ModernColl) Count() (int, error) {
	n, err := c.coll.Count(nil)
	return int(n), err
}

// Remove removes the first document matching selector.
func (c *ModernColl) Remove(selector interface{}) error {
	filter, err := toDoc(selector)
	if err != nil {
		return err
	}
	n, err := c.coll.ApplyDelete(DeleteSpec{Filter: filter, Limit: 1})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveId removes the document with the given _id.
func (c *ModernColl) RemoveId(id interface{}) error {
	return c.Remove(idFilter(id))
}

// RemoveAll removes every document matching selector.
func (c *ModernColl) RemoveAll(selector interface{}) (*ChangeInfo, error) {
	filter, err := toDoc(selector)
	if err != nil {
		return nil, err
	}
	n, err := c.coll.ApplyDelete(DeleteSpec{Filter: filter})
	if err != nil {
		return nil, err
	}
	return &ChangeInfo{Removed: int(n), Matched: int(n)}, nil
}

// Update applies update to the first document matching selector, wrapping a
// bare replacement document in $set the way the legacy driver did.
func (c *ModernColl) Update(selector, update interface{}) error {
	filter, err := toDoc(selector)
	if err != nil {
		return err
	}
	upd, err := toDoc(wrapInSetOperator(update))
	if err != nil {
		return err
	}
	res, err := c.coll.ApplyUpdate(UpdateSpec{Filter: filter, Update: upd})
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateId applies update to the document with the given _id.
func (c *ModernColl) UpdateId(id, update interface{}) error {
	return c.Update(idFilter(id), update)
}

// UpdateAll applies update to every document matching selector.
func (c *ModernColl) UpdateAll(selector, update interface{}) (*ChangeInfo, error) {
	filter, err := toDoc(selector)
	if err != nil {
		return nil, err
	}
	upd, err := toDoc(wrapInSetOperator(update))
	if err != nil {
		return nil, err
	}
	res, err := c.coll.ApplyUpdate(UpdateSpec{Filter: filter, Update: upd, Multi: true})
	if err != nil {
		return nil, err
	}
	return &ChangeInfo{Updated: int(res.Modified), Matched: int(res.Matched)}, nil
}

// Upsert updates the first matching document or inserts one if none match.
func (c *ModernColl) Upsert(selector, update interface{}) (*ChangeInfo, error) {
	filter, err := toDoc(selector)
	if err != nil {
		return nil, err
	}
	upd, err := toDoc(wrapInSetOperator(update))
	if err != nil {
		return nil, err
	}
	res, err := c.coll.ApplyUpdate(UpdateSpec{Filter: filter, Update: upd, Upsert: true})
	if err != nil {
		return nil, err
	}
	return &ChangeInfo{Updated: int(res.Modified), Matched: int(res.Matched), UpsertedId: res.UpsertedID}, nil
}

// EnsureIndex creates an index (mgo API compatible).
func (c *ModernColl) EnsureIndex(idx Index) error {
	spec := toIndexSpec(idx)
	_, err := c.coll.CreateIndex(spec)
	return err
}

// EnsureIndexKey ensures a plain ascending/descending index on key exists.
func (c *ModernColl) EnsureIndexKey(key ...string) error {
	return c.EnsureIndex(Index{Key: key})
}

// Indexes lists every index defined on the collection.
func (c *ModernColl) Indexes() ([]Index, error) {
	specs := c.coll.ListIndexes()
	out := make([]Index, len(specs))
	for i, s := range specs {
		out[i] = fromIndexSpec(s)
	}
	return out, nil
}

// DropIndex drops the named index.
func (c *ModernColl) DropIndex(name string) error {
	return c.coll.DropIndex(name)
}

// DropCollection drops every document and index in the collection.
func (c *ModernColl) DropCollection() error {
	c.db.db.DropCollection(c.coll.Name())
	return nil
}

// Pipe creates an aggregation pipeline (mgo API compatible).
func (c *ModernColl) Pipe(pipeline interface{}) *ModernPipe {
	return &ModernPipe{collection: c, pipeline: pipeline}
}

// Bulk returns an ordered bulk operation builder (mgo API compatible).
func (c *ModernColl) Bulk() *ModernBulk {
	return &ModernBulk{collection: c, bulk: c.coll.NewBulk()}
}

// Run executes a raw command against the collection's database.
func (c *ModernColl) Run(cmd, result interface{}) error {
	return c.db.Run(cmd, result)
}

// toIndexSpec translates the legacy Key-string convention ("field",
// "-field", "field:2d", "field:2dsphere") into index.Spec's ordered key
// document.
func toIndexSpec(idx Index) index.Spec {
	spec := index.Spec{Name: idx.Name, Unique: idx.Unique, Sparse: idx.Sparse}
	for _, k := range idx.Key {
		field, dir := k, interface{}(int32(1))
		switch {
		case strings.HasPrefix(field, "-"):
			field, dir = field[1:], int32(-1)
		case strings.HasSuffix(field, ":2dsphere"):
			field, dir = strings.TrimSuffix(field, ":2dsphere"), "2dsphere"
		case strings.HasSuffix(field, ":2d"):
			field, dir = strings.TrimSuffix(field, ":2d"), "2d"
		}
		spec.Keys = append(spec.Keys, primitive.E{Key: field, Value: dir})
	}
	if spec.Name == "" {
		spec.Name = index.DefaultName(spec.Keys)
	}
	return spec
}

func fromIndexSpec(s index.Spec) Index {
	idx := Index{Name: s.Name, Unique: s.Unique, Sparse: s.Sparse}
	for _, e := range s.Keys {
		switch v := e.Value.(type) {
		case int32:
			if v < 0 {
				idx.Key = append(idx.Key, "-"+e.Key)
			} else {
				idx.Key = append(idx.Key, e.Key)
			}
		case string:
			idx.Key = append(idx.Key, e.Key+":"+v)
		}
	}
	return idx
}
