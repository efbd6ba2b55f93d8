// modern_query.go - query builder operations for the legacy API facade.
package mangodb

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// One finds the first document matching the query (mgo API compatible).
func (q *ModernQ) One(result interface{}) error {
	cur, err := q.coll.coll.Find(q.filter, FindOptions{
		Projection: q.projection,
		Sort:       q.sort,
		Skip:       q.skip,
		Limit:      1,
	})
	if err != nil {
		return err
	}
	doc, ok := cur.Document()
	if !ok {
		return ErrNotFound
	}
	if result == nil {
		return nil
	}
	return decodeInto(doc, result)
}

// All drains every matching document into result, which must be a pointer
// to a slice (mgo API compatible).
func (q *ModernQ) All(result interface{}) error {
	it := q.Iter()
	defer it.Close()
	return it.All(result)
}

// Count counts documents matching the query's filter.
func (q *ModernQ) Count() (int, error) {
	n, err := q.coll.coll.Count(q.filter)
	return int(n), err
}

// Iter returns a lazily-decoding iterator over the query's matches.
func (q *ModernQ) Iter() *ModernIt {
	cur, err := q.coll.coll.Find(q.filter, FindOptions{
		Projection: q.projection,
		Sort:       q.sort,
		Skip:       q.skip,
		Limit:      q.limit,
	})
	if err != nil {
		return &ModernIt{err: err}
	}
	return &ModernIt{src: &cursorSource{cur: cur}}
}

// Sort sets the sort order; a "-" prefix means descending.
func (q *ModernQ) Sort(fields ...string) *ModernQ {
	var sort primitive.D
	for _, field := range fields {
		order := int32(1)
		if strings.HasPrefix(field, "-") {
			order, field = -1, field[1:]
		}
		sort = append(sort, primitive.E{Key: field, Value: order})
	}
	q.sort = sort
	return q
}

// Limit sets the maximum number of documents the query returns.
func (q *ModernQ) Limit(n int) *ModernQ {
	q.limit = int64(n)
	return q
}

// Skip sets the number of leading matches to discard.
func (q *ModernQ) Skip(n int) *ModernQ {
	q.skip = int64(n)
	return q
}

// Select sets the result projection (mgo API compatible).
func (q *ModernQ) Select(selector interface{}) *ModernQ {
	if d, err := toDoc(selector); err == nil {
		q.projection = d
	}
	return q
}

// Apply runs a findAndModify-style change against the query's first match
// (mgo API compatible).
func (q *ModernQ) Apply(change Change, result interface{}) (*ChangeInfo, error) {
	opts := FindAndModifyOptions{
		Filter:      q.filter,
		Sort:        q.sort,
		Remove:      change.Remove,
		ReturnAfter: change.ReturnNew,
		Upsert:      change.Upsert,
	}
	if !change.Remove {
		upd, err := toDoc(wrapInSetOperator(change.Update))
		if err != nil {
			return nil, err
		}
		opts.Update = upd
	}

	before, err := q.coll.coll.Count(q.filter)
	if err != nil {
		return nil, err
	}

	doc, err := q.coll.coll.FindAndModify(opts)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return &ChangeInfo{}, ErrNotFound
	}
	if result != nil {
		if err := decodeInto(doc, result); err != nil {
			return nil, err
		}
	}

	info := &ChangeInfo{}
	if change.Remove {
		info.Removed = 1
		return info, nil
	}
	if before == 0 && change.Upsert {
		info.UpsertedId = fieldValueOf(doc, "_id")
		return info, nil
	}
	info.Updated = 1
	info.Matched = 1
	return info, nil
}

func fieldValueOf(doc primitive.D, key string) interface{} {
	for _, e := range doc {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}
