// modern_bulk.go - bulk write builder for the legacy API facade.
package mangodb

import "go.mongodb.org/mongo-driver/bson/primitive"

// Unordered puts the bulk operation in unordered mode (mgo API compatible).
func (b *ModernBulk) Unordered() {
	b.bulk.Unordered()
}

// Insert queues documents for insertion (mgo API compatible).
func (b *ModernBulk) Insert(docs ...interface{}) {
	converted, err := toDocSlice(docs)
	if err != nil {
		return
	}
	b.bulk.Insert(converted...)
}

// Update queues selector/update pairs, each matching at most one document
// (mgo API compatible).
func (b *ModernBulk) Update(pairs ...interface{}) {
	for _, p := range bulkPairSeq(pairs, "Bulk.Update") {
		b.bulk.Update(p.filter, p.update)
	}
}

// UpdateAll queues selector/update pairs, each matching every document it
// selects (mgo API compatible).
func (b *ModernBulk) UpdateAll(pairs ...interface{}) {
	for _, p := range bulkPairSeq(pairs, "Bulk.UpdateAll") {
		b.bulk.UpdateAll(p.filter, p.update)
	}
}

// Upsert queues selector/update pairs that insert when nothing matches
// (mgo API compatible).
func (b *ModernBulk) Upsert(pairs ...interface{}) {
	for _, p := range bulkPairSeq(pairs, "Bulk.Upsert") {
		b.bulk.Upsert(p.filter, p.update)
	}
}

// Remove queues selectors, each removing at most one matching document
// (mgo API compatible).
func (b *ModernBulk) Remove(selectors ...interface{}) {
	for _, sel := range selectors {
		if filter, err := toDoc(sel); err == nil {
			b.bulk.Remove(filter)
		}
	}
}

// RemoveAll queues selectors, each removing every matching document (mgo API
// compatible).
func (b *ModernBulk) RemoveAll(selectors ...interface{}) {
	for _, sel := range selectors {
		if filter, err := toDoc(sel); err == nil {
			b.bulk.RemoveAll(filter)
		}
	}
}

// Run executes every queued operation (mgo API compatible).
func (b *ModernBulk) Run() (*BulkResult, error) {
	return b.bulk.Run()
}

type bulkPair struct {
	filter primitive.D
	update primitive.D
}

// bulkPairSeq decodes a flat selector/update/selector/update... argument
// list into (filter, update) pairs. Panics on an odd-length list, matching
// the legacy API's contract.
func bulkPairSeq(pairs []interface{}, caller string) []bulkPair {
	if len(pairs)%2 != 0 {
		panic(caller + " requires an even number of parameters")
	}
	out := make([]bulkPair, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		filter, err := toDoc(pairs[i])
		if err != nil {
			continue
		}
		update, err := toDoc(pairs[i+1])
		if err != nil {
			continue
		}
		out = append(out, bulkPair{filter: filter, update: update})
	}
	return out
}
