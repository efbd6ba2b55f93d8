// modern_aggregation.go - aggregation pipeline operations for the legacy API
// facade. AllowDiskUse/Batch/SetMaxTime/Collation have no referent for a
// synchronous in-process engine with no disk spill, network batching, or
// collation support, and are not carried over (see DESIGN.md).
package mangodb

// Iter executes the aggregation pipeline and returns an iterator over its
// result documents.
func (p *ModernPipe) Iter() *ModernIt {
	docs, err := p.collection.coll.Aggregate(p.collection.db.db, p.pipeline)
	if err != nil {
		return &ModernIt{err: err}
	}
	return &ModernIt{src: &sliceSource{docs: docs}}
}

// All executes the pipeline and decodes every result into result.
func (p *ModernPipe) All(result interface{}) error {
	it := p.Iter()
	defer it.Close()
	return it.All(result)
}

// One executes the pipeline and decodes its first result into result.
func (p *ModernPipe) One(result interface{}) error {
	it := p.Iter()
	defer it.Close()
	if it.Next(result) {
		return nil
	}
	if it.err != nil {
		return it.err
	}
	return ErrNotFound
}
