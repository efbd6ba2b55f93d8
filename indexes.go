package mangodb

import (
	"github.com/JKershaw/mangodb/internal/index"
)

// CreateIndex registers a new secondary index (spec.md §3 "Index").
func (c *Collection) CreateIndex(spec index.Spec) (index.Spec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.indexes.Create(spec)
	if err != nil {
		return index.Spec{}, err
	}
	for _, r := range c.order {
		if err := idx.Insert(r.id, r.doc); err != nil {
			return index.Spec{}, err
		}
	}
	return idx.Spec, nil
}

// DropIndex removes the named index; dropping "_id_" is rejected.
func (c *Collection) DropIndex(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexes.Drop(name)
}

// ListIndexes returns every index's Spec, in creation order.
func (c *Collection) ListIndexes() []index.Spec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes.List()
}
