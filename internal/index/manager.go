package index

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/dberr"
)

// Manager owns every secondary index declared on one collection, including
// the always-present unique index on _id.
type Manager struct {
	indexes []*Index
}

// NewManager builds a Manager seeded with the mandatory unique _id index
// (spec.md §4 collection invariant (c)).
func NewManager() *Manager {
	m := &Manager{}
	m.indexes = append(m.indexes, New(Spec{
		Name:   "_id_",
		Keys:   primitive.D{{Key: "_id", Value: int32(1)}},
		Unique: true,
	}))
	return m
}

// Create registers a new index, deriving its default name when Name is
// empty. When an index with that name already exists it is returned
// unchanged with a nil error; its keys and options are not compared.
func (m *Manager) Create(spec Spec) (*Index, error) {
	if spec.Name == "" {
		spec.Name = DefaultName(spec.Keys)
	}
	for _, existing := range m.indexes {
		if existing.Spec.Name == spec.Name {
			return existing, nil
		}
	}
	idx := New(spec)
	m.indexes = append(m.indexes, idx)
	return idx, nil
}

// Drop removes the named index. Dropping "_id_" is rejected.
func (m *Manager) Drop(name string) error {
	if name == "_id_" {
		return dberr.New(72, "cannot drop _id index")
	}
	for i, idx := range m.indexes {
		if idx.Spec.Name == name {
			m.indexes = append(m.indexes[:i], m.indexes[i+1:]...)
			return nil
		}
	}
	return dberr.New(dberr.CodeIndexNotFound, "index not found with name %q", name)
}

// List returns every index's Spec, in creation order.
func (m *Manager) List() []Spec {
	out := make([]Spec, len(m.indexes))
	for i, idx := range m.indexes {
		out[i] = idx.Spec
	}
	return out
}

// Find returns the named index, or nil.
func (m *Manager) Find(name string) *Index {
	for _, idx := range m.indexes {
		if idx.Spec.Name == name {
			return idx
		}
	}
	return nil
}

// All returns every index, for maintenance fan-out.
func (m *Manager) All() []*Index {
	return m.indexes
}

// ForField returns the first non-geo index whose leading key is field,
// implementing the "rule-based candidate selection" of spec.md §4.6: exact
// leading-field match wins, no cost model involved.
func (m *Manager) ForField(field string) *Index {
	for _, idx := range m.indexes {
		if idx.geo != nil {
			continue
		}
		if len(idx.Spec.Keys) > 0 && idx.Spec.Keys[0].Key == field {
			return idx
		}
	}
	return nil
}

// ForGeoField returns the geo index covering field, or an error code 291
// ("NoQueryExecutionPlans" — spec.md §7) if none exists.
func (m *Manager) ForGeoField(field string) (*Index, error) {
	for _, idx := range m.indexes {
		if idx.geo != nil && idx.geo.field == field {
			return idx, nil
		}
	}
	return nil, dberr.New(dberr.CodeNoQueryExecutionPlans, "unable to find index for geo query on field %q", field)
}

// Insert maintains every index for a newly inserted document, rolling back
// partial inserts if a uniqueness violation occurs partway through.
func (m *Manager) Insert(id interface{}, doc primitive.D) error {
	for i, idx := range m.indexes {
		if err := idx.Insert(id, doc); err != nil {
			for j := 0; j < i; j++ {
				m.indexes[j].Remove(id, doc)
			}
			return err
		}
	}
	return nil
}

// Remove maintains every index after a document deletion.
func (m *Manager) Remove(id interface{}, doc primitive.D) {
	for _, idx := range m.indexes {
		idx.Remove(id, doc)
	}
}

// Replace maintains every index after a document's contents change in
// place, rolling back on a uniqueness violation.
func (m *Manager) Replace(id interface{}, oldDoc, newDoc primitive.D) error {
	applied := 0
	for _, idx := range m.indexes {
		if err := idx.Replace(id, oldDoc, newDoc); err != nil {
			for j := 0; j < applied; j++ {
				m.indexes[j].Replace(id, newDoc, oldDoc)
			}
			return err
		}
		applied++
	}
	return nil
}
