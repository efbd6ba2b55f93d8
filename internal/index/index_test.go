package index

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDefaultName(t *testing.T) {
	got := DefaultName(primitive.D{{Key: "email", Value: int32(1)}})
	if got != "email_1" {
		t.Fatalf("expected email_1, got %q", got)
	}
	got = DefaultName(primitive.D{{Key: "age", Value: int32(-1)}})
	if got != "age_-1" {
		t.Fatalf("expected age_-1, got %q", got)
	}
}

func TestInsertAndEqualityLookup(t *testing.T) {
	idx := New(Spec{Name: "email_1", Keys: primitive.D{{Key: "email", Value: int32(1)}}})
	doc := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "email", Value: "a@b.com"}}
	if err := idx.Insert(1, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids := idx.EqualityLookup("a@b.com")
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected to find id 1, got %v", ids)
	}
}

func TestUniqueIndexRejectsDuplicate(t *testing.T) {
	idx := New(Spec{Name: "email_1", Keys: primitive.D{{Key: "email", Value: int32(1)}}, Unique: true})
	doc1 := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "email", Value: "dup@x.com"}}
	doc2 := primitive.D{{Key: "_id", Value: int32(2)}, {Key: "email", Value: "dup@x.com"}}

	if err := idx.Insert(1, doc1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := idx.Insert(2, doc2); err == nil {
		t.Fatalf("expected a duplicate-key error")
	}
}

func TestSparseIndexSkipsMissingField(t *testing.T) {
	idx := New(Spec{Name: "nick_1", Keys: primitive.D{{Key: "nick", Value: int32(1)}}, Sparse: true})
	doc := primitive.D{{Key: "_id", Value: int32(1)}}
	if err := idx.Insert(1, doc); err != nil {
		t.Fatalf("sparse index should skip a document missing the key field: %v", err)
	}
}

func TestRemove(t *testing.T) {
	idx := New(Spec{Name: "age_1", Keys: primitive.D{{Key: "age", Value: int32(1)}}})
	doc := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "age", Value: int32(30)}}
	_ = idx.Insert(1, doc)
	idx.Remove(1, doc)
	if ids := idx.EqualityLookup(int32(30)); len(ids) != 0 {
		t.Fatalf("expected no remaining entries after Remove, got %v", ids)
	}
}

func TestDocumentValuedIDDoesNotPanic(t *testing.T) {
	idx := New(Spec{Keys: primitive.D{{Key: "age", Value: int32(1)}}})
	id := primitive.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: int32(2)}}
	doc := primitive.D{{Key: "_id", Value: id}, {Key: "age", Value: int32(30)}}

	if err := idx.Insert(id, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids := idx.EqualityLookup(int32(30)); len(ids) != 1 {
		t.Fatalf("expected the document-valued id to be found, got %v", ids)
	}
	idx.Remove(id, doc)
	if ids := idx.EqualityLookup(int32(30)); len(ids) != 0 {
		t.Fatalf("expected no remaining entries after Remove, got %v", ids)
	}
}

func TestManagerCreateAndDrop(t *testing.T) {
	m := NewManager()
	idx, err := m.Create(Spec{Keys: primitive.D{{Key: "email", Value: int32(1)}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Spec.Name != "email_1" {
		t.Fatalf("expected default name email_1, got %q", idx.Spec.Name)
	}

	if err := m.Drop("email_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Find("email_1") != nil {
		t.Fatalf("expected email_1 to be gone after Drop")
	}
}

func TestManagerCannotDropIdIndex(t *testing.T) {
	m := NewManager()
	if err := m.Drop("_id_"); err == nil {
		t.Fatalf("expected dropping _id_ to be rejected")
	}
}

func TestManagerListIncludesIdIndex(t *testing.T) {
	m := NewManager()
	specs := m.List()
	if len(specs) != 1 || specs[0].Name != "_id_" {
		t.Fatalf("expected a fresh manager to carry only _id_, got %+v", specs)
	}
}
