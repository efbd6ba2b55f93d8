package mangodb

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestInsertDocLockedAllocatesID(t *testing.T) {
	c := newCollection("widgets")
	id, err := c.InsertOne(primitive.D{{Key: "name", Value: "gear"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := id.(primitive.ObjectID); !ok {
		t.Fatalf("expected an allocated ObjectID, got %T", id)
	}
}

func TestInsertDocLockedKeepsGivenID(t *testing.T) {
	c := newCollection("widgets")
	id, err := c.InsertOne(primitive.D{{Key: "_id", Value: int32(7)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != int32(7) {
		t.Fatalf("expected the given _id to be kept, got %v", id)
	}
}

func TestInsertDocLockedRejectsDuplicateID(t *testing.T) {
	c := newCollection("widgets")
	if _, err := c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}}); err == nil {
		t.Fatalf("expected a duplicate key error on the second insert")
	}
}

func TestInsertDocLockedRejectsArrayID(t *testing.T) {
	c := newCollection("widgets")
	if _, err := c.InsertOne(primitive.D{{Key: "_id", Value: primitive.A{1, 2}}}); err == nil {
		t.Fatalf("expected an error for an array _id")
	}
}

func TestInsertManyOrderedStopsAtFirstFailure(t *testing.T) {
	c := newCollection("widgets")
	docs := []primitive.D{
		{{Key: "_id", Value: int32(1)}},
		{{Key: "_id", Value: int32(1)}}, // duplicate
		{{Key: "_id", Value: int32(2)}},
	}
	n, errs := c.InsertMany(docs, true)
	if n != 1 {
		t.Fatalf("expected 1 successful insert before the failure, got %d", n)
	}
	if len(errs) != 1 || errs[0].Index != 1 {
		t.Fatalf("expected one write error at index 1, got %+v", errs)
	}
}

func TestInsertManyUnorderedCollectsAllFailures(t *testing.T) {
	c := newCollection("widgets")
	docs := []primitive.D{
		{{Key: "_id", Value: int32(1)}},
		{{Key: "_id", Value: int32(1)}}, // duplicate
		{{Key: "_id", Value: int32(2)}},
	}
	n, errs := c.InsertMany(docs, false)
	if n != 2 {
		t.Fatalf("expected 2 successful inserts, got %d", n)
	}
	if len(errs) != 1 || errs[0].Index != 1 {
		t.Fatalf("expected one write error at index 1, got %+v", errs)
	}
}

func TestAllDocumentsReturnsInsertionOrder(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}})
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(2)}})
	docs := c.AllDocuments()
	if len(docs) != 2 || docs[0][0].Value != int32(1) || docs[1][0].Value != int32(2) {
		t.Fatalf("expected documents in insertion order, got %v", docs)
	}
}

func TestDescribeIDFormatsKnownTypes(t *testing.T) {
	if got := describeID("abc"); got != `{ _id: "abc" }` {
		t.Fatalf("unexpected string formatting: %q", got)
	}
	oid := primitive.NewObjectID()
	if got := describeID(oid); got != `{ _id: ObjectId("`+oid.Hex()+`") }` {
		t.Fatalf("unexpected ObjectID formatting: %q", got)
	}
}
