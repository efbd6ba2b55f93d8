package mangodb

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/index"
)

func TestCreateIndexBackfillsExistingDocuments(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "sku", Value: "a"}})
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(2)}, {Key: "sku", Value: "b"}})

	spec, err := c.CreateIndex(index.Spec{Keys: primitive.D{{Key: "sku", Value: int32(1)}}, Unique: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Name != "sku_1" {
		t.Fatalf("expected default name sku_1, got %q", spec.Name)
	}

	if _, err := c.InsertOne(primitive.D{{Key: "_id", Value: int32(3)}, {Key: "sku", Value: "a"}}); err == nil {
		t.Fatalf("expected the backfilled unique index to reject a duplicate sku")
	}
}

func TestCreateIndexRejectsBackfillViolation(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "sku", Value: "dup"}})
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(2)}, {Key: "sku", Value: "dup"}})

	if _, err := c.CreateIndex(index.Spec{Keys: primitive.D{{Key: "sku", Value: int32(1)}}, Unique: true}); err == nil {
		t.Fatalf("expected creating a unique index over pre-existing duplicates to fail")
	}
}

func TestDropIndexRemovesItFromListing(t *testing.T) {
	c := newCollection("widgets")
	spec, err := c.CreateIndex(index.Spec{Keys: primitive.D{{Key: "sku", Value: int32(1)}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.DropIndex(spec.Name); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range c.ListIndexes() {
		if s.Name == spec.Name {
			t.Fatalf("expected %q to be gone after DropIndex", spec.Name)
		}
	}
}

func TestListIndexesIncludesIdByDefault(t *testing.T) {
	c := newCollection("widgets")
	specs := c.ListIndexes()
	if len(specs) != 1 || specs[0].Name != "_id_" {
		t.Fatalf("expected a fresh collection to carry only _id_, got %+v", specs)
	}
}
