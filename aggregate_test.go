package mangodb

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAggregateMatchAndGroup(t *testing.T) {
	db := NewDatabase("aggtest")
	c := db.Collection("sales")
	c.InsertOne(primitive.D{{Key: "category", Value: "books"}, {Key: "amount", Value: int32(10)}})
	c.InsertOne(primitive.D{{Key: "category", Value: "books"}, {Key: "amount", Value: int32(5)}})
	c.InsertOne(primitive.D{{Key: "category", Value: "toys"}, {Key: "amount", Value: int32(7)}})

	pipeline := primitive.A{
		primitive.D{{Key: "$match", Value: primitive.D{{Key: "category", Value: "books"}}}},
		primitive.D{{Key: "$group", Value: primitive.D{
			{Key: "_id", Value: "$category"},
			{Key: "total", Value: primitive.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
	out, err := c.Aggregate(db, pipeline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected a single books group, got %d", len(out))
	}
	if fieldPath(out[0], "total") != int32(15) {
		t.Fatalf("expected total=15, got %v", fieldPath(out[0], "total"))
	}
}

func TestAggregateLookupResolvesForeignCollection(t *testing.T) {
	db := NewDatabase("aggtest2")
	orders := db.Collection("orders")
	orders.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "productId", Value: int32(100)}})

	products := db.Collection("products")
	products.InsertOne(primitive.D{{Key: "_id", Value: int32(100)}, {Key: "name", Value: "widget"}})

	pipeline := primitive.A{
		primitive.D{{Key: "$lookup", Value: primitive.D{
			{Key: "from", Value: "products"},
			{Key: "localField", Value: "productId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "product"},
		}}},
	}
	out, err := orders.Aggregate(db, pipeline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr, _ := fieldPath(out[0], "product").(primitive.A)
	if len(arr) != 1 {
		t.Fatalf("expected one joined product, got %v", out[0])
	}
}

func TestAggregateEmptyResultIsNotAnError(t *testing.T) {
	db := NewDatabase("aggtest3")
	c := db.Collection("sales")
	pipeline := primitive.A{
		primitive.D{{Key: "$match", Value: primitive.D{{Key: "missing", Value: "nope"}}}},
	}
	out, err := c.Aggregate(db, pipeline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no results, got %d", len(out))
	}
}
