package agg

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func noLookup(string) ([]primitive.D, error) { return nil, nil }

func TestMatchStage(t *testing.T) {
	p, err := Compile(primitive.A{
		primitive.D{{Key: "$match", Value: primitive.D{{Key: "category", Value: "books"}}}},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	docs := []primitive.D{
		{{Key: "category", Value: "books"}},
		{{Key: "category", Value: "toys"}},
	}
	out, err := p.Run(Env{Resolve: noLookup}, docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one document to match, got %d", len(out))
	}
}

func TestGroupStage(t *testing.T) {
	p, err := Compile(primitive.A{
		primitive.D{{Key: "$group", Value: primitive.D{
			{Key: "_id", Value: "$category"},
			{Key: "total", Value: primitive.D{{Key: "$sum", Value: int32(1)}}},
		}}},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	docs := []primitive.D{
		{{Key: "category", Value: "a"}},
		{{Key: "category", Value: "a"}},
		{{Key: "category", Value: "b"}},
	}
	out, err := p.Run(Env{Resolve: noLookup}, docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d: %v", len(out), out)
	}
}

func TestGroupCountAccumulator(t *testing.T) {
	p, err := Compile(primitive.A{
		primitive.D{{Key: "$group", Value: primitive.D{
			{Key: "_id", Value: "$category"},
			{Key: "n", Value: primitive.D{{Key: "$count", Value: primitive.D{}}}},
		}}},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	docs := []primitive.D{
		{{Key: "category", Value: "a"}},
		{{Key: "category", Value: "a"}},
		{{Key: "category", Value: "a"}},
	}
	out, err := p.Run(Env{Resolve: noLookup}, docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected a single group, got %d", len(out))
	}
	for _, e := range out[0] {
		if e.Key == "n" && e.Value != int32(3) {
			t.Fatalf("expected n=3, got %v", e.Value)
		}
	}
}

func TestSortLimitSkipStages(t *testing.T) {
	p, err := Compile(primitive.A{
		primitive.D{{Key: "$sort", Value: primitive.D{{Key: "n", Value: int32(-1)}}}},
		primitive.D{{Key: "$skip", Value: int32(1)}},
		primitive.D{{Key: "$limit", Value: int32(1)}},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	docs := []primitive.D{
		{{Key: "n", Value: int32(1)}},
		{{Key: "n", Value: int32(3)}},
		{{Key: "n", Value: int32(2)}},
	}
	out, err := p.Run(Env{Resolve: noLookup}, docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one document, got %d", len(out))
	}
	for _, e := range out[0] {
		if e.Key == "n" && e.Value != int32(2) {
			t.Fatalf("expected the second-highest value 2, got %v", e.Value)
		}
	}
}

func TestProjectStage(t *testing.T) {
	p, err := Compile(primitive.A{
		primitive.D{{Key: "$project", Value: primitive.D{{Key: "n", Value: int32(1)}}}},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	docs := []primitive.D{
		{{Key: "_id", Value: int32(1)}, {Key: "n", Value: int32(5)}, {Key: "extra", Value: "x"}},
	}
	out, err := p.Run(Env{Resolve: noLookup}, docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, e := range out[0] {
		if e.Key == "extra" {
			t.Fatalf("expected extra to be excluded from the projection")
		}
	}
}

func TestUnwindStage(t *testing.T) {
	p, err := Compile(primitive.A{
		primitive.D{{Key: "$unwind", Value: "$tags"}},
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	docs := []primitive.D{
		{{Key: "_id", Value: int32(1)}, {Key: "tags", Value: primitive.A{"a", "b"}}},
	}
	out, err := p.Run(Env{Resolve: noLookup}, docs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected unwind to produce 2 documents, got %d", len(out))
	}
}

func TestInvalidStageRejected(t *testing.T) {
	_, err := Compile(primitive.A{"not a document"})
	if err == nil {
		t.Fatalf("expected an error for a malformed pipeline stage")
	}
}
