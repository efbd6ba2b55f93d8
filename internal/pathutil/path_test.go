package pathutil

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
)

func TestSplit(t *testing.T) {
	got := Split("a.b.c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestGetNestedField(t *testing.T) {
	doc := primitive.D{
		{Key: "a", Value: primitive.D{{Key: "b", Value: 7}}},
	}
	got := Get(doc, "a.b")
	if got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}
}

func TestGetMissing(t *testing.T) {
	doc := primitive.D{{Key: "a", Value: 1}}
	got := Get(doc, "missing.path")
	if !bsonval.IsMissing(got) {
		t.Fatalf("expected Missing, got %v", got)
	}
}

func TestGetArrayFanOut(t *testing.T) {
	doc := primitive.D{
		{Key: "items", Value: primitive.A{
			primitive.D{{Key: "sku", Value: "a"}},
			primitive.D{{Key: "sku", Value: "b"}},
		}},
	}
	got := Get(doc, "items.sku")
	arr, ok := got.(primitive.A)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected a 2-element array, got %v", got)
	}
}

func TestCandidatesFlattensAcrossArray(t *testing.T) {
	doc := primitive.D{
		{Key: "items", Value: primitive.A{
			primitive.D{{Key: "qty", Value: 1}},
			primitive.D{{Key: "qty", Value: 2}},
		}},
	}
	got := Candidates(doc, "items.qty")
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(got), got)
	}
}

func TestExists(t *testing.T) {
	doc := primitive.D{{Key: "a", Value: nil}}
	if !Exists(doc, "a") {
		t.Fatalf("expected Exists to be true for an explicit null field")
	}
	if Exists(doc, "b") {
		t.Fatalf("expected Exists to be false for an absent field")
	}
}

func TestSetCreatesIntermediateDocuments(t *testing.T) {
	out, err := Set(primitive.D{}, "a.b.c", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Get(out, "a.b.c"); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestSetOverwritesExisting(t *testing.T) {
	doc := primitive.D{{Key: "x", Value: 1}}
	out, err := Set(doc, "x", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Get(out, "x"); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}

func TestSetArrayIndexPadsWithNull(t *testing.T) {
	out, err := Set(primitive.D{}, "arr.2", "z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arr, ok := Get(out, "arr").(primitive.A)
	if !ok || len(arr) != 3 {
		t.Fatalf("expected a 3-element array, got %v", Get(out, "arr"))
	}
	if arr[2] != "z" {
		t.Fatalf("expected index 2 to be z, got %v", arr[2])
	}
	if arr[0] != nil || arr[1] != nil {
		t.Fatalf("expected padding slots to be nil, got %v", arr)
	}
}

func TestUnsetRemovesField(t *testing.T) {
	doc := primitive.D{{Key: "a", Value: 1}, {Key: "b", Value: 2}}
	out := Unset(doc, "a")
	if Exists(out, "a") {
		t.Fatalf("expected a to be removed")
	}
	if got := Get(out, "b"); got != 2 {
		t.Fatalf("expected b to survive, got %v", got)
	}
}

func TestUnsetAbsentFieldIsNoop(t *testing.T) {
	doc := primitive.D{{Key: "a", Value: 1}}
	out := Unset(doc, "missing")
	if len(out) != 1 {
		t.Fatalf("expected no change, got %v", out)
	}
}
