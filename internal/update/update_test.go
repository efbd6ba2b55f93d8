package update

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestApplySet(t *testing.T) {
	doc := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "age", Value: int32(20)}}
	res, err := Apply(doc, primitive.D{{Key: "$set", Value: primitive.D{{Key: "age", Value: int32(21)}}}}, Options{MatchedIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Modified {
		t.Fatalf("expected $set to modify the document")
	}
	for _, e := range res.Doc {
		if e.Key == "age" && e.Value != int32(21) {
			t.Fatalf("expected age 21, got %v", e.Value)
		}
	}
}

func TestApplyInc(t *testing.T) {
	doc := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "count", Value: int32(5)}}
	res, err := Apply(doc, primitive.D{{Key: "$inc", Value: primitive.D{{Key: "count", Value: int32(3)}}}}, Options{MatchedIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range res.Doc {
		if e.Key == "count" && e.Value != int32(8) {
			t.Fatalf("expected count 8, got %v", e.Value)
		}
	}
}

func TestApplyUnset(t *testing.T) {
	doc := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "temp", Value: "x"}}
	res, err := Apply(doc, primitive.D{{Key: "$unset", Value: primitive.D{{Key: "temp", Value: ""}}}}, Options{MatchedIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range res.Doc {
		if e.Key == "temp" {
			t.Fatalf("expected temp to be removed")
		}
	}
}

func TestApplyReplacementPreservesId(t *testing.T) {
	doc := primitive.D{{Key: "_id", Value: int32(7)}, {Key: "a", Value: 1}}
	res, err := Apply(doc, primitive.D{{Key: "a", Value: 2}}, Options{MatchedIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Doc[0].Key != "_id" || res.Doc[0].Value != int32(7) {
		t.Fatalf("expected _id to be preserved, got %v", res.Doc)
	}
}

func TestApplyMixedOperatorReplacementRejected(t *testing.T) {
	doc := primitive.D{{Key: "_id", Value: int32(1)}}
	_, err := Apply(doc, primitive.D{{Key: "$set", Value: primitive.D{{Key: "a", Value: 1}}}, {Key: "b", Value: 2}}, Options{MatchedIndex: -1})
	if err == nil {
		t.Fatalf("expected an error mixing operator and replacement fields")
	}
}

func TestApplyPush(t *testing.T) {
	doc := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "tags", Value: primitive.A{"a"}}}
	res, err := Apply(doc, primitive.D{{Key: "$push", Value: primitive.D{{Key: "tags", Value: "b"}}}}, Options{MatchedIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range res.Doc {
		if e.Key == "tags" {
			arr := e.Value.(primitive.A)
			if len(arr) != 2 || arr[1] != "b" {
				t.Fatalf("expected tags to grow to [a b], got %v", arr)
			}
		}
	}
}

func TestApplyNoopReportsNotModified(t *testing.T) {
	doc := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "x", Value: int32(5)}}
	res, err := Apply(doc, primitive.D{{Key: "$set", Value: primitive.D{{Key: "x", Value: int32(5)}}}}, Options{MatchedIndex: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Modified {
		t.Fatalf("expected setting a field to its current value to be a no-op")
	}
}
