package bsonval

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCloneDeepCopiesNestedDocuments(t *testing.T) {
	orig := primitive.D{{Key: "a", Value: primitive.D{{Key: "b", Value: int32(1)}}}}
	cloned := Clone(orig).(primitive.D)

	nested := cloned[0].Value.(primitive.D)
	nested[0].Value = int32(99)

	origNested := orig[0].Value.(primitive.D)
	if origNested[0].Value != int32(1) {
		t.Fatalf("mutating the clone should not affect the original, got %v", origNested[0].Value)
	}
}

func TestCloneBinaryCopiesBytes(t *testing.T) {
	orig := primitive.Binary{Subtype: 0, Data: []byte{1, 2, 3}}
	cloned := Clone(orig).(primitive.Binary)
	cloned.Data[0] = 99
	if orig.Data[0] != 1 {
		t.Fatalf("expected binary data to be deep copied")
	}
}

func TestToDocFromMapSortsKeys(t *testing.T) {
	d := ToDoc(primitive.M{"b": 2, "a": 1})
	if d[0].Key != "a" || d[1].Key != "b" {
		t.Fatalf("expected sorted keys, got %v", d)
	}
}

func TestToDocPreservesOrderedInput(t *testing.T) {
	orig := primitive.D{{Key: "z", Value: 1}, {Key: "a", Value: 2}}
	d := ToDoc(orig)
	if d[0].Key != "z" {
		t.Fatalf("expected primitive.D order to be preserved, got %v", d)
	}
}

func TestToArrayAcceptsSliceInterface(t *testing.T) {
	arr, ok := ToArray([]interface{}{1, 2, 3})
	if !ok || len(arr) != 3 {
		t.Fatalf("expected a 3-element array, got %v, %v", arr, ok)
	}
}

func TestToArrayRejectsNonArray(t *testing.T) {
	_, ok := ToArray("not an array")
	if ok {
		t.Fatalf("expected ToArray to reject a scalar")
	}
}

func TestHashStableAcrossCalls(t *testing.T) {
	doc := primitive.D{{Key: "a", Value: 1}}
	if Hash(doc) != Hash(doc) {
		t.Fatalf("expected Hash to be deterministic for the same value")
	}
}
