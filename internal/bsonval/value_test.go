package bsonval

import (
	"math"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCompareNumericCrossType(t *testing.T) {
	if Compare(int32(1), int64(1)) != 0 {
		t.Fatalf("int32(1) and int64(1) should compare equal")
	}
	if Compare(int32(1), float64(1.5)) >= 0 {
		t.Fatalf("1 should compare less than 1.5")
	}
}

func TestCompareTypeOrder(t *testing.T) {
	if Compare(nil, "a string") >= 0 {
		t.Fatalf("null should sort before strings")
	}
	if Compare("z", primitive.D{}) >= 0 {
		t.Fatalf("strings should sort before documents")
	}
	if Compare(primitive.MinKey{}, int32(-1000)) >= 0 {
		t.Fatalf("minKey should sort before every number")
	}
}

func TestCompareNaNSortsBelowEverything(t *testing.T) {
	nan := math.NaN()
	if Compare(nan, float64(-1e300)) >= 0 {
		t.Fatalf("NaN should sort below every other number")
	}
}

func TestEqualTreatsNaNAsNeverEqual(t *testing.T) {
	nan := math.NaN()
	if Equal(nan, nan) {
		t.Fatalf("NaN should never equal itself under Equal")
	}
}

func TestEqualNullishFamily(t *testing.T) {
	if !Equal(nil, Missing{}) {
		t.Fatalf("nil and Missing should compare equal")
	}
	if !Equal(Missing{}, primitive.Undefined{}) {
		t.Fatalf("Missing and Undefined should compare equal")
	}
}

func TestIsMissing(t *testing.T) {
	if !IsMissing(Missing{}) {
		t.Fatalf("expected IsMissing(Missing{}) to be true")
	}
	if IsMissing(nil) {
		t.Fatalf("nil is nullish but not Missing")
	}
}

func TestSortKeyPicksLeastAscending(t *testing.T) {
	arr := primitive.A{int32(5), int32(1), int32(3)}
	got := SortKey(arr, false)
	if got != int32(1) {
		t.Fatalf("expected least element 1, got %v", got)
	}
}

func TestSortKeyPicksGreatestDescending(t *testing.T) {
	arr := primitive.A{int32(5), int32(1), int32(3)}
	got := SortKey(arr, true)
	if got != int32(5) {
		t.Fatalf("expected greatest element 5, got %v", got)
	}
}

func TestSortKeyEmptyArraySortsBelowNull(t *testing.T) {
	key := SortKey(primitive.A{}, false)
	if Compare(key, nil) >= 0 {
		t.Fatalf("expected the empty array's sort key to rank below null")
	}
}

func TestCompareArraysLexicographic(t *testing.T) {
	a := primitive.A{int32(1), int32(2)}
	b := primitive.A{int32(1), int32(3)}
	if Compare(a, b) >= 0 {
		t.Fatalf("expected [1,2] < [1,3]")
	}
}

func TestCompareDocsFieldByField(t *testing.T) {
	a := primitive.D{{Key: "x", Value: int32(1)}}
	b := primitive.D{{Key: "x", Value: int32(2)}}
	if Compare(a, b) >= 0 {
		t.Fatalf("expected {x:1} < {x:2}")
	}
}
