package match

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func compile(t *testing.T, query primitive.D) *Matcher {
	t.Helper()
	m, err := Compile(query)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return m
}

func TestMatchEquality(t *testing.T) {
	m := compile(t, primitive.D{{Key: "name", Value: "alice"}})
	if !m.Matches(primitive.D{{Key: "name", Value: "alice"}}) {
		t.Fatalf("expected a literal equality match")
	}
	if m.Matches(primitive.D{{Key: "name", Value: "bob"}}) {
		t.Fatalf("expected no match for a different value")
	}
}

func TestMatchComparisonOperators(t *testing.T) {
	m := compile(t, primitive.D{{Key: "age", Value: primitive.D{{Key: "$gte", Value: int32(18)}}}})
	if !m.Matches(primitive.D{{Key: "age", Value: int32(21)}}) {
		t.Fatalf("21 should match $gte 18")
	}
	if m.Matches(primitive.D{{Key: "age", Value: int32(10)}}) {
		t.Fatalf("10 should not match $gte 18")
	}
}

func TestMatchInOperator(t *testing.T) {
	m := compile(t, primitive.D{{Key: "status", Value: primitive.D{
		{Key: "$in", Value: primitive.A{"pending", "shipped"}},
	}}})
	if !m.Matches(primitive.D{{Key: "status", Value: "shipped"}}) {
		t.Fatalf("expected shipped to match $in")
	}
	if m.Matches(primitive.D{{Key: "status", Value: "cancelled"}}) {
		t.Fatalf("expected cancelled to not match $in")
	}
}

func TestMatchAndOr(t *testing.T) {
	m := compile(t, primitive.D{{Key: "$and", Value: primitive.A{
		primitive.D{{Key: "a", Value: int32(1)}},
		primitive.D{{Key: "b", Value: int32(2)}},
	}}})
	if !m.Matches(primitive.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: int32(2)}}) {
		t.Fatalf("expected both clauses to match")
	}
	if m.Matches(primitive.D{{Key: "a", Value: int32(1)}}) {
		t.Fatalf("expected $and to require both clauses")
	}

	orM := compile(t, primitive.D{{Key: "$or", Value: primitive.A{
		primitive.D{{Key: "a", Value: int32(1)}},
		primitive.D{{Key: "a", Value: int32(2)}},
	}}})
	if !orM.Matches(primitive.D{{Key: "a", Value: int32(2)}}) {
		t.Fatalf("expected $or to match either clause")
	}
}

func TestMatchExists(t *testing.T) {
	m := compile(t, primitive.D{{Key: "nick", Value: primitive.D{{Key: "$exists", Value: true}}}})
	if !m.Matches(primitive.D{{Key: "nick", Value: "al"}}) {
		t.Fatalf("expected $exists:true to match a present field")
	}
	if m.Matches(primitive.D{{Key: "name", Value: "al"}}) {
		t.Fatalf("expected $exists:true to reject an absent field")
	}
}

func TestMatchArrayFieldFanOut(t *testing.T) {
	m := compile(t, primitive.D{{Key: "tags", Value: "red"}})
	if !m.Matches(primitive.D{{Key: "tags", Value: primitive.A{"blue", "red"}}}) {
		t.Fatalf("expected an equality clause to match any array element")
	}
}

func TestMatchElemMatch(t *testing.T) {
	m := compile(t, primitive.D{{Key: "scores", Value: primitive.D{
		{Key: "$elemMatch", Value: primitive.D{{Key: "$gt", Value: int32(90)}}},
	}}})
	if !m.Matches(primitive.D{{Key: "scores", Value: primitive.A{int32(50), int32(95)}}}) {
		t.Fatalf("expected $elemMatch to find the qualifying element")
	}
	if m.Matches(primitive.D{{Key: "scores", Value: primitive.A{int32(50), int32(60)}}}) {
		t.Fatalf("expected $elemMatch to reject when no element qualifies")
	}
}

func TestMatchNestedPath(t *testing.T) {
	m := compile(t, primitive.D{{Key: "address.city", Value: "nyc"}})
	doc := primitive.D{{Key: "address", Value: primitive.D{{Key: "city", Value: "nyc"}}}}
	if !m.Matches(doc) {
		t.Fatalf("expected a dotted-path match against a nested document")
	}
}
