package mangodb

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/index"
)

func seedWidgets(t *testing.T) *Collection {
	t.Helper()
	c := newCollection("widgets")
	docs := []primitive.D{
		{{Key: "_id", Value: int32(1)}, {Key: "name", Value: "a"}, {Key: "qty", Value: int32(10)}},
		{{Key: "_id", Value: int32(2)}, {Key: "name", Value: "b"}, {Key: "qty", Value: int32(20)}},
		{{Key: "_id", Value: int32(3)}, {Key: "name", Value: "c"}, {Key: "qty", Value: int32(30)}},
	}
	for _, d := range docs {
		if _, err := c.InsertOne(d); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
	return c
}

func drain(t *testing.T, cur *Cursor) []primitive.D {
	t.Helper()
	var out []primitive.D
	for cur.Next() {
		doc, ok := cur.Document()
		if !ok {
			break
		}
		out = append(out, doc)
	}
	return out
}

func TestFindFilterMatchesSubset(t *testing.T) {
	c := seedWidgets(t)
	cur, err := c.Find(primitive.D{{Key: "name", Value: "b"}}, FindOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs := drain(t, cur)
	if len(docs) != 1 {
		t.Fatalf("expected one match, got %d", len(docs))
	}
}

func TestFindSortSkipLimit(t *testing.T) {
	c := seedWidgets(t)
	cur, err := c.Find(primitive.D{}, FindOptions{
		Sort:  primitive.D{{Key: "qty", Value: int32(-1)}},
		Skip:  1,
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs := drain(t, cur)
	if len(docs) != 1 {
		t.Fatalf("expected exactly one document, got %d", len(docs))
	}
	if v := fieldPath(docs[0], "qty"); v != int32(20) {
		t.Fatalf("expected the second-highest qty 20, got %v", v)
	}
}

func TestFindSkipBeyondLengthReturnsEmpty(t *testing.T) {
	c := seedWidgets(t)
	cur, err := c.Find(primitive.D{}, FindOptions{Skip: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs := drain(t, cur); len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestFindSnapshotIgnoresLaterInserts(t *testing.T) {
	c := seedWidgets(t)
	cur, err := c.Find(primitive.D{}, FindOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.InsertOne(primitive.D{{Key: "_id", Value: int32(4)}, {Key: "name", Value: "d"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs := drain(t, cur)
	if len(docs) != 3 {
		t.Fatalf("expected the snapshot to exclude the post-creation insert, got %d", len(docs))
	}
}

func TestFindSnapshotReflectsLiveUpdates(t *testing.T) {
	c := seedWidgets(t)
	cur, err := c.Find(primitive.D{{Key: "_id", Value: int32(1)}}, FindOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.replaceDocLocked(int32(1), primitive.D{{Key: "_id", Value: int32(1)}, {Key: "name", Value: "updated"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs := drain(t, cur)
	if len(docs) != 1 || fieldPath(docs[0], "name") != "updated" {
		t.Fatalf("expected the cursor to read the live post-image, got %v", docs)
	}
}

func TestProjectInclusionKeepsIDAndNamedFields(t *testing.T) {
	doc := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "name", Value: "a"}, {Key: "qty", Value: int32(10)}}
	out := Project(doc, primitive.D{{Key: "name", Value: int32(1)}})
	if len(out) != 2 {
		t.Fatalf("expected _id plus name, got %v", out)
	}
}

func TestProjectExclusionDropsNamedFields(t *testing.T) {
	doc := primitive.D{{Key: "_id", Value: int32(1)}, {Key: "name", Value: "a"}, {Key: "qty", Value: int32(10)}}
	out := Project(doc, primitive.D{{Key: "qty", Value: int32(0)}})
	for _, e := range out {
		if e.Key == "qty" {
			t.Fatalf("expected qty to be excluded, got %v", out)
		}
	}
}

func TestFindUsesEqualityIndexForCandidates(t *testing.T) {
	c := seedWidgets(t)
	spec := index.Spec{Keys: primitive.D{{Key: "name", Value: int32(1)}}}
	if _, err := c.CreateIndex(spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cur, err := c.Find(primitive.D{{Key: "name", Value: "c"}}, FindOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs := drain(t, cur)
	if len(docs) != 1 || fieldPath(docs[0], "name") != "c" {
		t.Fatalf("expected exactly the name=c document, got %v", docs)
	}
}
