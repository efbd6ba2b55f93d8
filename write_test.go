package mangodb

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestApplyUpdateMatchedAndModifiedCounts(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "qty", Value: int32(1)}})
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(2)}, {Key: "qty", Value: int32(1)}})

	res, err := c.ApplyUpdate(UpdateSpec{
		Filter: primitive.D{{Key: "qty", Value: int32(1)}},
		Update: primitive.D{{Key: "$set", Value: primitive.D{{Key: "qty", Value: int32(2)}}}},
		Multi:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Matched != 2 || res.Modified != 2 {
		t.Fatalf("expected matched=2 modified=2, got %+v", res)
	}
}

func TestApplyUpdateSingleStopsAtFirstMatch(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "qty", Value: int32(1)}})
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(2)}, {Key: "qty", Value: int32(1)}})

	res, err := c.ApplyUpdate(UpdateSpec{
		Filter: primitive.D{{Key: "qty", Value: int32(1)}},
		Update: primitive.D{{Key: "$set", Value: primitive.D{{Key: "qty", Value: int32(9)}}}},
		Multi:  false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Matched != 1 || res.Modified != 1 {
		t.Fatalf("expected matched=1 modified=1, got %+v", res)
	}
}

func TestApplyUpdateNoMatchNoUpsertIsNotAnError(t *testing.T) {
	c := newCollection("widgets")
	res, err := c.ApplyUpdate(UpdateSpec{
		Filter: primitive.D{{Key: "missing", Value: "nope"}},
		Update: primitive.D{{Key: "$set", Value: primitive.D{{Key: "x", Value: 1}}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Matched != 0 || res.UpsertedID != nil {
		t.Fatalf("expected a clean no-op result, got %+v", res)
	}
}

func TestApplyUpdateUpsertInsertsSeedFromFilter(t *testing.T) {
	c := newCollection("widgets")
	res, err := c.ApplyUpdate(UpdateSpec{
		Filter: primitive.D{{Key: "sku", Value: "abc"}},
		Update: primitive.D{{Key: "$set", Value: primitive.D{{Key: "qty", Value: int32(5)}}}},
		Upsert: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.UpsertedID == nil {
		t.Fatalf("expected an upserted id")
	}
	r := c.findRecordLocked(res.UpsertedID)
	if r == nil {
		t.Fatalf("expected the upserted document to be stored")
	}
	if fieldPath(r.doc, "sku") != "abc" || fieldPath(r.doc, "qty") != int32(5) {
		t.Fatalf("expected the filter's equality fragment plus the update applied, got %v", r.doc)
	}
}

func TestApplyDeleteLimitOne(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "tag", Value: "x"}})
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(2)}, {Key: "tag", Value: "x"}})

	n, err := c.ApplyDelete(DeleteSpec{Filter: primitive.D{{Key: "tag", Value: "x"}}, Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one deletion, got %d", n)
	}
	if len(c.AllDocuments()) != 1 {
		t.Fatalf("expected one surviving document")
	}
}

func TestApplyDeleteAll(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "tag", Value: "x"}})
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(2)}, {Key: "tag", Value: "x"}})

	n, err := c.ApplyDelete(DeleteSpec{Filter: primitive.D{{Key: "tag", Value: "x"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected both documents removed, got %d", n)
	}
}

func TestFindAndModifyReturnsPreImageByDefault(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "qty", Value: int32(1)}})

	doc, err := c.FindAndModify(FindAndModifyOptions{
		Filter: primitive.D{{Key: "_id", Value: int32(1)}},
		Update: primitive.D{{Key: "$set", Value: primitive.D{{Key: "qty", Value: int32(9)}}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fieldPath(doc, "qty") != int32(1) {
		t.Fatalf("expected the pre-image qty=1, got %v", doc)
	}
}

func TestFindAndModifyReturnsPostImageWhenRequested(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "qty", Value: int32(1)}})

	doc, err := c.FindAndModify(FindAndModifyOptions{
		Filter:      primitive.D{{Key: "_id", Value: int32(1)}},
		Update:      primitive.D{{Key: "$set", Value: primitive.D{{Key: "qty", Value: int32(9)}}}},
		ReturnAfter: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fieldPath(doc, "qty") != int32(9) {
		t.Fatalf("expected the post-image qty=9, got %v", doc)
	}
}

func TestFindAndModifyRemove(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "qty", Value: int32(1)}})

	doc, err := c.FindAndModify(FindAndModifyOptions{
		Filter: primitive.D{{Key: "_id", Value: int32(1)}},
		Remove: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fieldPath(doc, "qty") != int32(1) {
		t.Fatalf("expected the removed document's content, got %v", doc)
	}
	if len(c.AllDocuments()) != 0 {
		t.Fatalf("expected the document to be gone")
	}
}

func TestFindAndModifyNoMatchNoUpsertReturnsNil(t *testing.T) {
	c := newCollection("widgets")
	doc, err := c.FindAndModify(FindAndModifyOptions{
		Filter: primitive.D{{Key: "missing", Value: "nope"}},
		Update: primitive.D{{Key: "$set", Value: primitive.D{{Key: "x", Value: 1}}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected a nil result for no match with no upsert, got %v", doc)
	}
}

func TestCountMatchesFilter(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}, {Key: "tag", Value: "x"}})
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(2)}, {Key: "tag", Value: "y"}})

	n, err := c.Count(primitive.D{{Key: "tag", Value: "x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}
}
