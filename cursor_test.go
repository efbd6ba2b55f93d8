package mangodb

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errCursorClosed = errors.New("cursor closed")

func TestCursorNextFalseWhenExhausted(t *testing.T) {
	c := newCollection("widgets")
	cur := newCursor(c, nil)
	if cur.Next() {
		t.Fatalf("expected an empty id list to yield no documents")
	}
}

func TestCursorDocumentSkipsDeletedRecords(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}})
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(2)}})
	cur := newCursor(c, []interface{}{int32(1), int32(2)})

	c.deleteDocLocked(int32(1))

	doc, ok := cur.Document()
	if !ok {
		t.Fatalf("expected the surviving document to be returned")
	}
	if doc[0].Value != int32(2) {
		t.Fatalf("expected id 2 after id 1 was deleted, got %v", doc)
	}
	if _, ok := cur.Document(); ok {
		t.Fatalf("expected the cursor to be exhausted after its one surviving id")
	}
}

func TestCursorErrShortCircuitsNext(t *testing.T) {
	c := newCollection("widgets")
	c.InsertOne(primitive.D{{Key: "_id", Value: int32(1)}})
	cur := newCursor(c, []interface{}{int32(1)})
	cur.err = errCursorClosed
	if cur.Next() {
		t.Fatalf("expected Next to report false once an error is set")
	}
	if cur.Err() != errCursorClosed {
		t.Fatalf("expected Err to return the set error")
	}
}
