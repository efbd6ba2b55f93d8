package mangodb_test

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestModernIteratorNext(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Users)

	it := coll.Find(nil).Iter()
	count := 0
	var doc primitive.M
	for it.Next(&doc) {
		count++
	}
	AssertNoError(t, it.Close(), "Close should report no error after a clean exhaustion")
	AssertEqual(t, 3, count, "iterator should visit every user")
}

func TestModernIteratorAll(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Products)

	it := coll.Find(primitive.M{"inStock": true}).Iter()
	var out []primitive.M
	AssertNoError(t, it.All(&out), "All should succeed")
	AssertEqual(t, 2, len(out), "two products are in stock")
}

func TestModernIteratorErr(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	it := coll.Find(nil).Iter()
	var doc primitive.M
	for it.Next(&doc) {
	}
	AssertNoError(t, it.Err(), "an empty collection should exhaust cleanly")
}
