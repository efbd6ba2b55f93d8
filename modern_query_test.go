package mangodb_test

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb"
)

func TestModernQueryOne(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Products)

	var out primitive.M
	err := coll.Find(primitive.M{"category": "Books"}).One(&out)
	AssertNoError(t, err, "One should succeed")
	AssertEqual(t, "Product B", out["name"], "should find the book")
}

func TestModernQueryAll(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Products)

	var out []primitive.M
	err := coll.Find(primitive.M{"category": "Electronics"}).All(&out)
	AssertNoError(t, err, "All should succeed")
	AssertEqual(t, 2, len(out), "should find both electronics products")
}

func TestModernQuerySortLimitSkip(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Users)

	var out []primitive.M
	err := coll.Find(nil).Sort("-age").Skip(1).Limit(1).All(&out)
	AssertNoError(t, err, "All should succeed")
	AssertEqual(t, 1, len(out), "limit should cap the result to one document")
	AssertEqual(t, "John Doe", out[0]["name"], "second-oldest user should be John")
}

func TestModernQuerySelectProjection(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Users)

	var out primitive.M
	err := coll.Find(primitive.M{"name": "Jane Smith"}).Select(primitive.M{"email": 1}).One(&out)
	AssertNoError(t, err, "One should succeed")
	if _, ok := out["age"]; ok {
		t.Fatalf("expected age to be excluded by the projection, got %+v", out)
	}
}

func TestModernQueryCount(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Users)

	n, err := coll.Find(primitive.M{"active": true}).Count()
	AssertNoError(t, err, "Count should succeed")
	AssertEqual(t, 2, n, "two users are active")
}

func TestModernQueryApplyUpdate(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	AssertNoError(t, coll.Insert(primitive.M{"name": "Eve", "age": 20}), "Insert should succeed")

	var out primitive.M
	info, err := coll.Find(primitive.M{"name": "Eve"}).Apply(mangodb.Change{
		Update:    primitive.M{"$set": primitive.M{"age": 21}},
		ReturnNew: true,
	}, &out)
	AssertNoError(t, err, "Apply should succeed")
	AssertEqual(t, 1, info.Updated, "Apply should report one update")
	AssertEqual(t, int32(21), out["age"], "Apply should return the post-update document")
}

func TestModernQueryApplyRemove(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	AssertNoError(t, coll.Insert(primitive.M{"name": "Frank"}), "Insert should succeed")

	info, err := coll.Find(primitive.M{"name": "Frank"}).Apply(mangodb.Change{Remove: true}, nil)
	AssertNoError(t, err, "Apply should succeed")
	AssertEqual(t, 1, info.Removed, "Apply should report a removal")

	n, _ := coll.Count()
	AssertEqual(t, 0, n, "document should be gone")
}
