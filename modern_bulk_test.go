package mangodb_test

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestModernBulkInsert(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	bulk := coll.Bulk()
	bulk.Insert(primitive.M{"name": "A"}, primitive.M{"name": "B"})

	res, err := bulk.Run()
	AssertNoError(t, err, "Run should succeed")
	AssertEqual(t, 2, res.Inserted, "both documents should be inserted")

	n, _ := coll.Count()
	AssertEqual(t, 2, n, "collection should contain both documents")
}

func TestModernBulkUpdate(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Users)

	bulk := coll.Bulk()
	bulk.Update(
		primitive.M{"name": "John Doe"}, primitive.M{"$set": primitive.M{"age": 99}},
		primitive.M{"name": "Jane Smith"}, primitive.M{"$set": primitive.M{"age": 98}},
	)
	res, err := bulk.Run()
	AssertNoError(t, err, "Run should succeed")
	AssertEqual(t, 2, res.Matched, "both selectors should match")
	AssertEqual(t, 2, res.Modified, "both documents should be modified")
}

func TestModernBulkUpsert(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	bulk := coll.Bulk()
	bulk.Upsert(primitive.M{"name": "Ghost"}, primitive.M{"$set": primitive.M{"age": 1}})

	res, err := bulk.Run()
	AssertNoError(t, err, "Run should succeed")
	AssertEqual(t, 1, len(res.UpsertedIDs), "the missing selector should upsert")
}

func TestModernBulkRemove(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Users)

	bulk := coll.Bulk()
	bulk.RemoveAll(primitive.M{"active": true})
	res, err := bulk.Run()
	AssertNoError(t, err, "Run should succeed")
	AssertEqual(t, 2, res.Removed, "both active users should be removed")
}

func TestModernBulkUnorderedNoMatchIsNotError(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	bulk := coll.Bulk()
	bulk.Unordered()
	bulk.Update(
		primitive.M{"missing": "one"}, primitive.M{"$set": primitive.M{"x": 1}},
		primitive.M{"missing": "two"}, primitive.M{"$set": primitive.M{"x": 1}},
	)

	_, err := bulk.Run()
	AssertNoError(t, err, "a selector matching nothing is not itself an error for Update")
}
