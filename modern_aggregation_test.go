package mangodb_test

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestModernAggregationMatch(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Products)

	pipeline := primitive.A{
		primitive.M{"$match": primitive.M{"category": "Electronics"}},
	}
	var out []primitive.M
	err := coll.Pipe(pipeline).All(&out)
	AssertNoError(t, err, "Pipe.All should succeed")
	AssertEqual(t, 2, len(out), "two electronics products should match")
}

func TestModernAggregationGroup(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Products)

	pipeline := primitive.A{
		primitive.M{"$group": primitive.M{
			"_id":      "$category",
			"quantity": primitive.M{"$sum": "$quantity"},
		}},
		primitive.M{"$sort": primitive.M{"_id": 1}},
	}
	var out []primitive.M
	err := coll.Pipe(pipeline).All(&out)
	AssertNoError(t, err, "Pipe.All should succeed")
	AssertEqual(t, 2, len(out), "two distinct categories should be grouped")
	AssertEqual(t, "Books", out[0]["_id"], "Books sorts before Electronics")
}

func TestModernAggregationOne(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Products)

	pipeline := primitive.A{
		primitive.M{"$match": primitive.M{"name": "Product A"}},
		primitive.M{"$project": primitive.M{"price": 1}},
	}
	var out primitive.M
	err := coll.Pipe(pipeline).One(&out)
	AssertNoError(t, err, "Pipe.One should succeed")
	AssertEqual(t, 100.50, out["price"], "projection should keep the price field")
}

func TestModernAggregationNoMatchIsNotError(t *testing.T) {
	tdb := NewTestDB(t)
	defer tdb.Close(t)

	coll := tdb.C("test_collection")
	InsertTestData(t, coll, GetTestData().Products)

	pipeline := primitive.A{
		primitive.M{"$match": primitive.M{"category": "Clothing"}},
	}
	var out []primitive.M
	err := coll.Pipe(pipeline).All(&out)
	AssertNoError(t, err, "an empty result set is not an error")
	AssertEqual(t, 0, len(out), "no document should match")
}
