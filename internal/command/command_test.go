package command_test

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb"
	"github.com/JKershaw/mangodb/internal/command"
)

func fieldOf(doc primitive.D, key string) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestExecuteInsertAndFind(t *testing.T) {
	db := mangodb.NewDatabase("cmdtest")

	_, err := command.Execute(db, "insert", primitive.D{
		{Key: "insert", Value: "widgets"},
		{Key: "documents", Value: primitive.A{
			primitive.D{{Key: "name", Value: "gear"}},
		}},
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	reply, err := command.Execute(db, "find", primitive.D{
		{Key: "find", Value: "widgets"},
		{Key: "filter", Value: primitive.D{{Key: "name", Value: "gear"}}},
	})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	cursor, ok := fieldOf(reply, "cursor")
	if !ok {
		t.Fatalf("expected a cursor field in the find reply")
	}
	batch, _ := fieldOf(cursor.(primitive.D), "firstBatch")
	if arr, ok := batch.(primitive.A); !ok || len(arr) != 1 {
		t.Fatalf("expected one document in the first batch, got %v", batch)
	}
}

func TestExecuteUpdateReportsMatchedAndModified(t *testing.T) {
	db := mangodb.NewDatabase("cmdtest2")
	db.Collection("widgets")

	command.Execute(db, "insert", primitive.D{
		{Key: "insert", Value: "widgets"},
		{Key: "documents", Value: primitive.A{primitive.D{{Key: "count", Value: int32(1)}}}},
	})

	reply, err := command.Execute(db, "update", primitive.D{
		{Key: "update", Value: "widgets"},
		{Key: "updates", Value: primitive.A{
			primitive.D{
				{Key: "q", Value: primitive.D{}},
				{Key: "u", Value: primitive.D{{Key: "$set", Value: primitive.D{{Key: "count", Value: int32(2)}}}}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	n, _ := fieldOf(reply, "n")
	if n != int32(1) {
		t.Fatalf("expected n=1, got %v", n)
	}
	modified, _ := fieldOf(reply, "nModified")
	if modified != int32(1) {
		t.Fatalf("expected nModified=1, got %v", modified)
	}
}

func TestExecuteDeleteReportsCount(t *testing.T) {
	db := mangodb.NewDatabase("cmdtest3")
	command.Execute(db, "insert", primitive.D{
		{Key: "insert", Value: "widgets"},
		{Key: "documents", Value: primitive.A{
			primitive.D{{Key: "x", Value: int32(1)}},
			primitive.D{{Key: "x", Value: int32(2)}},
		}},
	})

	reply, err := command.Execute(db, "delete", primitive.D{
		{Key: "delete", Value: "widgets"},
		{Key: "deletes", Value: primitive.A{
			primitive.D{{Key: "q", Value: primitive.D{}}, {Key: "limit", Value: int32(0)}},
		}},
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	n, _ := fieldOf(reply, "n")
	if n != int32(2) {
		t.Fatalf("expected n=2, got %v", n)
	}
}

func TestExecuteCreateAndListIndexes(t *testing.T) {
	db := mangodb.NewDatabase("cmdtest4")
	db.Collection("widgets")

	_, err := command.Execute(db, "createIndexes", primitive.D{
		{Key: "createIndexes", Value: "widgets"},
		{Key: "indexes", Value: primitive.A{
			primitive.D{{Key: "key", Value: primitive.D{{Key: "sku", Value: int32(1)}}}, {Key: "unique", Value: true}},
		}},
	})
	if err != nil {
		t.Fatalf("createIndexes failed: %v", err)
	}

	reply, err := command.Execute(db, "listIndexes", primitive.D{{Key: "listIndexes", Value: "widgets"}})
	if err != nil {
		t.Fatalf("listIndexes failed: %v", err)
	}
	cursor, _ := fieldOf(reply, "cursor")
	batch, _ := fieldOf(cursor.(primitive.D), "firstBatch")
	arr, ok := batch.(primitive.A)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected the default _id_ index plus the new one, got %v", batch)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	db := mangodb.NewDatabase("cmdtest5")
	_, err := command.Execute(db, "bogus", primitive.D{{Key: "bogus", Value: "widgets"}})
	if err == nil {
		t.Fatalf("expected an error for an unrecognized command")
	}
}

func TestExecuteCount(t *testing.T) {
	db := mangodb.NewDatabase("cmdtest6")
	command.Execute(db, "insert", primitive.D{
		{Key: "insert", Value: "widgets"},
		{Key: "documents", Value: primitive.A{
			primitive.D{{Key: "x", Value: int32(1)}},
			primitive.D{{Key: "x", Value: int32(2)}},
			primitive.D{{Key: "x", Value: int32(3)}},
		}},
	})

	reply, err := command.Execute(db, "count", primitive.D{{Key: "count", Value: "widgets"}})
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	n, _ := fieldOf(reply, "n")
	if n != int32(3) {
		t.Fatalf("expected n=3, got %v", n)
	}
}
