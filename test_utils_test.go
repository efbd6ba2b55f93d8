package mangodb_test

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb"
)

// TestDB holds a session and a collection scope private to one test.
type TestDB struct {
	Session *mangodb.Session
	DBName  string
}

// NewTestDB opens an in-process session under a unique database name so
// tests never see each other's documents.
func NewTestDB(t *testing.T) *TestDB {
	dbName := "modern_mgo_test_" + primitive.NewObjectID().Hex()
	session, err := mangodb.Dial("mongodb://local/" + dbName)
	if err != nil {
		t.Fatalf("Failed to open session: %v", err)
	}
	return &TestDB{Session: session, DBName: dbName}
}

// C returns a collection from the test database.
func (tdb *TestDB) C(collection string) *mangodb.Collection {
	return tdb.Session.DB(tdb.DBName).C(collection)
}

// DB returns the test database.
func (tdb *TestDB) DB() *mangodb.ModernDB {
	return tdb.Session.DB(tdb.DBName)
}

// Close drops the test database.
func (tdb *TestDB) Close(t *testing.T) {
	if err := tdb.Session.DB(tdb.DBName).DropDatabase(); err != nil {
		t.Logf("Warning: Failed to drop test database: %v", err)
	}
	tdb.Session.Close()
}

// TestData provides sample documents for collection/query/bulk tests.
type TestData struct {
	Users    []primitive.M
	Products []primitive.M
	Orders   []primitive.M
}

// GetTestData returns a fresh set of sample documents, each with its own
// ObjectID.
func GetTestData() *TestData {
	return &TestData{
		Users: []primitive.M{
			{"_id": primitive.NewObjectID(), "name": "John Doe", "email": "john@example.com", "age": 30, "active": true, "createdAt": time.Now()},
			{"_id": primitive.NewObjectID(), "name": "Jane Smith", "email": "jane@example.com", "age": 25, "active": true, "createdAt": time.Now().Add(-24 * time.Hour)},
			{"_id": primitive.NewObjectID(), "name": "Bob Johnson", "email": "bob@example.com", "age": 35, "active": false, "createdAt": time.Now().Add(-48 * time.Hour)},
		},
		Products: []primitive.M{
			{"_id": primitive.NewObjectID(), "name": "Product A", "price": 100.50, "category": "Electronics", "inStock": true, "quantity": 50, "tags": []string{"new", "featured"}},
			{"_id": primitive.NewObjectID(), "name": "Product B", "price": 50.25, "category": "Books", "inStock": true, "quantity": 100, "tags": []string{"bestseller"}},
			{"_id": primitive.NewObjectID(), "name": "Product C", "price": 200.00, "category": "Electronics", "inStock": false, "quantity": 0, "tags": []string{"premium", "out-of-stock"}},
		},
		Orders: []primitive.M{
			{"_id": primitive.NewObjectID(), "userId": primitive.NewObjectID(), "total": 150.75, "status": "pending"},
			{"_id": primitive.NewObjectID(), "userId": primitive.NewObjectID(), "total": 50.25, "status": "completed"},
		},
	}
}

// InsertTestData inserts every document in data into c.
func InsertTestData(t *testing.T, c *mangodb.Collection, data []primitive.M) {
	for _, doc := range data {
		if err := c.Insert(doc); err != nil {
			t.Fatalf("Failed to insert test data: %v", err)
		}
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error, message string) {
	if err == nil {
		t.Fatalf("Expected error but got none: %s", message)
	}
}

// AssertNoError fails the test if err is non-nil.
func AssertNoError(t *testing.T, err error, message string) {
	if err != nil {
		t.Fatalf("Unexpected error: %s - %v", message, err)
	}
}

// AssertEqual fails the test if expected != actual.
func AssertEqual(t *testing.T, expected, actual interface{}, message string) {
	if expected != actual {
		t.Fatalf("%s - Expected: %v, Got: %v", message, expected, actual)
	}
}

// CreateTestIndex creates an index on key for testing.
func CreateTestIndex(t *testing.T, c *mangodb.Collection, key []string, unique bool) {
	if err := c.EnsureIndex(mangodb.Index{Key: key, Unique: unique}); err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
}
