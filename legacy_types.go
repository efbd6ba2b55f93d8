package mangodb

import (
	"errors"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a requested document is not present. Many
// higher-level helper methods rely on comparing against this sentinel value.
var ErrNotFound = errors.New("not found")

// -------------------------- Index --------------------------

// Index mirrors the legacy mgo.Index shape the facade accepts from
// EnsureIndex, trimmed to the fields this engine's index.Spec understands
// (no TTL, text-index, or legacy bucket-size options).
type Index struct {
	Key    []string // field name, or "-field" for descending, or "field:2d"/"field:2dsphere"
	Name   string
	Unique bool
	Sparse bool
}

// ---------------------- ChangeInfo / Change ----------------------

// ChangeInfo captures the outcome of update/delete operations returning exact
// document counts in a way that mirrors the original driver.
type ChangeInfo struct {
	Updated    int
	Removed    int
	Matched    int
	UpsertedId interface{}
}

// Change represents the set of possible modifications applied by Query.Apply,
// mirroring mgo's findAndModify-shaped helper.
type Change struct {
	Update    interface{}
	Upsert    bool
	Remove    bool
	ReturnNew bool
}

// -------------------------- QueryError --------------------------

// QueryError mirrors mgo.QueryError, providing code & message.
type QueryError struct {
	Code      int
	Message   string
	Assertion bool
}

func (err *QueryError) Error() string {
	if err == nil {
		return "<nil>"
	}
	if err.Code != 0 {
		return err.Message + " (code " + strconv.Itoa(err.Code) + ")"
	}
	return err.Message
}

// ---------------------- update helpers ----------------------

// hasUpdateOperators returns true if the provided document already contains a
// top-level MongoDB update operator (keys starting with "$").
func hasUpdateOperators(doc interface{}) bool {
	switch d := doc.(type) {
	case primitive.M:
		for k := range d {
			if strings.HasPrefix(k, "$") {
				return true
			}
		}
	case primitive.D:
		for _, e := range d {
			if strings.HasPrefix(e.Key, "$") {
				return true
			}
		}
	case map[string]interface{}:
		for k := range d {
			if strings.HasPrefix(k, "$") {
				return true
			}
		}
	}
	return false
}

// wrapInSetOperator ensures plain replacement documents are converted into a
// $set update, so Update, UpdateAll, Upsert and Query.Apply always pass an
// operator document to the engine.
func wrapInSetOperator(doc interface{}) interface{} {
	if hasUpdateOperators(doc) {
		return doc
	}
	return primitive.D{{Key: "$set", Value: doc}}
}
