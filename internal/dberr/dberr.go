// Package dberr defines the typed error envelope shared by every layer of
// the engine (matcher, update engine, expression evaluator, aggregation
// pipeline, index maintenance). It mirrors the {code, codeName, errmsg}
// shape of a reference MongoDB server and the teacher's QueryError.
package dberr

import "fmt"

// Error is a MongoDB-style command error: an integer code, its symbolic
// name, and a human-readable message.
type Error struct {
	Code    int
	Name    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d): %s", e.Name, e.Code, e.Message)
}

// Well-known error codes referenced by spec.md §6-7.
const (
	CodeBadValue                 = 2
	CodeFailedToParse            = 9
	CodeInternalError            = 16
	CodeGraphContainsCycle       = 5
	CodeConflictingUpdateOps     = 40
	CodeDocumentValidation       = 121
	CodeNoQueryExecutionPlans    = 291
	CodeDuplicateKey             = 11000
	CodeIndexNotFound            = 85
	CodeCannotDropShardKeyIndex  = 72
	CodeCommandNotSupported      = 115
	CodeTypeMismatch             = 14
	CodeLocation31034            = 31034 // $switch no default
)

var names = map[int]string{
	CodeBadValue:                "BadValue",
	CodeFailedToParse:           "FailedToParse",
	CodeInternalError:           "InternalError",
	CodeGraphContainsCycle:      "GraphContainsCycle",
	CodeConflictingUpdateOps:    "ConflictingUpdateOperators",
	CodeDocumentValidation:      "DocumentValidationFailure",
	CodeNoQueryExecutionPlans:   "NoQueryExecutionPlans",
	CodeDuplicateKey:            "DuplicateKey",
	CodeIndexNotFound:           "IndexNotFound",
	CodeCannotDropShardKeyIndex: "CannotDropShardKeyIndex",
	CodeCommandNotSupported:     "CommandNotSupported",
	CodeTypeMismatch:            "TypeMismatch",
	CodeLocation31034:           "Location31034",
}

// New builds an Error for the given code, deriving the codeName from the
// well-known table (falling back to "Error" for ad-hoc codes).
func New(code int, format string, args ...interface{}) *Error {
	name, ok := names[code]
	if !ok {
		name = "Error"
	}
	return &Error{Code: code, Name: name, Message: fmt.Sprintf(format, args...)}
}

// BadValue builds a code-2 error, the catch-all for malformed operator
// arguments.
func BadValue(format string, args ...interface{}) *Error {
	return New(CodeBadValue, format, args...)
}

// FailedToParse builds a code-9 error for command/document shape problems
// detected at compile time.
func FailedToParse(format string, args ...interface{}) *Error {
	return New(CodeFailedToParse, format, args...)
}

// DuplicateKey builds the canonical 11000 duplicate-key error message shape:
// "E11000 duplicate key error ... index: <name> dup key: { <path>: <value> }".
func DuplicateKey(indexName string, keyDesc string) *Error {
	return New(CodeDuplicateKey, "E11000 duplicate key error collection index: %s dup key: %s", indexName, keyDesc)
}
