package expr

import (
	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
)

func argCountErr(op string, want, got int) error {
	return dberr.BadValue("%s requires %d argument(s), got %d", op, want, got)
}

// numeric coerces v to float64, raising a type error matching spec.md §7
// ("operator received wrong runtime type") when v isn't numeric and isn't
// nullish (nullish values are left for the caller to decide how to
// propagate, per spec.md §4.4 "missing fields propagate as missing").
func numeric(op string, v interface{}) (float64, bool, error) {
	if bsonval.IsNullish(v) {
		return 0, true, nil
	}
	f, ok := bsonval.AsFloat64(v)
	if !ok {
		return 0, false, dberr.BadValue("%s requires numeric operands, got %T", op, v)
	}
	return f, false, nil
}

func asString(op string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", dberr.BadValue("%s requires a string operand, got %T", op, v)
	}
	return s, nil
}
