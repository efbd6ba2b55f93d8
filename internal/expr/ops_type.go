package expr

import (
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/bsonval"
	"github.com/JKershaw/mangodb/internal/dberr"
)

// bsonTypeName maps a runtime value to the type-name string used by $type
// and the matcher's $type operator (spec.md GLOSSARY "BSON type tag").
func bsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bsonval.Missing:
		return "missing"
	case primitive.Undefined:
		return "undefined"
	case float64:
		return "double"
	case string:
		return "string"
	case primitive.D, primitive.M, map[string]interface{}:
		return "object"
	case primitive.A, []interface{}:
		return "array"
	case primitive.Binary:
		return "binData"
	case primitive.ObjectID:
		return "objectId"
	case bool:
		return "bool"
	case primitive.DateTime, time.Time:
		return "date"
	case primitive.Regex:
		return "regex"
	case int32:
		return "int"
	case primitive.Timestamp:
		return "timestamp"
	case int64:
		return "long"
	case primitive.Decimal128:
		return "decimal"
	case primitive.MinKey:
		return "minKey"
	case primitive.MaxKey:
		return "maxKey"
	}
	return "object"
}

func init() {
	register("$type", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr("$type", 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			return bsonTypeName(v), nil
		}, nil
	})

	register("$isNumber", func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr("$isNumber", 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			return bsonval.IsNumeric(v), nil
		}, nil
	})

	unaryConvert("$toString", func(v interface{}) (interface{}, error) { return toStringVal(v) })
	unaryConvert("$toBool", func(v interface{}) (interface{}, error) { return toBoolVal(v), nil })
	unaryConvert("$toInt", func(v interface{}) (interface{}, error) { return toIntVal(v) })
	unaryConvert("$toLong", func(v interface{}) (interface{}, error) { return toLongVal(v) })
	unaryConvert("$toDouble", func(v interface{}) (interface{}, error) { return toDoubleVal(v) })
	unaryConvert("$toDecimal", func(v interface{}) (interface{}, error) { return toDecimalVal(v) })
	unaryConvert("$toDate", func(v interface{}) (interface{}, error) { return toDateVal(v) })
	unaryConvert("$toObjectId", func(v interface{}) (interface{}, error) { return toObjectIDVal(v) })

	register("$convert", func(raw interface{}) (node, error) {
		d, ok := rawDoc(raw)
		if !ok {
			return nil, dberr.BadValue("$convert requires a document argument")
		}
		inputN, err := compileField(d, "input")
		if err != nil {
			return nil, err
		}
		toN, err := compileField(d, "to")
		if err != nil {
			return nil, err
		}
		var onErrorN, onNullN node
		if v, ok := docGet(d, "onError"); ok {
			onErrorN, err = compileNode(v)
			if err != nil {
				return nil, err
			}
		}
		if v, ok := docGet(d, "onNull"); ok {
			onNullN, err = compileNode(v)
			if err != nil {
				return nil, err
			}
		}
		return func(ctx *Ctx) (interface{}, error) {
			iv, err := inputN(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(iv) {
				if onNullN != nil {
					return onNullN(ctx)
				}
				return nil, nil
			}
			tv, err := toN(ctx)
			if err != nil {
				return nil, err
			}
			to, _ := tv.(string)
			out, cerr := convertTo(to, iv)
			if cerr != nil {
				if onErrorN != nil {
					return onErrorN(ctx)
				}
				return nil, cerr
			}
			return out, nil
		}, nil
	})
}

func unaryConvert(name string, fn func(interface{}) (interface{}, error)) {
	register(name, func(raw interface{}) (node, error) {
		nodes, err := compileArgList(raw)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, argCountErr(name, 1, len(nodes))
		}
		n := nodes[0]
		return func(ctx *Ctx) (interface{}, error) {
			v, err := n(ctx)
			if err != nil {
				return nil, err
			}
			if bsonval.IsNullish(v) {
				return nil, nil
			}
			return fn(v)
		}, nil
	})
}

func convertTo(to string, v interface{}) (interface{}, error) {
	switch to {
	case "string":
		return toStringVal(v)
	case "bool":
		return toBoolVal(v), nil
	case "int":
		return toIntVal(v)
	case "long":
		return toLongVal(v)
	case "double":
		return toDoubleVal(v)
	case "decimal":
		return toDecimalVal(v)
	case "date":
		return toDateVal(v)
	case "objectId":
		return toObjectIDVal(v)
	default:
		return nil, dberr.BadValue("$convert: unsupported target type %q", to)
	}
}

func toStringVal(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case primitive.ObjectID:
		return t.Hex(), nil
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano), nil
	case primitive.Decimal128:
		return t.String(), nil
	}
	return nil, dberr.BadValue("cannot convert %T to string", v)
}

func toBoolVal(v interface{}) interface{} {
	return Truthy(v)
}

func toIntVal(v interface{}) (interface{}, error) {
	f, err := toFloatAny(v)
	if err != nil {
		return nil, err
	}
	return int32(f), nil
}

func toLongVal(v interface{}) (interface{}, error) {
	f, err := toFloatAny(v)
	if err != nil {
		return nil, err
	}
	return int64(f), nil
}

func toDoubleVal(v interface{}) (interface{}, error) {
	return toFloatAny(v)
}

func toDecimalVal(v interface{}) (interface{}, error) {
	f, err := toFloatAny(v)
	if err != nil {
		return nil, err
	}
	d, derr := primitive.ParseDecimal128(strconv.FormatFloat(f, 'g', -1, 64))
	if derr != nil {
		return nil, dberr.BadValue("cannot convert to decimal: %v", derr)
	}
	return d, nil
}

func toFloatAny(v interface{}) (float64, error) {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, dberr.BadValue("cannot convert string %q to number", t)
		}
		return f, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		f, ok := bsonval.AsFloat64(v)
		if !ok {
			return 0, dberr.BadValue("cannot convert %T to number", v)
		}
		return f, nil
	}
}

func toDateVal(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", t)
		}
		if err != nil {
			return nil, dberr.BadValue("cannot convert string %q to date", t)
		}
		return primitive.NewDateTimeFromTime(parsed), nil
	case int64:
		return primitive.DateTime(t), nil
	case int32:
		return primitive.DateTime(int64(t)), nil
	}
	return nil, dberr.BadValue("cannot convert %T to date", v)
}

func toObjectIDVal(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t, nil
	case string:
		oid, err := primitive.ObjectIDFromHex(t)
		if err != nil {
			return nil, dberr.BadValue("cannot convert string %q to objectId: %v", t, err)
		}
		return oid, nil
	}
	return nil, dberr.BadValue("cannot convert %T to objectId", v)
}
