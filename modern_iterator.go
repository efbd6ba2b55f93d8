// modern_iterator.go - cursor iteration for the legacy API facade.
package mangodb

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Next decodes the next document into result (mgo API compatible).
func (it *ModernIt) Next(result interface{}) bool {
	if it.err != nil || it.src == nil {
		return false
	}
	doc, ok := it.src.next()
	if !ok {
		it.err = it.src.lastErr()
		return false
	}
	it.err = decodeInto(doc, result)
	return it.err == nil
}

// Close releases the underlying source.
func (it *ModernIt) Close() error {
	if it.src != nil {
		it.src.close()
	}
	return it.err
}

// Err returns any error encountered during iteration, nil on normal
// exhaustion.
func (it *ModernIt) Err() error {
	return it.err
}

// All drains every remaining document into result, which must be a pointer
// to a slice.
func (it *ModernIt) All(result interface{}) error {
	if it.err != nil {
		return it.err
	}
	if it.src == nil {
		return ErrNotFound
	}

	var docs []primitive.D
	for {
		doc, ok := it.src.next()
		if !ok {
			break
		}
		docs = append(docs, doc)
	}
	if err := it.src.lastErr(); err != nil {
		it.err = err
		return err
	}

	return decodeSliceInto(docs, result)
}

// decodeSliceInto writes docs into dst (a pointer to a slice of structs,
// bson.M, or bson.D) by round-tripping through the official BSON codec
// one element at a time, since the slice element type isn't known statically.
func decodeSliceInto(docs []primitive.D, dst interface{}) error {
	ptr := reflect.ValueOf(dst)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Slice {
		return decodeInto(primitive.D{}, dst)
	}
	slice := reflect.MakeSlice(ptr.Elem().Type(), 0, len(docs))
	elemType := ptr.Elem().Type().Elem()
	for _, doc := range docs {
		elem := reflect.New(elemType)
		if err := decodeInto(doc, elem.Interface()); err != nil {
			return err
		}
		slice = reflect.Append(slice, elem.Elem())
	}
	ptr.Elem().Set(slice)
	return nil
}
