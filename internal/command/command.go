// Package command adapts decoded wire commands (spec.md §6) onto the core
// mangodb.Collection entry points, shaping results and errors exactly as a
// reference server's wire protocol does. It is the only package that knows
// the command document shapes; everything else operates on Go values.
package command

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb"
	"github.com/JKershaw/mangodb/internal/dberr"
	"github.com/JKershaw/mangodb/internal/index"
)

// Execute dispatches the named command against db. cmd is the whole command
// document, {<name>: <collection>, ...options}, matching how a reference
// server's OP_MSG body is laid out; the collection name is read from its
// <name> field.
func Execute(db *mangodb.Database, name string, cmd primitive.D) (primitive.D, error) {
	collName, _ := fieldString(cmd, name)
	coll := db.Collection(collName)

	switch name {
	case "find":
		return runFind(coll, cmd)
	case "aggregate":
		return runAggregate(db, coll, cmd)
	case "insert":
		return runInsert(coll, cmd)
	case "update":
		return runUpdate(coll, cmd)
	case "delete":
		return runDelete(coll, cmd)
	case "findAndModify", "findandmodify":
		return runFindAndModify(coll, cmd)
	case "createIndexes":
		return runCreateIndexes(coll, cmd)
	case "dropIndexes":
		return runDropIndexes(coll, cmd)
	case "listIndexes":
		return runListIndexes(coll)
	case "count":
		return runCount(coll, cmd)
	case "countDocuments":
		return runCountDocuments(coll, cmd)
	default:
		return nil, dberr.New(dberr.CodeCommandNotSupported, "no such command: %q", name)
	}
}

// --- find / aggregate -------------------------------------------------

func runFind(coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	opts := mangodb.FindOptions{
		Sort:  fieldDoc(cmd, "sort"),
		Skip:  fieldInt64(cmd, "skip"),
		Limit: fieldInt64(cmd, "limit"),
	}
	filter := fieldDoc(cmd, "filter")
	cur, err := coll.Find(filter, opts)
	if err != nil {
		return nil, err
	}
	docs, err := cur.All()
	if err != nil {
		return nil, err
	}
	proj := fieldDoc(cmd, "projection")
	if len(proj) > 0 {
		for i, d := range docs {
			docs[i] = mangodb.Project(d, proj)
		}
	}
	return cursorReply(docs), nil
}

func runAggregate(db *mangodb.Database, coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	pipeline, _ := fieldRaw(cmd, "pipeline")
	docs, err := coll.Aggregate(db, pipeline)
	if err != nil {
		return nil, err
	}
	return cursorReply(docs), nil
}

func cursorReply(docs []primitive.D) primitive.D {
	batch := make(primitive.A, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	return primitive.D{
		{Key: "cursor", Value: primitive.D{
			{Key: "firstBatch", Value: batch},
			{Key: "id", Value: int64(0)},
		}},
		{Key: "ok", Value: float64(1)},
	}
}

// --- insert -------------------------------------------------------------

func runInsert(coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	ordered := fieldBoolDefault(cmd, "ordered", true)
	raw, _ := fieldRaw(cmd, "documents")
	arr, _ := raw.(primitive.A)
	docs := make([]primitive.D, 0, len(arr))
	for _, v := range arr {
		if d, ok := v.(primitive.D); ok {
			docs = append(docs, d)
		}
	}
	n, writeErrs := coll.InsertMany(docs, ordered)
	reply := primitive.D{{Key: "n", Value: int32(n)}}
	if len(writeErrs) > 0 {
		reply = append(reply, primitive.E{Key: "writeErrors", Value: writeErrorsDoc(writeErrsFrom(writeErrs))})
	}
	reply = append(reply, primitive.E{Key: "ok", Value: float64(1)})
	return reply, nil
}

type indexedErr struct {
	index int
	err   error
}

func writeErrsFrom(in []mangodb.WriteError) []indexedErr {
	out := make([]indexedErr, len(in))
	for i, w := range in {
		out[i] = indexedErr{index: w.Index, err: w.Err}
	}
	return out
}

func writeErrorsDoc(errs []indexedErr) primitive.A {
	out := make(primitive.A, len(errs))
	for i, e := range errs {
		out[i] = errDoc(e.index, e.err)
	}
	return out
}

func errDoc(index int, err error) primitive.D {
	code, codeName, msg := describeErr(err)
	return primitive.D{
		{Key: "index", Value: int32(index)},
		{Key: "code", Value: int32(code)},
		{Key: "codeName", Value: codeName},
		{Key: "errmsg", Value: msg},
	}
}

func describeErr(err error) (code int, codeName, msg string) {
	if de, ok := err.(*dberr.Error); ok {
		return de.Code, de.Name, de.Message
	}
	return dberr.CodeInternalError, "InternalError", err.Error()
}

// --- update / delete -----------------------------------------------------

func runUpdate(coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	ordered := fieldBoolDefault(cmd, "ordered", true)
	raw, _ := fieldRaw(cmd, "updates")
	arr, _ := raw.(primitive.A)

	var matched, modified int64
	var upserted primitive.A
	var writeErrs []indexedErr
	for i, v := range arr {
		spec, ok := v.(primitive.D)
		if !ok {
			continue
		}
		u := mangodb.UpdateSpec{
			Filter: fieldDoc(spec, "q"),
			Multi:  fieldBoolDefault(spec, "multi", false),
			Upsert: fieldBoolDefault(spec, "upsert", false),
		}
		u.Update, _ = fieldRaw(spec, "u")
		if af := fieldArray(spec, "arrayFilters"); len(af) > 0 {
			for _, f := range af {
				if d, ok := f.(primitive.D); ok {
					u.ArrayFilters = append(u.ArrayFilters, d)
				}
			}
		}
		res, err := coll.ApplyUpdate(u)
		if err != nil {
			writeErrs = append(writeErrs, indexedErr{index: i, err: err})
			if ordered {
				break
			}
			continue
		}
		matched += res.Matched
		modified += res.Modified
		if res.UpsertedID != nil {
			upserted = append(upserted, primitive.D{
				{Key: "index", Value: int32(i)},
				{Key: "_id", Value: res.UpsertedID},
			})
		}
	}

	reply := primitive.D{
		{Key: "n", Value: int32(matched + int64(len(upserted)))},
		{Key: "nModified", Value: int32(modified)},
	}
	if len(upserted) > 0 {
		reply = append(reply, primitive.E{Key: "upserted", Value: upserted})
	}
	if len(writeErrs) > 0 {
		reply = append(reply, primitive.E{Key: "writeErrors", Value: writeErrorsDoc(writeErrs)})
	}
	reply = append(reply, primitive.E{Key: "ok", Value: float64(1)})
	return reply, nil
}

func runDelete(coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	ordered := fieldBoolDefault(cmd, "ordered", true)
	raw, _ := fieldRaw(cmd, "deletes")
	arr, _ := raw.(primitive.A)

	var total int64
	var writeErrs []indexedErr
	for i, v := range arr {
		spec, ok := v.(primitive.D)
		if !ok {
			continue
		}
		n, err := coll.ApplyDelete(mangodb.DeleteSpec{
			Filter: fieldDoc(spec, "q"),
			Limit:  fieldInt64(spec, "limit"),
		})
		if err != nil {
			writeErrs = append(writeErrs, indexedErr{index: i, err: err})
			if ordered {
				break
			}
			continue
		}
		total += n
	}

	reply := primitive.D{{Key: "n", Value: int32(total)}}
	if len(writeErrs) > 0 {
		reply = append(reply, primitive.E{Key: "writeErrors", Value: writeErrorsDoc(writeErrs)})
	}
	reply = append(reply, primitive.E{Key: "ok", Value: float64(1)})
	return reply, nil
}

// --- findAndModify ---------------------------------------------------------

func runFindAndModify(coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	opts := mangodb.FindAndModifyOptions{
		Filter:      fieldDoc(cmd, "query"),
		Sort:        fieldDoc(cmd, "sort"),
		Remove:      fieldBoolDefault(cmd, "remove", false),
		ReturnAfter: fieldBoolDefault(cmd, "new", false),
		Upsert:      fieldBoolDefault(cmd, "upsert", false),
		Fields:      fieldDoc(cmd, "fields"),
	}
	opts.Update, _ = fieldRaw(cmd, "update")
	if af := fieldArray(cmd, "arrayFilters"); len(af) > 0 {
		for _, f := range af {
			if d, ok := f.(primitive.D); ok {
				opts.ArrayFilters = append(opts.ArrayFilters, d)
			}
		}
	}
	doc, err := coll.FindAndModify(opts)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if doc != nil {
		value = doc
	}
	return primitive.D{
		{Key: "value", Value: value},
		{Key: "ok", Value: float64(1)},
	}, nil
}

// --- index management --------------------------------------------------

func runCreateIndexes(coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	raw, _ := fieldRaw(cmd, "indexes")
	arr, _ := raw.(primitive.A)
	before := len(coll.ListIndexes())
	for _, v := range arr {
		d, ok := v.(primitive.D)
		if !ok {
			continue
		}
		spec := index.Spec{
			Keys:   fieldDoc(d, "key"),
			Unique: fieldBoolDefault(d, "unique", false),
			Sparse: fieldBoolDefault(d, "sparse", false),
		}
		spec.Name, _ = fieldString(d, "name")
		if spec.Name == "" {
			spec.Name = index.DefaultName(spec.Keys)
		}
		if _, err := coll.CreateIndex(spec); err != nil {
			return nil, err
		}
	}
	return primitive.D{
		{Key: "numIndexesBefore", Value: int32(before)},
		{Key: "numIndexesAfter", Value: int32(len(coll.ListIndexes()))},
		{Key: "ok", Value: float64(1)},
	}, nil
}

func runDropIndexes(coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	before := len(coll.ListIndexes())
	raw, _ := fieldRaw(cmd, "index")
	switch v := raw.(type) {
	case string:
		if err := coll.DropIndex(v); err != nil {
			return nil, err
		}
	case primitive.D:
		if err := coll.DropIndex(index.DefaultName(v)); err != nil {
			return nil, err
		}
	default:
		for _, spec := range coll.ListIndexes() {
			if spec.Name == "_id_" {
				continue
			}
			if err := coll.DropIndex(spec.Name); err != nil {
				return nil, err
			}
		}
	}
	return primitive.D{
		{Key: "nIndexesWas", Value: int32(before)},
		{Key: "ok", Value: float64(1)},
	}, nil
}

func runListIndexes(coll *mangodb.Collection) (primitive.D, error) {
	specs := coll.ListIndexes()
	batch := make(primitive.A, len(specs))
	for i, s := range specs {
		batch[i] = primitive.D{
			{Key: "name", Value: s.Name},
			{Key: "key", Value: s.Keys},
			{Key: "unique", Value: s.Unique},
			{Key: "sparse", Value: s.Sparse},
		}
	}
	return primitive.D{
		{Key: "cursor", Value: primitive.D{
			{Key: "firstBatch", Value: batch},
			{Key: "id", Value: int64(0)},
		}},
		{Key: "ok", Value: float64(1)},
	}, nil
}

// --- count ---------------------------------------------------------------

func runCount(coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	n, err := countWithSkipLimit(coll, fieldDoc(cmd, "query"), fieldInt64(cmd, "skip"), fieldInt64(cmd, "limit"))
	if err != nil {
		return nil, err
	}
	return primitive.D{{Key: "n", Value: n}, {Key: "ok", Value: float64(1)}}, nil
}

func runCountDocuments(coll *mangodb.Collection, cmd primitive.D) (primitive.D, error) {
	n, err := countWithSkipLimit(coll, fieldDoc(cmd, "filter"), fieldInt64(cmd, "skip"), fieldInt64(cmd, "limit"))
	if err != nil {
		return nil, err
	}
	return primitive.D{{Key: "n", Value: n}, {Key: "ok", Value: float64(1)}}, nil
}

func countWithSkipLimit(coll *mangodb.Collection, filter primitive.D, skip, limit int64) (int32, error) {
	n, err := coll.Count(filter)
	if err != nil {
		return 0, err
	}
	if skip > 0 {
		n -= skip
		if n < 0 {
			n = 0
		}
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return int32(n), nil
}

// --- field access helpers -------------------------------------------------

func fieldRaw(d primitive.D, key string) (interface{}, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func fieldDoc(d primitive.D, key string) primitive.D {
	v, ok := fieldRaw(d, key)
	if !ok {
		return nil
	}
	doc, _ := v.(primitive.D)
	return doc
}

func fieldArray(d primitive.D, key string) primitive.A {
	v, ok := fieldRaw(d, key)
	if !ok {
		return nil
	}
	arr, _ := v.(primitive.A)
	return arr
}

func fieldString(d primitive.D, key string) (string, bool) {
	v, ok := fieldRaw(d, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func fieldBoolDefault(d primitive.D, key string, def bool) bool {
	v, ok := fieldRaw(d, key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func fieldInt64(d primitive.D, key string) int64 {
	v, ok := fieldRaw(d, key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
