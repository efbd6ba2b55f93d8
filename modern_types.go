// modern_types.go - type definitions for the legacy mgo-style API facade
// over the in-process engine.
package mangodb

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModernMGO plays the role of a connected mgo.Session: a registry of named
// in-process databases, opened lazily the way a reference server creates a
// database implicitly on first write.
type ModernMGO struct {
	mu        sync.Mutex
	dbs       map[string]*Database
	defaultDB string
}

// ModernDB is one named database handle.
type ModernDB struct {
	mgo *ModernMGO
	db  *Database
}

// ModernColl is one named collection handle.
type ModernColl struct {
	db   *ModernDB
	coll *Collection
}

// ModernQ accumulates a find's filter/sort/skip/limit/projection before
// execution, mirroring mgo's chained Query builder.
type ModernQ struct {
	coll       *ModernColl
	filter     primitive.D
	sort       primitive.D
	skip       int64
	limit      int64
	projection primitive.D
}

// docSource abstracts over a live snapshotting Cursor (Find) and a plain
// materialized document slice (Aggregate, whose results may have no
// corresponding stored record to re-read), so ModernIt can decode from
// either uniformly.
type docSource interface {
	next() (primitive.D, bool)
	lastErr() error
	close()
}

type cursorSource struct{ cur *Cursor }

func (s *cursorSource) next() (primitive.D, bool) { return s.cur.Document() }
func (s *cursorSource) lastErr() error            { return s.cur.Err() }
func (s *cursorSource) close()                    { s.cur.Close() }

type sliceSource struct {
	docs []primitive.D
	pos  int
}

func (s *sliceSource) next() (primitive.D, bool) {
	if s.pos >= len(s.docs) {
		return nil, false
	}
	d := s.docs[s.pos]
	s.pos++
	return d, true
}
func (s *sliceSource) lastErr() error { return nil }
func (s *sliceSource) close()         {}

// ModernIt decodes documents drawn from a docSource into the caller's target
// type on demand.
type ModernIt struct {
	src docSource
	err error
}

// ModernPipe accumulates an aggregation pipeline before execution.
type ModernPipe struct {
	collection *ModernColl
	pipeline   interface{}
}

// ModernBulk wraps a Bulk, accepting the same loosely-typed documents the
// legacy API does and converting them once at enqueue time.
type ModernBulk struct {
	collection *ModernColl
	bulk       *Bulk
}
