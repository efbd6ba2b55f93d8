// modern_session.go - session/database/collection navigation for the legacy
// API facade.
package mangodb

import (
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/command"
)

// DialModernMGO opens an in-process ModernMGO "session". There is no network
// connection to establish — mongoURL is parsed only for its path component,
// which names the default database, matching how a reference client derives
// one from a connection string.
func DialModernMGO(mongoURL string) (*ModernMGO, error) {
	dbName := "test"
	if parsed, err := url.Parse(mongoURL); err == nil && parsed.Path != "" {
		if trimmed := strings.TrimPrefix(parsed.Path, "/"); trimmed != "" {
			dbName = trimmed
		}
	}
	return &ModernMGO{dbs: map[string]*Database{}, defaultDB: dbName}, nil
}

// Close releases the session. An in-process engine holds no external
// resources, so Close does nothing and the session stays usable.
func (m *ModernMGO) Close() {}

// Copy returns a session sharing the same database registry (mgo API
// compatible) — there is no connection pool to fork here.
func (m *ModernMGO) Copy() *ModernMGO {
	return &ModernMGO{dbs: m.dbs, defaultDB: m.defaultDB}
}

// Clone behaves like Copy for this engine.
func (m *ModernMGO) Clone() *ModernMGO { return m.Copy() }

// Ping always succeeds: there is no connection to probe.
func (m *ModernMGO) Ping() error { return nil }

// DB returns a database handle, opening it on first use.
func (m *ModernMGO) DB(name string) *ModernDB {
	if name == "" {
		name = m.defaultDB
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.dbs[name]
	if !ok {
		db = NewDatabase(name)
		m.dbs[name] = db
	}
	return &ModernDB{mgo: m, db: db}
}

// C returns a collection handle.
func (db *ModernDB) C(name string) *ModernColl {
	return &ModernColl{db: db, coll: db.db.Collection(name)}
}

// DropDatabase drops every collection in the database (mgo API compatible).
func (db *ModernDB) DropDatabase() error {
	for _, name := range db.db.ListCollectionNames() {
		db.db.DropCollection(name)
	}
	db.mgo.mu.Lock()
	delete(db.mgo.dbs, db.db.Name())
	db.mgo.mu.Unlock()
	return nil
}

// Run executes an arbitrary wire-shaped command against this database via
// internal/command, decoding the reply into result (mgo API compatible).
func (db *ModernDB) Run(cmd, result interface{}) error {
	doc, err := toDoc(cmd)
	if err != nil {
		return err
	}
	name, ok := commandName(doc)
	if !ok {
		return &QueryError{Message: "Run: no recognized command name in document"}
	}
	reply, err := command.Execute(db.db, name, doc)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return decodeInto(reply, result)
}

// Run executes cmd against the admin pseudo-database when adminFlag is true
// or the string "admin", otherwise against the session's default database
// (mgo API compatible 3-argument Run).
func (m *ModernMGO) Run(adminFlag interface{}, cmd, result interface{}) error {
	dbName := m.defaultDB
	switch v := adminFlag.(type) {
	case bool:
		if v {
			dbName = "admin"
		}
	case string:
		if v == "admin" {
			dbName = "admin"
		}
	}
	return m.DB(dbName).Run(cmd, result)
}

var knownCommands = []string{
	"find", "aggregate", "insert", "update", "delete", "findAndModify",
	"findandmodify", "createIndexes", "dropIndexes", "listIndexes",
	"count", "countDocuments",
}

func commandName(doc primitive.D) (string, bool) {
	for _, e := range doc {
		for _, name := range knownCommands {
			if e.Key == name {
				return name, true
			}
		}
	}
	return "", false
}
