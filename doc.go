// Package mangodb is an in-process, MongoDB-wire-compatible document
// database: collection CRUD, cursor iteration, aggregation pipelines,
// secondary indexes (including geospatial), and bulk write semantics,
// built directly on go.mongodb.org/mongo-driver/bson/primitive as the
// engine's value vocabulary rather than a bespoke BSON type system.
package mangodb
