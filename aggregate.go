package mangodb

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JKershaw/mangodb/internal/agg"
)

// Aggregate compiles and runs pipeline against the collection's current
// documents (spec.md §4.5), resolving $lookup/$unionWith's foreign
// collection by name through the owning Database.
func (c *Collection) Aggregate(db *Database, pipeline interface{}) ([]primitive.D, error) {
	p, err := agg.Compile(pipeline)
	if err != nil {
		return nil, err
	}
	env := agg.Env{
		Resolve: func(name string) ([]primitive.D, error) {
			return db.Collection(name).AllDocuments(), nil
		},
	}
	return p.Run(env, c.AllDocuments())
}
