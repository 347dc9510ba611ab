// Package query contains the default [domain.QueryCompiler] implementation.
package query

import (
	"log/slog"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// Compiler implements [domain.QueryCompiler].
type Compiler struct {
	timeGetter domain.TimeGetter
	logger     *slog.Logger
}

// NewCompiler returns a new implementation of [domain.QueryCompiler].
func NewCompiler(opts ...Option) domain.QueryCompiler {
	c := Compiler{
		timeGetter: timegetter.NewTimeGetter(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Key implements [domain.QueryCompiler].
func (c *Compiler) Key(fieldName string, schema *domain.Schema) string {
	if key, ok := fieldname.Builtin(fieldName); ok {
		return key
	}
	if f, ok := schema.Field(fieldName); ok && f.Type == domain.FieldPointer {
		return fieldname.Pointer(fieldName)
	}
	return fieldName
}

// Sort implements [domain.QueryCompiler].
func (c *Compiler) Sort(sort bson.D, schema *domain.Schema) bson.D {
	if sort == nil {
		return nil
	}
	res := make(bson.D, len(sort))
	for n, e := range sort {
		res[n] = bson.E{Key: c.Key(e.Key, schema), Value: e.Value}
	}
	return res
}

// Projection implements [domain.QueryCompiler]. The store id is excluded
// unless requested.
func (c *Compiler) Projection(keys []string, schema *domain.Schema) bson.M {
	if keys == nil {
		return nil
	}
	res := bson.M{}
	for _, k := range keys {
		if k == fieldname.ACL {
			res[fieldname.ReadPerm] = 1
			res[fieldname.WritePerm] = 1
			continue
		}
		res[c.Key(k, schema)] = 1
	}
	if _, ok := res[fieldname.ID]; !ok {
		res[fieldname.ID] = 0
	}
	return res
}
