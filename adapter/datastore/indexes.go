package datastore

import (
	"context"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// EnsureIndex implements [domain.StorageAdapter]. Indexes are sparse unless
// told otherwise.
func (d *Datastore) EnsureIndex(ctx context.Context, className string, s domain.Schema, fieldNames []string, opts ...domain.IndexOption) error {
	var io domain.IndexOptions
	for _, opt := range opts {
		opt(&io)
	}
	var kind any = 1
	if io.Type != nil {
		kind = io.Type
	}
	model := domain.IndexModel{
		Name:        io.Name,
		Keys:        d.indexKeys(className, s, fieldNames, kind),
		Sparse:      true,
		ExpireAfter: io.TTL,
		Background:  true,
	}
	if io.Sparse != nil {
		model.Sparse = *io.Sparse
	}
	if io.CaseInsensitive {
		model.Collation = caseInsensitiveCollation()
	}
	return d.CreateIndexes(ctx, className, []domain.IndexModel{model})
}

// EnsureUniqueness implements [domain.StorageAdapter]. Objects lacking the
// fields are not constrained.
func (d *Datastore) EnsureUniqueness(ctx context.Context, className string, s domain.Schema, fieldNames []string) error {
	return d.CreateIndexes(ctx, className, []domain.IndexModel{{
		Keys:       d.indexKeys(className, s, fieldNames, 1),
		Unique:     true,
		Sparse:     true,
		Background: true,
	}})
}

func (d *Datastore) indexKeys(className string, s domain.Schema, fieldNames []string, kind any) bson.D {
	sch := storeSchema(className, s)
	keys := make(bson.D, len(fieldNames))
	for n, name := range fieldNames {
		keys[n] = bson.E{Key: d.queryCompiler.Key(name, sch), Value: kind}
	}
	return keys
}

// CreateIndex implements [domain.StorageAdapter].
func (d *Datastore) CreateIndex(ctx context.Context, className string, keys bson.D) error {
	return d.CreateIndexes(ctx, className, []domain.IndexModel{{Keys: keys, Background: true}})
}

// CreateIndexes implements [domain.StorageAdapter].
func (d *Datastore) CreateIndexes(ctx context.Context, className string, models []domain.IndexModel) error {
	coll, err := d.collection(ctx, className)
	if err != nil {
		return err
	}
	return d.handleError(ctx, coll.CreateIndexes(ctx, models))
}

// GetIndexes implements [domain.StorageAdapter].
func (d *Datastore) GetIndexes(ctx context.Context, className string) ([]bson.M, error) {
	coll, err := d.collection(ctx, className)
	if err != nil {
		return nil, err
	}
	specs, err := coll.ListIndexes(ctx)
	return specs, d.handleError(ctx, err)
}

// DropIndex implements [domain.StorageAdapter].
func (d *Datastore) DropIndex(ctx context.Context, className, name string) error {
	coll, err := d.collection(ctx, className)
	if err != nil {
		return err
	}
	return d.handleError(ctx, coll.DropIndex(ctx, name))
}

// DropAllIndexes implements [domain.StorageAdapter]. The _id index is kept.
func (d *Datastore) DropAllIndexes(ctx context.Context, className string) error {
	coll, err := d.collection(ctx, className)
	if err != nil {
		return err
	}
	return d.handleError(ctx, coll.DropIndexes(ctx))
}
