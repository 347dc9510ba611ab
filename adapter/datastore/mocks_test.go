package datastore

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
)

type connectorMock struct{ mock.Mock }

// Connect implements [domain.Connector].
func (c *connectorMock) Connect(ctx context.Context, uri string, options map[string]any) (domain.StoreClient, error) {
	call := c.Called(ctx, uri, options)
	client, _ := call.Get(0).(domain.StoreClient)
	return client, call.Error(1)
}

type clientMock struct{ mock.Mock }

// Collection implements [domain.StoreClient].
func (c *clientMock) Collection(name string) domain.StoreCollection {
	return c.Called(name).Get(0).(domain.StoreCollection)
}

// ListCollectionNames implements [domain.StoreClient].
func (c *clientMock) ListCollectionNames(ctx context.Context) ([]string, error) {
	call := c.Called(ctx)
	names, _ := call.Get(0).([]string)
	return names, call.Error(1)
}

// StartSession implements [domain.StoreClient].
func (c *clientMock) StartSession(ctx context.Context) (domain.Session, error) {
	call := c.Called(ctx)
	s, _ := call.Get(0).(domain.Session)
	return s, call.Error(1)
}

// Close implements [domain.StoreClient].
func (c *clientMock) Close(ctx context.Context) error {
	return c.Called(ctx).Error(0)
}

type sessionMock struct{ mock.Mock }

// ID implements [domain.Session].
func (s *sessionMock) ID() string { return s.Called().String(0) }

// Bind implements [domain.Session].
func (s *sessionMock) Bind(ctx context.Context) context.Context {
	return s.Called(ctx).Get(0).(context.Context)
}

// StartTransaction implements [domain.Session].
func (s *sessionMock) StartTransaction(ctx context.Context) error {
	return s.Called(ctx).Error(0)
}

// CommitTransaction implements [domain.Session].
func (s *sessionMock) CommitTransaction(ctx context.Context) error {
	return s.Called(ctx).Error(0)
}

// AbortTransaction implements [domain.Session].
func (s *sessionMock) AbortTransaction(ctx context.Context) error {
	return s.Called(ctx).Error(0)
}

// EndSession implements [domain.Session].
func (s *sessionMock) EndSession(ctx context.Context) { s.Called(ctx) }

type collectionMock struct{ mock.Mock }

// Name implements [domain.StoreCollection].
func (c *collectionMock) Name() string { return c.Called().String(0) }

// InsertOne implements [domain.StoreCollection].
func (c *collectionMock) InsertOne(ctx context.Context, doc bson.M) error {
	return c.Called(ctx, doc).Error(0)
}

// InsertMany implements [domain.StoreCollection].
func (c *collectionMock) InsertMany(ctx context.Context, docs []bson.M) error {
	return c.Called(ctx, docs).Error(0)
}

// Find implements [domain.StoreCollection].
func (c *collectionMock) Find(ctx context.Context, filter bson.M, opts domain.StoreFindOptions) ([]bson.M, error) {
	call := c.Called(ctx, filter, opts)
	docs, _ := call.Get(0).([]bson.M)
	return docs, call.Error(1)
}

// Count implements [domain.StoreCollection].
func (c *collectionMock) Count(ctx context.Context, filter bson.M, opts domain.StoreCountOptions) (int64, error) {
	call := c.Called(ctx, filter, opts)
	return call.Get(0).(int64), call.Error(1)
}

// EstimatedCount implements [domain.StoreCollection].
func (c *collectionMock) EstimatedCount(ctx context.Context, opts domain.StoreCountOptions) (int64, error) {
	call := c.Called(ctx, opts)
	return call.Get(0).(int64), call.Error(1)
}

// Distinct implements [domain.StoreCollection].
func (c *collectionMock) Distinct(ctx context.Context, field string, filter bson.M) ([]any, error) {
	call := c.Called(ctx, field, filter)
	values, _ := call.Get(0).([]any)
	return values, call.Error(1)
}

// Aggregate implements [domain.StoreCollection].
func (c *collectionMock) Aggregate(ctx context.Context, pipeline []bson.M, opts domain.StoreAggregateOptions) ([]bson.M, error) {
	call := c.Called(ctx, pipeline, opts)
	docs, _ := call.Get(0).([]bson.M)
	return docs, call.Error(1)
}

// UpdateOne implements [domain.StoreCollection].
func (c *collectionMock) UpdateOne(ctx context.Context, filter, update bson.M, upsert bool) (domain.UpdateResult, error) {
	call := c.Called(ctx, filter, update, upsert)
	return call.Get(0).(domain.UpdateResult), call.Error(1)
}

// UpdateMany implements [domain.StoreCollection].
func (c *collectionMock) UpdateMany(ctx context.Context, filter, update bson.M) (domain.UpdateResult, error) {
	call := c.Called(ctx, filter, update)
	return call.Get(0).(domain.UpdateResult), call.Error(1)
}

// FindOneAndUpdate implements [domain.StoreCollection].
func (c *collectionMock) FindOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) (bson.M, error) {
	call := c.Called(ctx, filter, update, upsert)
	doc, _ := call.Get(0).(bson.M)
	return doc, call.Error(1)
}

// FindOneAndDelete implements [domain.StoreCollection].
func (c *collectionMock) FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error) {
	call := c.Called(ctx, filter)
	doc, _ := call.Get(0).(bson.M)
	return doc, call.Error(1)
}

// BulkWrite implements [domain.StoreCollection].
func (c *collectionMock) BulkWrite(ctx context.Context, models []domain.WriteModel) (domain.UpdateResult, error) {
	call := c.Called(ctx, models)
	return call.Get(0).(domain.UpdateResult), call.Error(1)
}

// DeleteMany implements [domain.StoreCollection].
func (c *collectionMock) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	call := c.Called(ctx, filter)
	return call.Get(0).(int64), call.Error(1)
}

// CreateIndexes implements [domain.StoreCollection].
func (c *collectionMock) CreateIndexes(ctx context.Context, models []domain.IndexModel) error {
	return c.Called(ctx, models).Error(0)
}

// DropIndex implements [domain.StoreCollection].
func (c *collectionMock) DropIndex(ctx context.Context, name string) error {
	return c.Called(ctx, name).Error(0)
}

// DropIndexes implements [domain.StoreCollection].
func (c *collectionMock) DropIndexes(ctx context.Context) error {
	return c.Called(ctx).Error(0)
}

// ListIndexes implements [domain.StoreCollection].
func (c *collectionMock) ListIndexes(ctx context.Context) ([]bson.M, error) {
	call := c.Called(ctx)
	specs, _ := call.Get(0).([]bson.M)
	return specs, call.Error(1)
}

// Drop implements [domain.StoreCollection].
func (c *collectionMock) Drop(ctx context.Context) error {
	return c.Called(ctx).Error(0)
}
