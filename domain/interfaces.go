// Package domain contains the types shared by every adapter component: the
// application data model, the opaque store client contract, options and
// errors.
package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// TimeGetter supplies the current instant. Relative time constraints and
// generated timestamps are resolved against it.
type TimeGetter interface {
	GetTime() time.Time
}

// IDGenerator produces random object ids.
type IDGenerator interface {
	GenerateID(l int) (string, error)
}

// Decoder copies a document into a Go value.
type Decoder interface {
	Decode(source any, target any) error
}

// Connector opens store clients.
type Connector interface {
	// Connect opens a client for uri. Options are driver specific.
	Connect(ctx context.Context, uri string, options map[string]any) (StoreClient, error)
}

// StoreClient is an open connection to a document store database.
type StoreClient interface {
	Collection(name string) StoreCollection
	ListCollectionNames(ctx context.Context) ([]string, error)
	StartSession(ctx context.Context) (Session, error)
	Close(ctx context.Context) error
}

// Session is a transactional session handle. Operations join the session when
// run with a context returned by Bind.
type Session interface {
	ID() string
	Bind(ctx context.Context) context.Context
	StartTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	EndSession(ctx context.Context)
}

// StoreCollection operates on one collection using store-native documents
// only.
type StoreCollection interface {
	Name() string
	InsertOne(ctx context.Context, doc bson.M) error
	InsertMany(ctx context.Context, docs []bson.M) error
	Find(ctx context.Context, filter bson.M, opts StoreFindOptions) ([]bson.M, error)
	Count(ctx context.Context, filter bson.M, opts StoreCountOptions) (int64, error)
	EstimatedCount(ctx context.Context, opts StoreCountOptions) (int64, error)
	Distinct(ctx context.Context, field string, filter bson.M) ([]any, error)
	Aggregate(ctx context.Context, pipeline []bson.M, opts StoreAggregateOptions) ([]bson.M, error)
	UpdateOne(ctx context.Context, filter, update bson.M, upsert bool) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update bson.M) (UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) (bson.M, error)
	FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error)
	BulkWrite(ctx context.Context, models []WriteModel) (UpdateResult, error)
	DeleteMany(ctx context.Context, filter bson.M) (int64, error)
	CreateIndexes(ctx context.Context, models []IndexModel) error
	DropIndex(ctx context.Context, name string) error
	DropIndexes(ctx context.Context) error
	ListIndexes(ctx context.Context) ([]bson.M, error)
	Drop(ctx context.Context) error
}

// UpdateResult summarizes an update.
type UpdateResult struct {
	Matched  int64
	Modified int64
	Upserted int64
}

// WriteModel is one update of a bulk write.
type WriteModel struct {
	Filter bson.M
	Update bson.M
	Upsert bool
}

// IndexModel describes an index to create.
type IndexModel struct {
	Name   string
	Keys   bson.D
	Unique bool
	Sparse bool
	// ExpireAfter enables TTL expiry when positive.
	ExpireAfter time.Duration
	// Collation is an optional collation document.
	Collation bson.M
	// Background is kept for stores that still honor it.
	Background bool
}

// StorageAdapter is the caller-facing surface: schema maintenance, object
// CRUD and transactional sessions, all expressed in the application model.
type StorageAdapter interface {
	Connect(ctx context.Context) error
	Shutdown(ctx context.Context) error

	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, className string, schema Schema) (Schema, error)
	GetClass(ctx context.Context, className string) (Schema, error)
	GetAllClasses(ctx context.Context) ([]Schema, error)
	DeleteClass(ctx context.Context, className string) error
	DeleteAllClasses(ctx context.Context, fast bool) error
	AddFieldIfNotExists(ctx context.Context, className, fieldName string, field Field) error
	UpdateFieldOptions(ctx context.Context, className, fieldName string, field Field) error
	DeleteFields(ctx context.Context, className string, schema Schema, fieldNames []string) error
	SetClassLevelPermissions(ctx context.Context, className string, clp CLP) error
	SetIndexesWithSchemaFormat(ctx context.Context, className string, submitted map[string]IndexSpec, existing map[string]bson.D, fields map[string]Field) error
	SetIndexesFromStore(ctx context.Context, className string) error
	UpdateSchemaWithIndexes(ctx context.Context) error

	CreateObject(ctx context.Context, className string, schema Schema, object Object, opts ...WriteOption) error
	CreateObjects(ctx context.Context, className string, schema Schema, objects []Object, opts ...WriteOption) error
	Find(ctx context.Context, className string, schema Schema, query Query, opts ...FindOption) ([]Object, error)
	Count(ctx context.Context, className string, schema Schema, query Query, opts ...CountOption) (int64, error)
	Distinct(ctx context.Context, className string, schema Schema, query Query, fieldName string) ([]any, error)
	Aggregate(ctx context.Context, className string, schema Schema, pipeline []bson.M, opts ...AggregateOption) ([]Object, error)
	UpdateObjectsByQuery(ctx context.Context, className string, schema Schema, query Query, update Update, opts ...WriteOption) (UpdateResult, error)
	FindOneAndUpdate(ctx context.Context, className string, schema Schema, query Query, update Update, opts ...WriteOption) (Object, error)
	UpdateObjectsByBulk(ctx context.Context, className string, schema Schema, ops []BulkUpdate, opts ...WriteOption) (UpdateResult, error)
	UpsertOneObject(ctx context.Context, className string, schema Schema, query Query, update Update, opts ...WriteOption) error
	DeleteObjectsByQuery(ctx context.Context, className string, schema Schema, query Query, opts ...WriteOption) error

	EnsureIndex(ctx context.Context, className string, schema Schema, fieldNames []string, opts ...IndexOption) error
	EnsureUniqueness(ctx context.Context, className string, schema Schema, fieldNames []string) error
	CreateIndex(ctx context.Context, className string, keys bson.D) error
	CreateIndexes(ctx context.Context, className string, models []IndexModel) error
	GetIndexes(ctx context.Context, className string) ([]bson.M, error)
	DropIndex(ctx context.Context, className, name string) error
	DropAllIndexes(ctx context.Context, className string) error

	CreateTransactionalSession(ctx context.Context) (Session, error)
	CommitTransactionalSession(ctx context.Context, session Session) error
	AbortTransactionalSession(ctx context.Context, session Session) error
}

// BulkUpdate is one entry of [StorageAdapter.UpdateObjectsByBulk].
type BulkUpdate struct {
	Query  Query
	Update Update
	Upsert bool
}

// QueryCompiler translates application predicates into native filters.
type QueryCompiler interface {
	// Where compiles a whole predicate tree. Count selects the geo
	// operators usable by counts.
	Where(className string, query Query, schema *Schema, count bool) (bson.M, error)
	// Constraint compiles the operators applied to one field. The boolean
	// result is false when constraint is not an operator document.
	Constraint(constraint any, field *Field, count bool) (bson.M, bool, error)
	// Key returns the store key of an application field.
	Key(fieldName string, schema *Schema) string
	Sort(sort bson.D, schema *Schema) bson.D
	Projection(keys []string, schema *Schema) bson.M
	// Pipeline rewrites aggregation stages. The boolean result tells if the
	// pipeline groups by a pointer field.
	Pipeline(pipeline []bson.M, schema *Schema) ([]bson.M, bool, error)
}

// UpdateCompiler translates application updates into native update
// documents.
type UpdateCompiler interface {
	Update(className string, update Update, schema *Schema) (bson.M, error)
}

// DocumentBuilder converts whole objects between the application and the
// store.
type DocumentBuilder interface {
	ForCreate(className string, object Object, schema *Schema) (bson.M, error)
	ToObject(className string, doc bson.M, schema *Schema) (Object, error)
}
