// Package docadapter translates the operations of an application backend into
// requests to a MongoDB-style document store.
//
// Applications describe their data in terms of classes, typed fields,
// pointers between objects and permission lists. The adapter compiles
// predicates, updates and whole objects into the native document dialect,
// keeps a schema collection in step with class definitions and indexes, and
// rebuilds application objects from stored documents.
//
// The basic usage starts with creating a new [StorageAdapter], which can be
// done by calling [New].
package docadapter

import (
	"log/slog"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/datastore"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrObjectNotFound is returned when a delete matches no object.
	ErrObjectNotFound = domain.ErrObjectNotFound
	// ErrClassNotFound is returned by [StorageAdapter.GetClass] when the
	// class has no schema record.
	ErrClassNotFound = domain.ErrClassNotFound
	// ErrSessionEnded is returned when a finished transactional session is
	// used again.
	ErrSessionEnded = domain.ErrSessionEnded
)

// ErrValidation is returned for requests that can never succeed, such as
// invalid constraints or unknown read preferences.
type ErrValidation = domain.ErrValidation

// ErrUnsupported is returned for operators that are recognized but not
// available.
type ErrUnsupported = domain.ErrUnsupported

// ErrIntegrity is returned when stored data does not have the shape the
// schema declares.
type ErrIntegrity = domain.ErrIntegrity

// ErrDuplicateValue is returned when a write breaks a unique index. Field
// names the offending field when it can be told.
type ErrDuplicateValue = domain.ErrDuplicateValue

// ErrAuthorization is returned when the store rejects the credentials. The
// connection is reset before it is returned.
type ErrAuthorization = domain.ErrAuthorization

// ErrTransport wraps network failures. The connection is reset before it is
// returned.
type ErrTransport = domain.ErrTransport

// New creates a new [StorageAdapter] with the provided configuration options:
//
// - [WithURI]: sets the store uri. Its scheme picks the store client.
//
// - [WithCollectionPrefix]: sets the prefix of every class collection.
//
// - [WithStoreOptions]: sets free-form store options.
//
// - [WithMaxTime]: limits the server time of reads.
//
// - [WithLogger]: sets the logger.
//
// - [WithTimeGetter]: sets the clock relative times and timestamps use.
//
// - [WithConnector]: replaces the store client.
func New(options ...Option) (StorageAdapter, error) {
	return datastore.NewDatastore(options...)
}

// StorageAdapter is the caller-facing surface of the adapter. Every method
// connects on first use and is safe to call from multiple goroutines.
type StorageAdapter = domain.StorageAdapter

// Schema describes a class.
type Schema = domain.Schema

// Field describes one declared field of a class.
type Field = domain.Field

// FieldType is the declared kind of a field.
type FieldType = domain.FieldType

// CLP holds class-level permissions.
type CLP = domain.CLP

// IndexSpec is one entry of an index reconciliation request.
type IndexSpec = domain.IndexSpec

// Object is an application object.
type Object = domain.Object

// Query is an application predicate tree.
type Query = domain.Query

// Update is an application update document.
type Update = domain.Update

// BulkUpdate is one entry of [StorageAdapter.UpdateObjectsByBulk].
type BulkUpdate = domain.BulkUpdate

// Pointer references an object of another class.
type Pointer = domain.Pointer

// Date is a timestamp in ISO 8601 form.
type Date = domain.Date

// GeoPoint is a geographic coordinate.
type GeoPoint = domain.GeoPoint

// Increment adds Amount to a numeric field.
type Increment = domain.Increment

// Delete removes a field.
type Delete = domain.Delete

// Session is a transactional session.
type Session = domain.Session

// Connector opens store clients.
type Connector = domain.Connector

// TimeGetter supplies the current instant.
type TimeGetter = domain.TimeGetter

// ReadPreference selects the members reads are sent to.
type ReadPreference = domain.ReadPreference

// FindOption configures [StorageAdapter.Find].
type FindOption = domain.FindOption

// WithSkip skips the first s objects.
func WithSkip(s int64) FindOption {
	return domain.WithSkip(s)
}

// WithLimit returns at most l objects.
func WithLimit(l int64) FindOption {
	return domain.WithLimit(l)
}

// WithSort orders the objects by application field names. A negative value
// sorts descending.
func WithSort(s bson.D) FindOption {
	return domain.WithSort(s)
}

// WithKeys restricts the returned fields.
func WithKeys(k ...string) FindOption {
	return domain.WithKeys(k...)
}

// WithReadPreference sets the read preference.
func WithReadPreference(r ReadPreference) FindOption {
	return domain.WithReadPreference(r)
}

// WithCaseInsensitive matches strings without regard to case.
func WithCaseInsensitive(c bool) FindOption {
	return domain.WithCaseInsensitive(c)
}

// WriteOption configures writes.
type WriteOption = domain.WriteOption

// WithSession runs a write inside the transaction of s.
func WithSession(s Session) WriteOption {
	return domain.WithSession(s)
}

// Option configures [New] through the functional options pattern.
type Option = datastore.Option

// WithURI sets the store uri.
func WithURI(u string) Option {
	return datastore.WithURI(u)
}

// WithCollectionPrefix sets the prefix of every class collection.
func WithCollectionPrefix(p string) Option {
	return datastore.WithCollectionPrefix(p)
}

// WithStoreOptions sets free-form store options.
func WithStoreOptions(o map[string]any) Option {
	return datastore.WithStoreOptions(o)
}

// WithMaxTime limits the server time of reads.
func WithMaxTime(t time.Duration) Option {
	return datastore.WithMaxTime(t)
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return datastore.WithLogger(l)
}

// WithTimeGetter sets the clock.
func WithTimeGetter(t TimeGetter) Option {
	return datastore.WithTimeGetter(t)
}

// WithConnector replaces the store client.
func WithConnector(c Connector) Option {
	return datastore.WithConnector(c)
}
