package datastore

import (
	"log/slog"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
)

// WithURI sets the store uri. The scheme selects the default connector:
// "mongodb" and "mongodb+srv" use the MongoDB driver and "memory" the
// embedded store.
func WithURI(u string) Option {
	return func(d *Datastore) {
		d.uri = u
	}
}

// WithConnector replaces the connector chosen from the uri scheme.
func WithConnector(c domain.Connector) Option {
	return func(d *Datastore) {
		d.connector = c
	}
}

// WithCollectionPrefix sets the prefix prepended to every collection name.
func WithCollectionPrefix(p string) Option {
	return func(d *Datastore) {
		d.collectionPrefix = p
	}
}

// WithStoreOptions sets the free-form store options. "maxTimeMS" and
// "disableIndexFieldValidation" are read by the adapter and every other key
// is handed to the connector.
func WithStoreOptions(o map[string]any) Option {
	return func(d *Datastore) {
		d.storeOptions = o
	}
}

// WithMaxTime limits the server time of finds, counts and aggregations. The
// "maxTimeMS" store option overrides it.
func WithMaxTime(t time.Duration) Option {
	return func(d *Datastore) {
		d.maxTime = t
	}
}

// WithLogger sets the logger of the adapter and of the default compilers.
func WithLogger(l *slog.Logger) Option {
	return func(d *Datastore) {
		d.logger = l
	}
}

// WithTimeGetter sets the clock used to resolve relative time constraints.
func WithTimeGetter(t domain.TimeGetter) Option {
	return func(d *Datastore) {
		d.timeGetter = t
	}
}

// WithDecoder sets the decoder of the store options.
func WithDecoder(dec domain.Decoder) Option {
	return func(d *Datastore) {
		d.decoder = dec
	}
}

// WithQueryCompiler replaces the default query compiler.
func WithQueryCompiler(c domain.QueryCompiler) Option {
	return func(d *Datastore) {
		d.queryCompiler = c
	}
}

// WithUpdateCompiler replaces the default update compiler.
func WithUpdateCompiler(c domain.UpdateCompiler) Option {
	return func(d *Datastore) {
		d.updateCompiler = c
	}
}

// WithDocumentBuilder replaces the default document builder.
func WithDocumentBuilder(b domain.DocumentBuilder) Option {
	return func(d *Datastore) {
		d.documentBuilder = b
	}
}

// Option configures the datastore through the functional options pattern.
type Option func(*Datastore)
