package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// ReadPreference names the replica set members a read may be served by.
type ReadPreference string

// Accepted read preferences. The empty value leaves the store default.
const (
	ReadPrimary            ReadPreference = "PRIMARY"
	ReadPrimaryPreferred   ReadPreference = "PRIMARY_PREFERRED"
	ReadSecondary          ReadPreference = "SECONDARY"
	ReadSecondaryPreferred ReadPreference = "SECONDARY_PREFERRED"
	ReadNearest            ReadPreference = "NEAREST"
)

// WithSkip sets the number of objects to skip.
func WithSkip(s int64) FindOption {
	return func(fo *FindOptions) {
		fo.Skip = s
	}
}

// WithLimit sets the maximum number of objects to return.
func WithLimit(l int64) FindOption {
	return func(fo *FindOptions) {
		fo.Limit = l
	}
}

// WithSort sets the sort order using application field names, 1 for
// ascending and -1 for descending.
func WithSort(s bson.D) FindOption {
	return func(fo *FindOptions) {
		fo.Sort = s
	}
}

// WithKeys restricts the returned fields.
func WithKeys(k ...string) FindOption {
	return func(fo *FindOptions) {
		fo.Keys = k
	}
}

// WithReadPreference sets the read preference of a find.
func WithReadPreference(r ReadPreference) FindOption {
	return func(fo *FindOptions) {
		fo.ReadPreference = r
	}
}

// WithHint forces an index.
func WithHint(h any) FindOption {
	return func(fo *FindOptions) {
		fo.Hint = h
	}
}

// WithCaseInsensitive makes string comparisons ignore case.
func WithCaseInsensitive(c bool) FindOption {
	return func(fo *FindOptions) {
		fo.CaseInsensitive = c
	}
}

// WithExplain returns the query plan instead of objects. Accepted values are
// true, false or one of the store verbosity modes.
func WithExplain(e any) FindOption {
	return func(fo *FindOptions) {
		fo.Explain = e
	}
}

// WithComment attaches a comment to the store operation.
func WithComment(c string) FindOption {
	return func(fo *FindOptions) {
		fo.Comment = c
	}
}

// FindOption configures a find through the functional options pattern.
type FindOption func(*FindOptions)

// FindOptions contains parameters for customizing a find.
type FindOptions struct {
	Skip            int64
	Limit           int64
	Sort            bson.D
	Keys            []string
	ReadPreference  ReadPreference
	Hint            any
	CaseInsensitive bool
	Explain         any
	Comment         string
}

// WithCountSkip sets the number of objects to skip when counting.
func WithCountSkip(s int64) CountOption {
	return func(co *CountOptions) {
		co.Skip = s
	}
}

// WithCountLimit caps the count.
func WithCountLimit(l int64) CountOption {
	return func(co *CountOptions) {
		co.Limit = l
	}
}

// WithCountReadPreference sets the read preference of a count.
func WithCountReadPreference(r ReadPreference) CountOption {
	return func(co *CountOptions) {
		co.ReadPreference = r
	}
}

// WithCountHint forces an index when counting.
func WithCountHint(h any) CountOption {
	return func(co *CountOptions) {
		co.Hint = h
	}
}

// WithCountComment attaches a comment to the count.
func WithCountComment(c string) CountOption {
	return func(co *CountOptions) {
		co.Comment = c
	}
}

// CountOption configures a count.
type CountOption func(*CountOptions)

// CountOptions contains parameters for customizing a count.
type CountOptions struct {
	Skip           int64
	Limit          int64
	ReadPreference ReadPreference
	Hint           any
	Comment        string
}

// WithAggregateReadPreference sets the read preference of an aggregation.
func WithAggregateReadPreference(r ReadPreference) AggregateOption {
	return func(ao *AggregateOptions) {
		ao.ReadPreference = r
	}
}

// WithAggregateHint forces an index in an aggregation.
func WithAggregateHint(h any) AggregateOption {
	return func(ao *AggregateOptions) {
		ao.Hint = h
	}
}

// WithAggregateExplain returns the aggregation plan.
func WithAggregateExplain(e bool) AggregateOption {
	return func(ao *AggregateOptions) {
		ao.Explain = e
	}
}

// WithAggregateComment attaches a comment to the aggregation.
func WithAggregateComment(c string) AggregateOption {
	return func(ao *AggregateOptions) {
		ao.Comment = c
	}
}

// AggregateOption configures an aggregation.
type AggregateOption func(*AggregateOptions)

// AggregateOptions contains parameters for customizing an aggregation.
type AggregateOptions struct {
	ReadPreference ReadPreference
	Hint           any
	Explain        bool
	Comment        string
}

// WithIndexName names the index instead of deriving the name from its keys.
func WithIndexName(n string) IndexOption {
	return func(io *IndexOptions) {
		io.Name = n
	}
}

// WithIndexCaseInsensitive builds the index with a case insensitive
// collation.
func WithIndexCaseInsensitive(c bool) IndexOption {
	return func(io *IndexOptions) {
		io.CaseInsensitive = c
	}
}

// WithIndexTTL expires documents after the given duration.
func WithIndexTTL(d time.Duration) IndexOption {
	return func(io *IndexOptions) {
		io.TTL = d
	}
}

// WithIndexSparse overrides the default sparse flag.
func WithIndexSparse(s bool) IndexOption {
	return func(io *IndexOptions) {
		io.Sparse = &s
	}
}

// WithIndexType sets the key kind of every field, 1 by default, or "text".
func WithIndexType(t any) IndexOption {
	return func(io *IndexOptions) {
		io.Type = t
	}
}

// IndexOption configures [StorageAdapter.EnsureIndex].
type IndexOption func(*IndexOptions)

// IndexOptions contains parameters for customizing an index.
type IndexOptions struct {
	Name            string
	CaseInsensitive bool
	TTL             time.Duration
	Sparse          *bool
	Type            any
}

// WithSession runs a write inside a transactional session.
func WithSession(s Session) WriteOption {
	return func(wo *WriteOptions) {
		wo.Session = s
	}
}

// WriteOption configures a write.
type WriteOption func(*WriteOptions)

// WriteOptions contains parameters for customizing a write.
type WriteOptions struct {
	Session Session
}

// StoreFindOptions are the native find parameters handed to a store client.
type StoreFindOptions struct {
	Skip            int64
	Limit           int64
	Sort            bson.D
	Projection      bson.M
	ReadPreference  ReadPreference
	Hint            any
	CaseInsensitive bool
	// Explain is a verbosity mode; empty runs the query.
	Explain string
	MaxTime time.Duration
	Comment string
}

// StoreCountOptions are the native count parameters.
type StoreCountOptions struct {
	Skip           int64
	Limit          int64
	ReadPreference ReadPreference
	Hint           any
	MaxTime        time.Duration
	Comment        string
}

// StoreAggregateOptions are the native aggregation parameters.
type StoreAggregateOptions struct {
	ReadPreference ReadPreference
	Hint           any
	Explain        bool
	MaxTime        time.Duration
	Comment        string
}
