package memstore

import "github.com/vinicius-lino-figueiredo/docadapter/domain"

// Option configures a [Connector].
type Option func(*Connector)

// WithIDGenerator sets the generator of missing _id values.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(c *Connector) {
		c.idGenerator = g
	}
}

// WithTimeGetter sets the clock used to expire documents of TTL indexes.
func WithTimeGetter(t domain.TimeGetter) Option {
	return func(c *Connector) {
		c.timeGetter = t
	}
}
