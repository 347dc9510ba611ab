package mongostore

import "github.com/vinicius-lino-figueiredo/docadapter/domain"

// WithDecoder sets the decoder of the driver option map.
func WithDecoder(d domain.Decoder) Option {
	return func(c *Connector) {
		c.decoder = d
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Connector)
