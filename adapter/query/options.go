package query

import (
	"log/slog"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
)

// WithTimeGetter sets the clock relative time constraints are resolved
// against.
func WithTimeGetter(t domain.TimeGetter) Option {
	return func(c *Compiler) {
		c.timeGetter = t
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// Option configures the compiler through the functional options pattern.
type Option func(*Compiler)
