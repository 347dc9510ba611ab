package document

import "log/slog"

// WithLogger sets the logger that reports stored fields dropped while
// rebuilding objects.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// Option configures the builder through the functional options pattern.
type Option func(*Builder)
