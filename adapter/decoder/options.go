package decoder

// WithWeakTypes allows loose conversions such as "1" to 1 or 1 to true.
// Values read from environment variables and flags need it.
func WithWeakTypes(w bool) Option {
	return func(d *Decoder) {
		d.weak = w
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Decoder)
