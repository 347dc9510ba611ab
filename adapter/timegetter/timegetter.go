// Package timegetter contains the default [domain.TimeGetter] implementation.
package timegetter

import (
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
)

// TimeGetter implements [domain.TimeGetter].
type TimeGetter struct{}

// NewTimeGetter returns a new implementation of domain.TimeGetter.
func NewTimeGetter() domain.TimeGetter {
	return &TimeGetter{}
}

// GetTime implements [domain.TimeGetter].
func (t *TimeGetter) GetTime() time.Time {
	return time.Now()
}

// Fixed is a [domain.TimeGetter] stopped at a single instant. Relative time
// constraints compiled against it are reproducible.
type Fixed time.Time

// NewFixed returns a [domain.TimeGetter] that always returns t.
func NewFixed(t time.Time) domain.TimeGetter {
	return Fixed(t)
}

// GetTime implements [domain.TimeGetter].
func (f Fixed) GetTime() time.Time {
	return time.Time(f)
}
