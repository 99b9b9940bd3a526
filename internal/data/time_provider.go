package data

import "time"

// TimeProvider supplies the clock repositories stamp rows with.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider reads the system clock in UTC.
type RealTimeProvider struct{}

// Now returns the current time.
func (RealTimeProvider) Now() time.Time { return time.Now().UTC() }

// FixedTimeProvider always returns the same instant. Tests use it to pin created_at.
type FixedTimeProvider struct {
	At time.Time
}

// NewFixedTimeProvider returns a provider frozen at t.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{At: t}
}

// Now returns the pinned instant.
func (f *FixedTimeProvider) Now() time.Time { return f.At }
