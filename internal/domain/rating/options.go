package rating

import "time"

// Option configures an Updater, and through it an Engine.
type Option func(*Updater)

// WithClock sets the time source used for registration and for results that
// carry no RunAt.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) {
		if now != nil {
			u.now = now
		}
	}
}

// WithStrictDuplicates makes a repeated race an error instead of a no-op.
func WithStrictDuplicates(strict bool) Option {
	return func(u *Updater) {
		u.strict = strict
	}
}
