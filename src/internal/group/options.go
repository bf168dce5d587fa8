// FILE: logthrottle/src/internal/group/options.go
package group

import "time"

// Option customizes registry and state construction
type Option func(*options)

type options struct {
	clock func() time.Time
}

// WithClock overrides the time source used for rate windows
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
