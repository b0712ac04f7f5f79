package services

import (
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

type options struct {
	now    func() time.Time
	logger logging.Logger
}

// Option configures the services in this package.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: logging.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
