package process

import "github.com/bec-ca/async"

// Option configures a Manager, mirroring the functional-options pattern
// used for async.Scheduler construction.
type Option interface {
	apply(*Manager)
}

type optionFunc func(*Manager)

func (f optionFunc) apply(m *Manager) { f(m) }

// WithLogger installs a structured logger for reap/dispatch diagnostics.
// Unconfigured, a Manager never logs.
func WithLogger(l *async.Logger) Option {
	return optionFunc(func(m *Manager) { m.logger = l })
}
