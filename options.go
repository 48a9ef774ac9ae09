package async

import "time"

// schedulerOptions holds configuration resolved from Option values via
// the functional-options pattern.
type schedulerOptions struct {
	logger         *Logger
	metricsEnabled bool
	maxTimeout     time.Duration
	clock          func() time.Time
	allowMultiple  bool
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

type optionFunc func(*schedulerOptions) error

func (f optionFunc) applyScheduler(o *schedulerOptions) error { return f(o) }

// WithLogger installs a structured logger. Unconfigured, the scheduler
// never logs.
func WithLogger(l *Logger) Option {
	return optionFunc(func(o *schedulerOptions) error {
		o.logger = l
		return nil
	})
}

// WithMetrics enables turn, task, timer and I/O-event counters, readable
// via Scheduler.Metrics.
func WithMetrics(enabled bool) Option {
	return optionFunc(func(o *schedulerOptions) error {
		o.metricsEnabled = enabled
		return nil
	})
}

// WithMaxTimeout overrides the default 60s cap on how long a turn may
// block in the readiness primitive while waiting for the next timer.
func WithMaxTimeout(d time.Duration) Option {
	return optionFunc(func(o *schedulerOptions) error {
		o.maxTimeout = d
		return nil
	})
}

// WithClock overrides the monotonic clock source, for deterministic
// timer tests.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *schedulerOptions) error {
		o.clock = now
		return nil
	})
}

// withAllowMultiple disables the process-singleton check; used only by
// the package's own test suite, which creates many Schedulers in one
// process.
func withAllowMultiple() Option {
	return optionFunc(func(o *schedulerOptions) error {
		o.allowMultiple = true
		return nil
	})
}

func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		maxTimeout: 60 * time.Second,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = GlobalLogger()
	}
	return cfg, nil
}
