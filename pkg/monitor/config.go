package monitor

import (
	"log/slog"
	"time"

	"github.com/teslashibe/crywatch/pkg/camera"
	"github.com/teslashibe/crywatch/pkg/scheduler"
)

// Defaults for the capture loop.
const (
	DefaultInterval    = time.Second
	DefaultTickTimeout = 10 * time.Second
)

// Config holds controller configuration.
type Config struct {
	// Interval is the fixed tick period.
	Interval time.Duration

	// TickTimeout bounds one capture plus upload.
	TickTimeout time.Duration

	// Capture is what each tick asks the camera for.
	Capture camera.CaptureOptions

	// Scheduler drives ticks.
	Scheduler scheduler.Scheduler

	// Logger receives every tick failure.
	Logger *slog.Logger
}

// Option is a functional option for configuring the controller.
type Option func(*Config)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(c *Config) { c.Interval = d }
}

// WithTickTimeout sets the per-tick deadline.
func WithTickTimeout(d time.Duration) Option {
	return func(c *Config) { c.TickTimeout = d }
}

// WithCaptureOptions overrides the per-tick capture options.
func WithCaptureOptions(o camera.CaptureOptions) Option {
	return func(c *Config) { c.Capture = o }
}

// WithScheduler sets the scheduler. Tests pass a scheduler.Manual.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(c *Config) { c.Scheduler = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns a one-second loop on the wall clock.
func DefaultConfig() *Config {
	return &Config{
		Interval:    DefaultInterval,
		TickTimeout: DefaultTickTimeout,
		Capture:     camera.StreamingCapture,
		Scheduler:   scheduler.NewTicker(),
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = DefaultTickTimeout
	}
	if c.Scheduler == nil {
		c.Scheduler = scheduler.NewTicker()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
