package signal

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"scriptsignal/pkg/task"
)

// MetricCollector receives signal measurements. internal/metrics provides a
// prometheus implementation.
type MetricCollector interface {
	ListenersSet(signal string, count int)
	ListenerFailureInc(signal string)
	FireDurationObserve(signal string, isError bool, since time.Duration)
	WaitDurationObserve(signal string, since time.Duration)
}

// config holds all configuration for a signal.
type config struct {
	name    string
	logger  zerolog.Logger
	isolate bool
	onError func(error)
	metrics MetricCollector
	tracer  trace.Tracer
	worker  task.Pool
}

// Option defines the functional option type.
type Option func(*config) error

const defaultName = "signal"

// WithName sets the name used in logs, metrics and spans.
func WithName(name string) Option {
	return func(c *config) error {
		if name == "" {
			return ErrEmptyName
		}
		c.name = name
		return nil
	}
}

// WithLogger sets the logger. Signals are silent by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// WithIsolation recovers listener panics one by one instead of letting the
// first one abort the fire. Recovered failures are passed to the error
// handler and waiters are still woken.
func WithIsolation() Option {
	return func(c *config) error {
		c.isolate = true
		return nil
	}
}

// WithErrorHandler sets the callback receiving listener failures recovered
// in isolated or asynchronous dispatch.
func WithErrorHandler(fn func(error)) Option {
	return func(c *config) error {
		if fn == nil {
			return errors.New("error handler can't be nil")
		}
		c.onError = fn
		return nil
	}
}

// WithMetrics sets the metric collector.
func WithMetrics(collector MetricCollector) Option {
	return func(c *config) error {
		if collector == nil {
			return errors.New("metric collector can't be nil")
		}
		c.metrics = collector
		return nil
	}
}

// WithTracer makes Fire start a span for every non-empty dispatch.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) error {
		if tracer == nil {
			return errors.New("tracer can't be nil")
		}
		c.tracer = tracer
		return nil
	}
}

// WithWorker sets the pool AsyncSignal dispatches on. The caller keeps
// ownership of the pool. Ignored by synchronous signals.
func WithWorker(w task.Pool) Option {
	return func(c *config) error {
		if w == nil {
			return errors.New("worker can't be nil")
		}
		c.worker = w
		return nil
	}
}

func applyOptions(opts ...Option) (*config, error) {
	c := &config{
		name:    defaultName,
		logger:  zerolog.Nop(),
		metrics: nopCollector{},
		tracer:  noop.NewTracerProvider().Tracer(""),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return c, nil
}

type nopCollector struct{}

func (nopCollector) ListenersSet(string, int)                        {}
func (nopCollector) ListenerFailureInc(string)                       {}
func (nopCollector) FireDurationObserve(string, bool, time.Duration) {}
func (nopCollector) WaitDurationObserve(string, time.Duration)       {}
