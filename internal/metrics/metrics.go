package metrics

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

//nolint:gochecknoglobals // singleton object.
var (
	_metrics     *Metrics
	_metricsOnce sync.Once
	_metricsErr  error
)

// Metrics is the prometheus implementation of signal.MetricCollector.
type Metrics struct {
	fireDuration     *prometheus.SummaryVec
	waitDuration     *prometheus.SummaryVec
	listeners        *prometheus.GaugeVec
	listenerFailures *prometheus.CounterVec
}

// NewMetrics returns the process-wide collector registered on the default
// prometheus registry.
func NewMetrics() (*Metrics, error) {
	_metricsOnce.Do(func() {
		_metrics, _metricsErr = Register(prometheus.DefaultRegisterer)
	})

	return _metrics, _metricsErr
}

// Register creates a collector and registers its vectors on reg.
func Register(reg prometheus.Registerer) (*Metrics, error) {
	m := newMetrics()

	for name, c := range map[string]prometheus.Collector{
		"fire_duration":     m.fireDuration,
		"wait_duration":     m.waitDuration,
		"listeners":         m.listeners,
		"listener_failures": m.listenerFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register '%s' metric: %w", name, err)
		}
	}

	return m, nil
}

func newMetrics() *Metrics {
	return &Metrics{
		fireDuration:     fireDurationSummaryVec(),
		waitDuration:     waitDurationSummaryVec(),
		listeners:        listenersGaugeVec(),
		listenerFailures: listenerFailuresCounterVec(),
	}
}

func (m *Metrics) ListenersSet(signal string, count int) {
	m.listeners.With(prometheus.Labels{"signal": signal}).Set(float64(count))
}

func (m *Metrics) ListenerFailureInc(signal string) {
	m.listenerFailures.With(prometheus.Labels{"signal": signal}).Inc()
}

func (m *Metrics) FireDurationObserve(signal string, isError bool, since time.Duration) {
	m.fireDuration.With(prometheus.Labels{
		"signal":   signal,
		"is_error": strconv.FormatBool(isError),
	}).Observe(float64(since) / float64(time.Millisecond))
}

func (m *Metrics) WaitDurationObserve(signal string, since time.Duration) {
	m.waitDuration.With(prometheus.Labels{"signal": signal}).Observe(float64(since) / float64(time.Millisecond))
}

//nolint:promlinter // skip milliseconds.
func fireDurationSummaryVec() *prometheus.SummaryVec {
	return prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "signal_fire_duration_milliseconds",
			Help:       "Summary of time spent dispatching a fire to all listeners (milliseconds)",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}, //nolint:gomnd // it's ok
		},
		[]string{"signal", "is_error"},
	)
}

//nolint:promlinter // skip milliseconds.
func waitDurationSummaryVec() *prometheus.SummaryVec {
	return prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "signal_wait_duration_milliseconds",
			Help:       "Summary of time spent blocked in Wait until the next fire (milliseconds)",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}, //nolint:gomnd // it's ok
		},
		[]string{"signal"},
	)
}

func listenersGaugeVec() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signal_listeners",
			Help: "Number of connected listeners",
		},
		[]string{"signal"},
	)
}

func listenerFailuresCounterVec() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_listener_failures_total",
			Help: "Listener failures recovered during dispatch",
		},
		[]string{"signal"},
	)
}
