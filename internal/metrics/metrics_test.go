package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptsignal/pkg/signal"
)

var _ signal.MetricCollector = (*Metrics)(nil)

func TestNewMetrics(t *testing.T) {
	got1, err := NewMetrics()
	require.NoError(t, err)

	got2, err := NewMetrics()
	require.NoError(t, err)

	assert.Equal(t, fmt.Sprintf("%p", got1), fmt.Sprintf("%p", got2), "addr not equal")
}

func TestRegister_Duplicate(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := Register(reg)
	require.NoError(t, err)

	_, err = Register(reg)
	assert.Error(t, err)
}

func TestMetrics_ListenersSet(t *testing.T) {
	m := newMetrics()

	m.ListenersSet("welcome", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.listeners.WithLabelValues("welcome")))

	m.ListenersSet("welcome", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listeners.WithLabelValues("welcome")))
}

func TestMetrics_ListenerFailureInc(t *testing.T) {
	m := newMetrics()

	m.ListenerFailureInc("welcome")
	m.ListenerFailureInc("welcome")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.listenerFailures.WithLabelValues("welcome")))
}

func TestMetrics_DurationObserve(t *testing.T) {
	type args struct {
		signal  string
		isError bool
		since   time.Duration
	}
	tests := []struct {
		name string
		args args
	}{
		{name: "ok", args: args{signal: "a", since: time.Millisecond}},
		{name: "error", args: args{signal: "b", isError: true, since: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMetrics()
			m.FireDurationObserve(tt.args.signal, tt.args.isError, tt.args.since)
			m.WaitDurationObserve(tt.args.signal, tt.args.since)

			assert.Equal(t, 1, testutil.CollectAndCount(m.fireDuration))
			assert.Equal(t, 1, testutil.CollectAndCount(m.waitDuration))
		})
	}
}

func TestMetrics_WithSignal(t *testing.T) {
	m := newMetrics()

	s, err := signal.NewSync[int](signal.WithName("counter"), signal.WithMetrics(m))
	require.NoError(t, err)

	conn := s.Connect(func(_ context.Context, _ int) {})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listeners.WithLabelValues("counter")))

	s.Fire(context.Background(), 1)
	assert.Equal(t, 1, testutil.CollectAndCount(m.fireDuration))

	conn.Disconnect()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.listeners.WithLabelValues("counter")))
}
