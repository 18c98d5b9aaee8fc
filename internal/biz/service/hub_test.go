package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptsignal/pkg/ratelimit"
	"scriptsignal/pkg/signal"
)

func TestHub_Signal(t *testing.T) {
	hub := NewHub(nil, 0, signal.WithIsolation())
	defer hub.Close()

	s1, err := hub.Signal("welcome")
	require.NoError(t, err)
	s2, err := hub.Signal("welcome")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, "welcome", s1.Name())

	_, err = hub.Signal("")
	assert.ErrorIs(t, err, signal.ErrEmptyName)
}

func TestHub_FireAndSubscribe(t *testing.T) {
	hub := NewHub(nil, 0)
	defer hub.Close()

	sub, err := hub.Subscribe("welcome", 4)
	require.NoError(t, err)

	n, err := hub.Fire(context.Background(), "welcome", json.RawMessage(`"Blue"`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case <-sub.Ready():
	case <-time.After(time.Second):
		t.Fatal("subscriber not notified")
	}

	msgs := sub.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, "welcome", msgs[0].Signal)
	assert.JSONEq(t, `"Blue"`, string(msgs[0].Payload))

	sub.Close()
	assert.False(t, sub.Connected())

	n, err = hub.Fire(context.Background(), "welcome", json.RawMessage(`"Purple"`))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, sub.Drain())
}

func TestHub_SubscriberDropsOldest(t *testing.T) {
	hub := NewHub(nil, 0)
	defer hub.Close()

	sub, err := hub.Subscribe("burst", 2)
	require.NoError(t, err)

	for _, p := range []string{`1`, `2`, `3`} {
		_, err := hub.Fire(context.Background(), "burst", json.RawMessage(p))
		require.NoError(t, err)
	}

	msgs := sub.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, "2", string(msgs[0].Payload))
	assert.Equal(t, "3", string(msgs[1].Payload))
	assert.EqualValues(t, 1, sub.Dropped())
}

func TestHub_Wait(t *testing.T) {
	hub := NewHub(nil, 0)
	defer hub.Close()

	sub, err := hub.Subscribe("welcome", 1)
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan time.Duration, 1)
	go func() {
		d, err := hub.Wait(context.Background(), "welcome")
		assert.NoError(t, err)
		done <- d
	}()

	time.Sleep(30 * time.Millisecond)
	_, err = hub.Fire(context.Background(), "welcome", nil)
	require.NoError(t, err)

	select {
	case d := <-done:
		assert.GreaterOrEqual(t, d, 20*time.Millisecond)
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return")
	}
}

func TestHub_RateLimit(t *testing.T) {
	hub := NewHub(ratelimit.NewRateLimit(0, 2), 0)
	defer hub.Close()

	ctx := context.Background()
	_, err := hub.Fire(ctx, "a", nil)
	require.NoError(t, err)
	_, err = hub.Fire(ctx, "a", nil)
	require.NoError(t, err)

	_, err = hub.Fire(ctx, "a", nil)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(nil, 0)

	sub, err := hub.Subscribe("welcome", 1)
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := hub.Wait(context.Background(), "welcome")
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)

	hub.Close()

	select {
	case err := <-errs:
		// The waiter either blocked before Close or arrived after it.
		assert.True(t, errors.Is(err, signal.ErrClosed) || errors.Is(err, ErrHubClosed), err)
	case <-time.After(5 * time.Second):
		t.Fatal("close did not release the waiter")
	}

	assert.False(t, sub.Connected())

	select {
	case <-hub.Done():
	default:
		t.Fatal("done not closed")
	}

	_, err = hub.Fire(context.Background(), "welcome", nil)
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.Empty(t, hub.Stats())

	hub.Close()
}

func TestHub_Stats(t *testing.T) {
	hub := NewHub(nil, 0)
	defer hub.Close()

	_, err := hub.Subscribe("b", 1)
	require.NoError(t, err)
	_, err = hub.Signal("a")
	require.NoError(t, err)

	assert.Equal(t, []SignalStat{
		{Name: "a", Listeners: 0},
		{Name: "b", Listeners: 1},
	}, hub.Stats())
}

func TestHub_MaxSignals(t *testing.T) {
	hub := NewHub(nil, 2)
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := hub.Subscribe("a", 1)
	require.NoError(t, err)
	_, err = hub.Wait(ctx, "b")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Known names keep working at the limit, new ones are refused on
	// every path.
	_, err = hub.Fire(context.Background(), "a", nil)
	assert.NoError(t, err)
	_, err = hub.Wait(context.Background(), "c")
	assert.ErrorIs(t, err, ErrTooManySignals)
	_, err = hub.Subscribe("c", 1)
	assert.ErrorIs(t, err, ErrTooManySignals)
	_, err = hub.Fire(context.Background(), "c", nil)
	assert.ErrorIs(t, err, ErrTooManySignals)

	assert.Len(t, hub.Stats(), 2)
}
