package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"scriptsignal/pkg/ratelimit"
	"scriptsignal/pkg/signal"
)

var (
	ErrRateLimited    = errors.New("fire rate limit exceeded")
	ErrHubClosed      = errors.New("hub is closed")
	ErrTooManySignals = errors.New("too many signals")
)

const defaultMaxSignals = 1024

// Message is the payload carried by every hub signal.
type Message struct {
	Signal  string          `json:"signal"`
	Payload json.RawMessage `json:"payload,omitempty"`
	FiredAt time.Time       `json:"firedAt"`
}

// SignalStat describes one named signal.
type SignalStat struct {
	Name      string `json:"name"`
	Listeners int    `json:"listeners"`
}

// Hub owns the named signals exposed by the service. Signals are created on
// first use and live until the hub is closed.
type Hub struct {
	mu      sync.RWMutex
	signals map[string]*signal.SyncSignal[Message]
	closed  bool
	done    chan struct{}

	opts       []signal.Option
	limiter    *ratelimit.RateLimit
	maxSignals int
}

// NewHub creates a hub. limiter may be nil. maxSignals bounds how many names
// the hub tracks, a value below one selects the default. opts are applied to
// every signal the hub creates.
func NewHub(limiter *ratelimit.RateLimit, maxSignals int, opts ...signal.Option) *Hub {
	if maxSignals < 1 {
		maxSignals = defaultMaxSignals
	}
	return &Hub{
		signals:    make(map[string]*signal.SyncSignal[Message]),
		done:       make(chan struct{}),
		opts:       opts,
		limiter:    limiter,
		maxSignals: maxSignals,
	}
}

// Signal returns the signal called name, creating it if needed. Creation
// fails with ErrTooManySignals once the hub tracks maxSignals names.
func (h *Hub) Signal(name string) (*signal.SyncSignal[Message], error) {
	h.mu.RLock()
	s, ok := h.signals[name]
	closed := h.closed
	h.mu.RUnlock()

	if closed {
		return nil, ErrHubClosed
	}
	if ok {
		return s, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if s, ok := h.signals[name]; ok {
		return s, nil
	}
	if len(h.signals) >= h.maxSignals {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManySignals, h.maxSignals)
	}

	s, err := signal.NewSync[Message](append(slices.Clone(h.opts), signal.WithName(name))...)
	if err != nil {
		return nil, fmt.Errorf("new signal %q: %w", name, err)
	}
	h.signals[name] = s

	return s, nil
}

// Fire fires payload on the named signal and returns how many listeners
// were connected when the fire started.
func (h *Hub) Fire(ctx context.Context, name string, payload json.RawMessage) (int, error) {
	if h.limiter != nil && !h.limiter.GetToken() {
		return 0, ErrRateLimited
	}

	s, err := h.Signal(name)
	if err != nil {
		return 0, err
	}

	n := s.Len()
	s.Fire(ctx, Message{
		Signal:  name,
		Payload: payload,
		FiredAt: time.Now(),
	})

	return n, nil
}

// Wait blocks until the named signal fires, ctx is done or the hub closes.
func (h *Hub) Wait(ctx context.Context, name string) (time.Duration, error) {
	s, err := h.Signal(name)
	if err != nil {
		return 0, err
	}
	return s.WaitContext(ctx)
}

// Subscribe connects a buffered subscriber to the named signal.
func (h *Hub) Subscribe(name string, outboxSize int) (*Subscriber, error) {
	s, err := h.Signal(name)
	if err != nil {
		return nil, err
	}
	return newSubscriber(name, s, outboxSize), nil
}

// Stats lists the signals sorted by name.
func (h *Hub) Stats() []SignalStat {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := make([]SignalStat, 0, len(h.signals))
	for name, s := range h.signals {
		stats = append(stats, SignalStat{Name: name, Listeners: s.Len()})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	return stats
}

// Done is closed once the hub is closed.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Close closes every signal, releasing their waiters and subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	signals := h.signals
	h.signals = make(map[string]*signal.SyncSignal[Message])
	close(h.done)
	h.mu.Unlock()

	for _, s := range signals {
		s.Close()
	}
}
