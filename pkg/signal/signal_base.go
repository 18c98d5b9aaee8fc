package signal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scriptsignal/pkg/middleware"
)

// entry is one registration. The connection is the removal key, so
// disconnecting never depends on the entry's position.
type entry[T any] struct {
	conn *Connection
	call middleware.Handler[T]
}

// round is one generation of waiters. Fire closes done after recording
// firedAt; Close sets err instead.
type round struct {
	done    chan struct{}
	firedAt time.Time
	err     error
}

func newRound() *round {
	return &round{done: make(chan struct{})}
}

// baseSignal implements registration and the fire/wait handshake. Entries use
// a Copy-on-Write slice so dispatch iterates a snapshot without holding mu.
type baseSignal[T any] struct {
	cfg   *config
	chain *middleware.Manager[T]

	mu         sync.Mutex // Protects write operations (Connect/Disconnect/Reset/Close)
	closed     bool
	entriesPtr atomic.Pointer[[]entry[T]]

	waitMu sync.Mutex // Protects round
	round  *round
}

func (s *baseSignal[T]) init(cfg *config, recoverPanics bool) {
	s.cfg = cfg
	s.chain = middleware.NewManager[T]()
	s.chain.Register(middleware.Plugin[T]{
		Name:   "logging",
		Action: middleware.Logging[T](cfg.logger, cfg.name),
	})
	if recoverPanics {
		s.chain.Register(middleware.Plugin[T]{
			Name:   "recovery",
			Action: middleware.Recovery[T](),
		})
	}

	empty := make([]entry[T], 0)
	s.entriesPtr.Store(&empty)
	s.round = newRound()
}

// Connect appends listener to the dispatch sequence.
func (s *baseSignal[T]) Connect(listener Listener[T]) *Connection {
	if listener == nil {
		return inertConnection()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return inertConnection()
	}

	conn := newConnection(s.disconnect)
	call := s.chain.Build(func(ctx context.Context, data T) error {
		listener(ctx, data)
		return nil
	})

	current := *s.entriesPtr.Load()
	next := make([]entry[T], len(current), len(current)+1)
	copy(next, current)
	next = append(next, entry[T]{conn: conn, call: call})
	s.entriesPtr.Store(&next)

	s.cfg.metrics.ListenersSet(s.cfg.name, len(next))
	s.cfg.logger.Debug().Str("signal", s.cfg.name).Str("connection", conn.id).Msg("connected")

	return conn
}

// disconnect is the detach capability handed to every Connection.
func (s *baseSignal[T]) disconnect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.entriesPtr.Load()
	next := make([]entry[T], 0, len(current))

	found := false
	for _, e := range current {
		if e.conn.id == id {
			found = true
			continue
		}
		next = append(next, e)
	}

	if !found {
		return
	}

	s.entriesPtr.Store(&next)
	s.cfg.metrics.ListenersSet(s.cfg.name, len(next))
	s.cfg.logger.Debug().Str("signal", s.cfg.name).Str("connection", id).Msg("disconnected")
}

// Reset disconnects every connection.
func (s *baseSignal[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropAllLocked()
}

func (s *baseSignal[T]) dropAllLocked() {
	for _, e := range *s.entriesPtr.Load() {
		e.conn.release()
	}
	empty := make([]entry[T], 0)
	s.entriesPtr.Store(&empty)
	s.cfg.metrics.ListenersSet(s.cfg.name, 0)
}

// Close disconnects every connection and releases pending waiters with
// ErrClosed. Later waits fail immediately, later connections are inert and
// later fires do nothing.
func (s *baseSignal[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.dropAllLocked()
	s.mu.Unlock()

	s.waitMu.Lock()
	r := s.round
	r.err = ErrClosed
	close(r.done)
	s.waitMu.Unlock()

	s.cfg.logger.Debug().Str("signal", s.cfg.name).Msg("closed")
}

// Wait blocks until the next Fire with at least one listener completes. It
// has no timeout: if the signal is never fired again it blocks forever.
func (s *baseSignal[T]) Wait() (time.Duration, error) {
	return s.WaitContext(context.Background())
}

// WaitContext blocks until the next Fire completes, ctx is done or the
// signal is closed. The duration is measured from the call to the wake-up
// instant recorded by Fire.
func (s *baseSignal[T]) WaitContext(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	// Joining the round under waitMu is what keeps a concurrent wake-up from
	// being lost: either this round is closed later, or a newer one is joined.
	s.waitMu.Lock()
	r := s.round
	s.waitMu.Unlock()

	select {
	case <-r.done:
		if r.err != nil {
			return time.Since(start), r.err
		}
		elapsed := r.firedAt.Sub(start)
		s.cfg.metrics.WaitDurationObserve(s.cfg.name, elapsed)
		return elapsed, nil
	case <-ctx.Done():
		return time.Since(start), ctx.Err()
	}
}

// notify is the wake-up step: it releases every goroutine that joined the
// current round and opens a new one.
func (s *baseSignal[T]) notify() {
	s.waitMu.Lock()
	defer s.waitMu.Unlock()

	r := s.round
	if r.err != nil {
		return
	}
	r.firedAt = time.Now()
	close(r.done)
	s.round = newRound()
}

// Len returns the current number of listeners.
func (s *baseSignal[T]) Len() int {
	return len(*s.entriesPtr.Load())
}

// IsEmpty returns true if there are no listeners.
func (s *baseSignal[T]) IsEmpty() bool {
	return s.Len() == 0
}

// Name returns the signal name.
func (s *baseSignal[T]) Name() string {
	return s.cfg.name
}

// snapshot returns a point-in-time copy of the entries for dispatch.
func (s *baseSignal[T]) snapshot() []entry[T] {
	return *s.entriesPtr.Load()
}

func (s *baseSignal[T]) startSpan(ctx context.Context, listeners int) (context.Context, trace.Span) {
	return s.cfg.tracer.Start(ctx, "signal.Fire", trace.WithAttributes(
		attribute.String("signal.name", s.cfg.name),
		attribute.Int("signal.listeners", listeners),
	))
}

func (s *baseSignal[T]) failure(errs *multierror.Error, conn *Connection, err error) *multierror.Error {
	s.cfg.metrics.ListenerFailureInc(s.cfg.name)
	return multierror.Append(errs, fmt.Errorf("listener %s: %w", conn.id, err))
}

func (s *baseSignal[T]) finish(span trace.Span, start time.Time, err error) {
	defer span.End()

	s.cfg.metrics.FireDurationObserve(s.cfg.name, err != nil, time.Since(start))
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "listener failed")
	s.cfg.logger.Error().Err(err).Str("signal", s.cfg.name).Msg("fire completed with listener failures")

	if s.cfg.onError != nil {
		s.cfg.onError(err)
	}
}

// abort closes out a fire interrupted by a listener panic.
func (s *baseSignal[T]) abort(span trace.Span, start time.Time, r any) {
	defer span.End()

	err := fmt.Errorf("listener panicked: %v", r)
	s.cfg.metrics.ListenerFailureInc(s.cfg.name)
	s.cfg.metrics.FireDurationObserve(s.cfg.name, true, time.Since(start))
	span.RecordError(err)
	span.SetStatus(codes.Error, "listener panicked")
}

// SyncSignal implements a synchronous Signal.
type SyncSignal[T any] struct {
	baseSignal[T]
}

// NewSync creates a new synchronous signal.
func NewSync[T any](opts ...Option) (*SyncSignal[T], error) {
	cfg, err := applyOptions(opts...)
	if err != nil {
		return nil, err
	}

	s := &SyncSignal[T]{}
	s.init(cfg, cfg.isolate)
	return s, nil
}

// Fire invokes every connected listener in registration order on the calling
// goroutine, then wakes all waiters.
//
// Without WithIsolation a panicking listener aborts the fire: the panic
// reaches the caller, later listeners are not invoked and waiters stay
// blocked. A listener disconnected while the fire is in progress is skipped.
func (s *SyncSignal[T]) Fire(ctx context.Context, data T) {
	entries := s.snapshot()
	if len(entries) == 0 {
		return
	}

	ctx, span := s.startSpan(ctx, len(entries))
	start := time.Now()

	// A fail-fast panic still ends the span and counts as a failed fire;
	// waiters are not woken.
	defer func() {
		if r := recover(); r != nil {
			s.abort(span, start, r)
			panic(r)
		}
	}()

	var errs *multierror.Error
	for _, e := range entries {
		if !e.conn.Connected() {
			continue
		}
		if err := e.call(ctx, data); err != nil {
			errs = s.failure(errs, e.conn, err)
		}
	}

	s.notify()
	s.finish(span, start, errs.ErrorOrNil())
}
