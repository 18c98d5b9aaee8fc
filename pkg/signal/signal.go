// Package signal implements a typed in-process broadcast primitive.
//
// Listeners are registered with Connect and receive every Fire synchronously,
// in registration order, on the firing goroutine. Each registration is
// represented by a Connection which can be queried and disconnected
// independently of every other registration. Wait blocks until the next
// Fire that reaches at least one listener and reports how long it waited.
//
// A listener that panics is not recovered by default: the panic propagates to
// the caller of Fire, listeners after it are skipped and waiters are not
// woken. WithIsolation switches to a policy where each failure is recovered,
// reported through the error handler, and dispatch continues.
package signal

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned by Wait when the signal has been closed.
	ErrClosed = errors.New("signal is closed")
	// ErrEmptyName is returned by WithName for an empty name.
	ErrEmptyName = errors.New("signal name can't be empty")
)

// Listener defines the signature for signal observers.
type Listener[T any] func(ctx context.Context, data T)

// Signal defines the interface for an observable event.
type Signal[T any] interface {
	// Connect appends a listener to the dispatch sequence and returns the
	// handle used to cancel it.
	Connect(listener Listener[T]) *Connection
	// Fire invokes every connected listener with data. Firing a signal
	// without listeners does nothing, including not waking waiters.
	Fire(ctx context.Context, data T)
	// Wait blocks until the next Fire completes and returns the elapsed time.
	// It blocks forever if the signal is never fired again.
	Wait() (time.Duration, error)
	// WaitContext is Wait bounded by ctx.
	WaitContext(ctx context.Context) (time.Duration, error)
	// Reset disconnects every connection.
	Reset()
	// Close disconnects every connection and releases waiters with ErrClosed.
	Close()
	// Len returns the number of listeners.
	Len() int
	// IsEmpty returns true if there are no listeners.
	IsEmpty() bool
	// Name returns the name the signal was created with.
	Name() string
}

// New creates a new synchronous signal.
func New[T any](opts ...Option) (Signal[T], error) {
	s, err := NewSync[T](opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

var (
	_ Signal[any] = (*SyncSignal[any])(nil)
	_ Signal[any] = (*AsyncSignal[any])(nil)
)
