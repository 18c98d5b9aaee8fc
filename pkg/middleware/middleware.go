package middleware

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Handler is a single listener invocation. A listener that completes
// normally returns nil; interceptors may turn failures into errors.
type Handler[T any] func(ctx context.Context, data T) error

// Middleware is a decorator function that wraps a Handler.
type Middleware[T any] func(next Handler[T]) Handler[T]

// Plugin represents a named middleware.
type Plugin[T any] struct {
	Name   string
	Action Middleware[T]
}

// Manager holds an ordered middleware chain.
type Manager[T any] struct {
	plugins []Plugin[T]
}

// NewManager creates an empty chain for payload type T.
func NewManager[T any]() *Manager[T] {
	return &Manager[T]{
		plugins: make([]Plugin[T], 0),
	}
}

// Register adds one or more plugins to the chain.
func (m *Manager[T]) Register(plugins ...Plugin[T]) {
	m.plugins = append(m.plugins, plugins...)
}

// Len returns the number of registered plugins.
func (m *Manager[T]) Len() int {
	return len(m.plugins)
}

// Build compiles the registered plugins around final. The first registered
// plugin is the outermost one.
func (m *Manager[T]) Build(final Handler[T]) Handler[T] {
	chain := final

	// chain = P2(H)
	// chain = P1(P2(H))
	for i := len(m.plugins) - 1; i >= 0; i-- {
		chain = m.plugins[i].Action(chain)
	}

	return chain
}

// Run executes the chain directly.
func (m *Manager[T]) Run(ctx context.Context, data T, final Handler[T]) error {
	return m.Build(final)(ctx, data)
}

// PanicError is the error produced by Recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v\n%s", e.Value, e.Stack)
}

// Recovery turns a panic in next into a *PanicError.
func Recovery[T any]() Middleware[T] {
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, data T) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{Value: r, Stack: debug.Stack()}
				}
			}()
			return next(ctx, data)
		}
	}
}

// Logging logs each invocation at trace level and failures at error level.
func Logging[T any](logger zerolog.Logger, name string) Middleware[T] {
	return func(next Handler[T]) Handler[T] {
		return func(ctx context.Context, data T) error {
			start := time.Now()
			err := next(ctx, data)
			if err != nil {
				logger.Error().Err(err).Str("signal", name).Msg("listener failed")
				return err
			}
			logger.Trace().Str("signal", name).Dur("took", time.Since(start)).Msg("listener done")
			return nil
		}
	}
}
