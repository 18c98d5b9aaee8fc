package task

import "context"

// Pool runs submitted tasks. Worker is the default implementation.
type Pool interface {
	Submit(ctx context.Context, task Task) error
	Stop()
}

var _ Pool = (*Worker)(nil)
