package signal

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"scriptsignal/pkg/task"
)

const defaultQueueSize = 64

// AsyncSignal implements an asynchronous Signal. Listeners run as jobs on a
// worker pool, so their relative order is not guaranteed. Waiters are woken
// once every job of a fire has finished.
type AsyncSignal[T any] struct {
	baseSignal[T]
	worker task.Pool
	owned  bool
}

// NewAsync creates a new asynchronous signal. Without WithWorker the signal
// owns a pool sized to GOMAXPROCS and stops it on Close.
func NewAsync[T any](opts ...Option) (*AsyncSignal[T], error) {
	cfg, err := applyOptions(opts...)
	if err != nil {
		return nil, err
	}

	s := &AsyncSignal[T]{worker: cfg.worker}
	s.init(cfg, true)

	if s.worker == nil {
		s.worker = task.NewWorker(runtime.GOMAXPROCS(0), defaultQueueSize, func(err error) {
			cfg.logger.Error().Err(err).Str("signal", cfg.name).Msg("worker: job failed")
		})
		s.owned = true
	}

	return s, nil
}

// Fire submits every connected listener to the pool and returns. Listener
// panics are always recovered and reported through the error handler.
// Submission is detached from ctx cancellation, so a cancelled ctx never
// drops a listener; it may block while the pool queue is full.
func (s *AsyncSignal[T]) Fire(ctx context.Context, data T) {
	entries := s.snapshot()
	if len(entries) == 0 {
		return
	}

	ctx, span := s.startSpan(ctx, len(entries))
	start := time.Now()
	jobCtx := context.WithoutCancel(ctx)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)
	record := func(conn *Connection, err error) {
		mu.Lock()
		errs = s.failure(errs, conn, err)
		mu.Unlock()
	}

	for _, e := range entries {
		if !e.conn.Connected() {
			continue
		}

		wg.Add(1)
		err := s.worker.Submit(jobCtx, func(context.Context) error {
			defer wg.Done()
			if !e.conn.Connected() {
				return nil
			}
			if err := e.call(jobCtx, data); err != nil {
				record(e.conn, err)
			}
			return nil
		})
		if err != nil {
			wg.Done()
			record(e.conn, fmt.Errorf("submit: %w", err))
		}
	}

	go func() {
		wg.Wait()
		s.notify()

		mu.Lock()
		err := errs.ErrorOrNil()
		mu.Unlock()
		s.finish(span, start, err)
	}()
}

// Close closes the signal and stops the pool if the signal owns it. Jobs
// already queued still run.
func (s *AsyncSignal[T]) Close() {
	s.baseSignal.Close()
	if s.owned {
		s.worker.Stop()
	}
}
