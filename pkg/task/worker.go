package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("worker pool is stopped")

type Task func(ctx context.Context) error

type Job struct {
	ctx  context.Context
	task Task
}

type Worker struct {
	ctx     context.Context
	cancel  context.CancelFunc
	queue   chan Job
	wg      sync.WaitGroup
	OnError func(error)

	mu      sync.RWMutex // Held for reading by Submit, for writing by Stop
	stopped bool
}

// NewWorker create and start a worker pool
// maxWorkers: number of concurrent goroutines
// maxQueue: queue buffer size
// onError: callback function when task failed or panic
func NewWorker(maxWorkers int, maxQueue int, onError func(error)) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan Job, maxQueue),
		OnError: onError,
	}
	w.start(maxWorkers)
	return w
}

func (w *Worker) start(maxWorkers int) {
	for range maxWorkers {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-w.ctx.Done():
					w.drain()
					return
				case t, ok := <-w.queue:
					if !ok {
						return
					}
					w.runTask(t)
				}
			}
		}()
	}
}

// drain try to process remaining tasks in the queue when exiting
func (w *Worker) drain() {
	for {
		select {
		case t, ok := <-w.queue:
			if !ok {
				return
			}
			w.runTask(t)
		default:
			return
		}
	}
}

func (w *Worker) runTask(job Job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v\nstack: %s", r, string(debug.Stack()))
			w.handleError(err)
		}
	}()

	if err := job.task(job.ctx); err != nil {
		w.handleError(err)
	}
}

func (w *Worker) handleError(err error) {
	if w.OnError != nil {
		w.OnError(err)
	} else {
		log.Error().Err(err).Msg("worker: task failed")
	}
}

// Submit queues task. It blocks while the queue is full, until ctx is done
// or the pool is stopped. A nil error means the task will run.
func (w *Worker) Submit(ctx context.Context, task Task) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return ErrStopped
	}

	select {
	case <-w.ctx.Done():
		return fmt.Errorf("%w: %w", ErrStopped, w.ctx.Err())
	case <-ctx.Done():
		return fmt.Errorf("job context is done: %w", ctx.Err())
	case w.queue <- Job{ctx: ctx, task: task}:
		return nil
	}
}

// Stop cancels the pool, runs whatever is still queued and waits for the
// workers to exit. Tasks accepted by a Submit racing Stop are run here.
func (w *Worker) Stop() {
	w.cancel()

	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	// close(w.queue) // panic if the queue is not empty
	w.wg.Wait()
	w.drain()
}
