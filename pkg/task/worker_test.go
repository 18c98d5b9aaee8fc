package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker(t *testing.T) {
	w := NewWorker(5, 100, nil)
	var cnt int64
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	for i := 0; i < 100; i++ {
		err := w.Submit(ctx, func(ctx context.Context) error {
			atomic.AddInt64(&cnt, 1)
			time.Sleep(time.Millisecond * 2)
			return nil
		})
		require.NoError(t, err, "submit task %d", i)
	}

	w.Stop()

	assert.EqualValues(t, 100, atomic.LoadInt64(&cnt))
}

func TestWorker_OnError(t *testing.T) {
	var (
		mu   sync.Mutex
		errs []error
	)
	w := NewWorker(1, 4, func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})

	boom := errors.New("boom")
	require.NoError(t, w.Submit(context.Background(), func(context.Context) error { return boom }))
	require.NoError(t, w.Submit(context.Background(), func(context.Context) error { panic("kaboom") }))
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], boom)
	assert.Contains(t, errs[1].Error(), "panic: kaboom")
}

func TestWorker_SubmitAfterStop(t *testing.T) {
	w := NewWorker(1, 1, nil)
	w.Stop()

	err := w.Submit(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestWorker_SubmitContextDone(t *testing.T) {
	w := NewWorker(1, 0, nil)
	defer w.Stop()

	release := make(chan struct{})
	require.NoError(t, w.Submit(context.Background(), func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// The only worker is busy and the queue is unbuffered.
	err := w.Submit(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestWorker_StopRacingSubmit(t *testing.T) {
	for range 50 {
		w := NewWorker(2, 16, nil)

		var (
			accepted atomic.Int64
			ran      atomic.Int64
			wg       sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 20 {
					err := w.Submit(context.Background(), func(context.Context) error {
						ran.Add(1)
						return nil
					})
					if err != nil {
						assert.ErrorIs(t, err, ErrStopped)
						return
					}
					accepted.Add(1)
				}
			}()
		}

		w.Stop()
		wg.Wait()

		// Every accepted task ran before Stop returned.
		assert.Equal(t, accepted.Load(), ran.Load())
	}
}
