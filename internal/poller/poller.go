// Package poller runs a function periodically until stopped.
package poller

import (
	"context"
	"sync"
	"time"
)

// Task is a periodic job with a single owner. It runs fn once immediately,
// then every interval. Runs never overlap.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches fn in its own goroutine. fn receives a context that is
// cancelled when the task is stopped or parent is done.
func Start(parent context.Context, interval time.Duration, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go t.loop(ctx, interval, fn)
	return t
}

func (t *Task) loop(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	defer close(t.done)

	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a tick may be ready at the same time as cancellation
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}
	}
}

// Stop cancels the task and waits for a run in progress to return.
// Calling Stop more than once, or on a nil Task, is a no-op.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed once the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
