package executor

import (
	"context"
	"sync"
	"time"
)

// Future is the pending result of a submitted task.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	finished  bool
	cancelled bool
	value     any
	err       error
	callbacks []func(*Future)
}

// NewFuture returns an unresolved future. Executors outside this package
// resolve it with SetResult.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// SetResult resolves the future and runs its done callbacks on the calling
// goroutine. It returns false if the future was already resolved.
func (f *Future) SetResult(value any, err error) bool {
	f.mu.Lock()
	if f.finished {
		f.mu.Unlock()
		return false
	}
	f.finished = true
	f.value = value
	f.err = err
	close(f.done)
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(f)
	}
	return true
}

// Cancel resolves an unfinished future with ErrCancelled.
func (f *Future) Cancel() bool {
	f.mu.Lock()
	if f.finished {
		f.mu.Unlock()
		return false
	}
	f.cancelled = true
	f.mu.Unlock()
	return f.SetResult(nil, ErrCancelled)
}

// Cancelled reports whether the future was cancelled.
func (f *Future) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Done returns a channel closed once the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has resolved.
func (f *Future) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

// AddDoneCallback registers fn to run when the future resolves. If it has
// already resolved, fn runs immediately on the calling goroutine.
func (f *Future) AddDoneCallback(fn func(*Future)) {
	f.mu.Lock()
	if !f.finished {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn(f)
}

// Result blocks until the future resolves or ctx is done.
func (f *Future) Result(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait is Result with a timeout. A non-positive timeout waits forever.
func (f *Future) Wait(timeout time.Duration) (any, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return f.Result(ctx)
}
