package executor

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs tasks on goroutines, at most workers at a time.
type Pool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Compile-time interface check.
var _ Executor = (*Pool)(nil)

// NewPool creates a pool. A non-positive workers count uses GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit implements Executor.
func (p *Pool) Submit(task Task) (*Future, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrShutdown
	}
	p.wg.Add(1)
	p.mu.Unlock()

	f := NewFuture()
	go p.work(f, task)
	return f, nil
}

func (p *Pool) work(f *Future, task Task) {
	defer p.wg.Done()

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		f.Cancel()
		return
	}
	defer p.sem.Release(1)

	if p.ctx.Err() != nil || f.IsDone() {
		f.Cancel()
		return
	}
	value, err := safeRun(task)
	f.SetResult(value, err)
}

func safeRun(task Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return task()
}

// Shutdown implements Executor.
func (p *Pool) Shutdown(wait, cancelFutures bool) {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	if cancelFutures {
		p.cancel()
	}
	if wait {
		p.wg.Wait()
	}
}
