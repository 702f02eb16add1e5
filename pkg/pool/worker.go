// Package pool provides a capacity-bounded worker pool with a bounded-wait
// shutdown, backed by gopool.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
)

// WorkerPool runs submitted tasks on at most size concurrent workers.
// Shutdown waits a bounded time for in-flight tasks and then abandons them,
// so a slow task can delay but never block termination forever.
type WorkerPool struct {
	name string
	size int
	pool gopool.Pool

	wg     sync.WaitGroup
	closed int32

	panicHandler func(r interface{})
}

// NewWorkerPool builds a pool named name with size concurrent workers.
func NewWorkerPool(name string, size int) *WorkerPool {
	p := &WorkerPool{
		name: name,
		size: size,
		pool: gopool.NewPool(name, int32(size), gopool.NewConfig()),
	}
	p.pool.SetPanicHandler(func(_ context.Context, r interface{}) {
		if p.panicHandler != nil {
			p.panicHandler(r)
		}
	})
	return p
}

// SetPanicHandler installs a callback invoked when a task panics. Must be
// called before the first Submit.
func (p *WorkerPool) SetPanicHandler(fn func(r interface{})) {
	p.panicHandler = fn
}

// Submit schedules fn for execution. Returns false when the pool is already
// shut down; fn is not run in that case.
func (p *WorkerPool) Submit(fn func()) bool {
	if atomic.LoadInt32(&p.closed) == 1 {
		return false
	}
	p.wg.Add(1)
	p.pool.Go(func() {
		defer p.wg.Done()
		fn()
	})
	return true
}

// Shutdown rejects further submissions and waits up to timeout for in-flight
// tasks to finish. Returns false when the wait timed out, meaning running
// tasks were abandoned.
func (p *WorkerPool) Shutdown(timeout time.Duration) bool {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return true
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Size returns the configured worker capacity.
func (p *WorkerPool) Size() int { return p.size }

// Name returns the pool's identifier.
func (p *WorkerPool) Name() string { return p.name }

// IsShutdown reports whether Shutdown has been called.
func (p *WorkerPool) IsShutdown() bool {
	return atomic.LoadInt32(&p.closed) == 1
}
