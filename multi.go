package reactor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebar-go/reactor/pkg/pool"
	"github.com/go-logr/logr"
	"github.com/rcrowley/go-metrics"
)

const (
	// poolShutdownTimeout bounds the graceful drain of the worker pool on
	// Stop; tasks still running afterwards are abandoned.
	poolShutdownTimeout = 5 * time.Second
	// loopJoinTimeout bounds how long Stop waits for the loop goroutine.
	loopJoinTimeout = 3 * time.Second
)

// MultiThreadReactor keeps a single goroutine on demultiplexer duty and
// hands each dequeued event to a fixed worker pool, so a slow handler no
// longer stalls the loop. Dispatch itself is serialized through a
// SynchronizedDispatcher; the pool only buys parallelism between the loop
// and handler execution.
type MultiThreadReactor struct {
	name        string
	logger      logr.Logger
	registry    metrics.Registry
	demux       *EventDemultiplexer
	dispatcher  *SynchronizedDispatcher
	workers     *pool.WorkerPool
	workerCount int
	pollTimeout time.Duration

	accept *AcceptHandler
	read   *ReadHandler
	write  *WriteHandler

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMultiThreadReactor builds a stopped reactor backed by workerCount
// workers. A non-positive workerCount defaults to runtime.NumCPU().
func NewMultiThreadReactor(name string, workerCount int, opts ...Option) *MultiThreadReactor {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	o := defaultOptions()
	for _, setter := range opts {
		setter(o)
	}

	registry := metrics.NewRegistry()
	logger := o.logger.WithName(name)
	r := &MultiThreadReactor{
		name:        name,
		logger:      logger,
		registry:    registry,
		demux:       NewEventDemultiplexer(name+"-demux", logger),
		dispatcher:  NewSynchronizedDispatcher(name+"-dispatcher", logger, registry),
		workers:     pool.NewWorkerPool(name+"-workers", workerCount),
		workerCount: workerCount,
		pollTimeout: o.pollTimeout,
	}
	r.workers.SetPanicHandler(func(rec interface{}) {
		logger.Info("worker task panicked", "panic", rec)
	})
	r.accept = NewAcceptHandler(name+"-accept", logger, registry)
	r.read = NewReadHandler(name+"-read", logger, registry)
	r.write = NewWriteHandler(name+"-write", logger, registry)
	r.dispatcher.Register(EventAccept, r.accept)
	r.dispatcher.Register(EventRead, r.read)
	r.dispatcher.Register(EventWrite, r.write)

	logger.Info("multi-thread reactor initialized",
		"workers", workerCount, "handlers", r.dispatcher.HandlerCount())
	return r
}

// Start launches the event loop on an internal goroutine and returns.
// Calling Start while already running logs a warning and is a no-op.
func (r *MultiThreadReactor) Start() {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("reactor already running, start ignored")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	r.demux.Start()
	go r.eventLoop(ctx, done)
	r.logger.Info("multi-thread reactor started", "workers", r.workerCount)
}

// Stop flips the running flag, stops the demultiplexer, cancels the loop,
// drains the worker pool with a bounded wait (abandoning stragglers) and
// joins the loop goroutine with a bounded wait. A no-op when not running.
func (r *MultiThreadReactor) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		r.logger.Info("reactor not running, stop ignored")
		return
	}

	r.logger.Info("stopping multi-thread reactor")
	r.demux.Stop()
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if !r.workers.Shutdown(poolShutdownTimeout) {
		r.logger.Info("worker pool drain timed out, in-flight tasks abandoned")
	}
	if done != nil {
		select {
		case <-done:
			r.logger.Info("event loop goroutine finished")
		case <-time.After(loopJoinTimeout):
			r.logger.Info("timed out waiting for event loop goroutine")
		}
	}
	r.logger.Info("multi-thread reactor stopped")
}

func (r *MultiThreadReactor) eventLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	r.logger.Info("event loop entered")
	for r.running.Load() && ctx.Err() == nil {
		ev := r.demux.Poll(ctx, r.pollTimeout)
		if ev == nil {
			continue
		}
		// Fire-and-forget: the loop does not wait for the handler, the
		// completion log is the only feedback.
		submitted := r.workers.Submit(func() {
			start := time.Now()
			r.dispatcher.Dispatch(ev)
			r.logger.V(1).Info("worker finished event",
				"type", ev.Type().String(), "elapsed", time.Since(start).String())
		})
		if !submitted {
			r.logger.Info("worker pool shut down, event dropped", "event", ev.String())
		}
	}
	r.logger.Info("event loop exited")
}

// SubmitEvent enqueues ev for processing; dropped with a warning when the
// reactor is not running.
func (r *MultiThreadReactor) SubmitEvent(ev *Event) {
	if !r.running.Load() {
		r.logger.Info("reactor not running, event dropped", "event", ev.String())
		return
	}
	r.demux.Add(ev)
	r.logger.V(1).Info("event submitted", "type", ev.Type().String())
}

// PendingEventCount returns the advisory queue depth.
func (r *MultiThreadReactor) PendingEventCount() int { return r.demux.Len() }

// IsRunning reports whether the reactor is between Start and Stop.
func (r *MultiThreadReactor) IsRunning() bool { return r.running.Load() }

// Name returns the reactor's identifier.
func (r *MultiThreadReactor) Name() string { return r.name }

// WorkerCount returns the configured worker pool size.
func (r *MultiThreadReactor) WorkerCount() int { return r.workerCount }

// Dispatcher exposes the reactor's dispatcher for custom registration before
// Start.
func (r *MultiThreadReactor) Dispatcher() EventDispatcher { return r.dispatcher }

// Registry exposes the metrics registry holding the reactor's counters and
// dispatch timer.
func (r *MultiThreadReactor) Registry() metrics.Registry { return r.registry }

// AcceptHandler returns the default ACCEPT handler.
func (r *MultiThreadReactor) AcceptHandler() *AcceptHandler { return r.accept }

// ReadHandler returns the default READ handler.
func (r *MultiThreadReactor) ReadHandler() *ReadHandler { return r.read }

// WriteHandler returns the default WRITE handler.
func (r *MultiThreadReactor) WriteHandler() *WriteHandler { return r.write }

// PrintStatistics logs a diagnostic snapshot of the reactor state.
func (r *MultiThreadReactor) PrintStatistics() {
	r.logger.Info("reactor statistics",
		"running", r.running.Load(),
		"workers", r.workerCount,
		"poolShutdown", r.workers.IsShutdown(),
		"pendingEvents", r.PendingEventCount(),
		"handlers", r.dispatcher.HandlerCount(),
		"connections", r.accept.ConnectionCount(),
		"readOps", r.read.ReadOperationCount(),
		"bytesRead", r.read.TotalBytesRead(),
		"writeOps", r.write.WriteOperationCount(),
		"bytesWritten", r.write.TotalBytesWritten(),
	)
}
