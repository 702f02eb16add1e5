package reactor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/rcrowley/go-metrics"
)

// SingleThreadReactor is the simplest variant: one goroutine owns both the
// demultiplexer wait and the handler invocation, so there is no concurrency
// to reason about and a slow handler stalls everything behind it.
//
// Start runs the event loop on the calling goroutine and does not return
// until Stop is observed; callers normally run it as `go r.Start()`.
type SingleThreadReactor struct {
	name        string
	logger      logr.Logger
	registry    metrics.Registry
	demux       *EventDemultiplexer
	dispatcher  *Dispatcher
	pollTimeout time.Duration

	accept *AcceptHandler
	read   *ReadHandler
	write  *WriteHandler

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
}

// NewSingleThreadReactor builds a stopped reactor with the default
// accept/read/write handlers registered.
func NewSingleThreadReactor(name string, opts ...Option) *SingleThreadReactor {
	o := defaultOptions()
	for _, setter := range opts {
		setter(o)
	}

	registry := metrics.NewRegistry()
	logger := o.logger.WithName(name)
	r := &SingleThreadReactor{
		name:        name,
		logger:      logger,
		registry:    registry,
		demux:       NewEventDemultiplexer(name+"-demux", logger),
		dispatcher:  NewDispatcher(name+"-dispatcher", logger, registry),
		pollTimeout: o.pollTimeout,
	}
	r.accept = NewAcceptHandler(name+"-accept", logger, registry)
	r.read = NewReadHandler(name+"-read", logger, registry)
	r.write = NewWriteHandler(name+"-write", logger, registry)
	r.dispatcher.Register(EventAccept, r.accept)
	r.dispatcher.Register(EventRead, r.read)
	r.dispatcher.Register(EventWrite, r.write)

	logger.Info("single-thread reactor initialized", "handlers", r.dispatcher.HandlerCount())
	return r
}

// Start runs the event loop on the calling goroutine until Stop is called.
// Calling Start while already running logs a warning and returns immediately.
func (r *SingleThreadReactor) Start() {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("reactor already running, start ignored")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.demux.Start()
	r.logger.Info("single-thread reactor started")
	r.eventLoop(ctx)
}

// Stop flips the running flag, stops the demultiplexer and cancels the loop
// context. A no-op when not running. In-flight handler work is not awaited.
func (r *SingleThreadReactor) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		r.logger.Info("reactor not running, stop ignored")
		return
	}

	r.demux.Stop()
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.logger.Info("single-thread reactor stopped")
}

func (r *SingleThreadReactor) eventLoop(ctx context.Context) {
	r.logger.Info("event loop entered")
	for r.running.Load() {
		ev := r.demux.Poll(ctx, r.pollTimeout)
		if ev == nil {
			if ctx.Err() != nil {
				break
			}
			r.logger.V(1).Info("poll timed out, looping")
			continue
		}
		r.dispatcher.Dispatch(ev)
	}
	r.logger.Info("event loop exited")
}

// SubmitEvent enqueues ev for processing. When the reactor is not running
// the event is dropped with a warning; there is no error channel back to
// the submitter.
func (r *SingleThreadReactor) SubmitEvent(ev *Event) {
	if !r.running.Load() {
		r.logger.Info("reactor not running, event dropped", "event", ev.String())
		return
	}
	r.demux.Add(ev)
	r.logger.V(1).Info("event submitted", "type", ev.Type().String())
}

// PendingEventCount returns the advisory queue depth.
func (r *SingleThreadReactor) PendingEventCount() int { return r.demux.Len() }

// IsRunning reports whether the reactor is between Start and Stop.
func (r *SingleThreadReactor) IsRunning() bool { return r.running.Load() }

// Name returns the reactor's identifier.
func (r *SingleThreadReactor) Name() string { return r.name }

// Dispatcher exposes the reactor's dispatcher for custom registration before
// Start.
func (r *SingleThreadReactor) Dispatcher() EventDispatcher { return r.dispatcher }

// Registry exposes the metrics registry holding the reactor's counters and
// dispatch timer.
func (r *SingleThreadReactor) Registry() metrics.Registry { return r.registry }

// AcceptHandler returns the default ACCEPT handler.
func (r *SingleThreadReactor) AcceptHandler() *AcceptHandler { return r.accept }

// ReadHandler returns the default READ handler.
func (r *SingleThreadReactor) ReadHandler() *ReadHandler { return r.read }

// WriteHandler returns the default WRITE handler.
func (r *SingleThreadReactor) WriteHandler() *WriteHandler { return r.write }

// PrintStatistics logs a diagnostic snapshot of the reactor state.
func (r *SingleThreadReactor) PrintStatistics() {
	r.logger.Info("reactor statistics",
		"running", r.running.Load(),
		"pendingEvents", r.PendingEventCount(),
		"handlers", r.dispatcher.HandlerCount(),
		"connections", r.accept.ConnectionCount(),
		"readOps", r.read.ReadOperationCount(),
		"bytesRead", r.read.TotalBytesRead(),
		"writeOps", r.write.WriteOperationCount(),
		"bytesWritten", r.write.TotalBytesWritten(),
	)
}
