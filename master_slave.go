package reactor

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ebar-go/reactor/pkg/pool"
	"github.com/go-logr/logr"
	"github.com/rcrowley/go-metrics"
)

// MasterSlaveReactor composes one main reactor that only handles ACCEPT
// events with a set of sub reactors that handle READ/WRITE events, plus a
// single worker pool shared by every sub reactor. New I/O work is spread
// round-robin across the subs, trading per-connection ordering for
// throughput: two events from the same client can run concurrently on
// different sub reactors.
type MasterSlaveReactor struct {
	name        string
	logger      logr.Logger
	registry    metrics.Registry
	main        *mainReactor
	subs        []*subReactor
	workers     *pool.WorkerPool
	subCount    int
	workerCount int

	// selector increments forever; natural modulo picks the target sub.
	selector uint64
	running  atomic.Bool
}

// NewMasterSlaveReactor builds a stopped reactor with subCount sub reactors
// and a shared pool of workerCount workers. Non-positive counts default to
// runtime.NumCPU().
func NewMasterSlaveReactor(name string, subCount, workerCount int, opts ...Option) *MasterSlaveReactor {
	if subCount <= 0 {
		subCount = runtime.NumCPU()
	}
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	o := defaultOptions()
	for _, setter := range opts {
		setter(o)
	}

	registry := metrics.NewRegistry()
	logger := o.logger.WithName(name)
	workers := pool.NewWorkerPool(name+"-workers", workerCount)
	workers.SetPanicHandler(func(rec interface{}) {
		logger.Info("worker task panicked", "panic", rec)
	})

	r := &MasterSlaveReactor{
		name:        name,
		logger:      logger,
		registry:    registry,
		main:        newMainReactor(name+"-main", logger, registry, o.pollTimeout),
		workers:     workers,
		subCount:    subCount,
		workerCount: workerCount,
	}
	r.subs = make([]*subReactor, 0, subCount)
	for i := 0; i < subCount; i++ {
		sub := newSubReactor(fmt.Sprintf("%s-sub-%d", name, i), logger, registry, workers, o.pollTimeout)
		r.subs = append(r.subs, sub)
	}

	logger.Info("master-slave reactor initialized",
		"subReactors", subCount, "workers", workerCount)
	return r
}

// Start launches the main reactor and then every sub reactor in list order.
// A no-op with a warning while already running.
func (r *MasterSlaveReactor) Start() {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("reactor already running, start ignored")
		return
	}

	r.main.start()
	for _, sub := range r.subs {
		sub.start()
	}
	r.logger.Info("master-slave reactor started")
}

// Stop halts the main reactor, then every sub reactor in list order, then
// drains the shared worker pool with a bounded wait. A no-op when not
// running.
func (r *MasterSlaveReactor) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		r.logger.Info("reactor not running, stop ignored")
		return
	}

	r.logger.Info("stopping master-slave reactor")
	r.main.stop()
	for _, sub := range r.subs {
		sub.stop()
	}
	if !r.workers.Shutdown(poolShutdownTimeout) {
		r.logger.Info("worker pool drain timed out, in-flight tasks abandoned")
	}
	r.logger.Info("master-slave reactor stopped")
}

// SimulateClientConnection feeds an ACCEPT event for clientID to the main
// reactor, standing in for a real accepted socket.
func (r *MasterSlaveReactor) SimulateClientConnection(clientID string) {
	if !r.running.Load() {
		r.logger.Info("reactor not running, connection dropped", "client", clientID)
		return
	}
	r.main.submit(NewEvent(EventAccept, "connection from "+clientID, clientID))
}

// SimulateDataRead feeds a READ event for clientID to a round-robin selected
// sub reactor.
func (r *MasterSlaveReactor) SimulateDataRead(clientID, data string) {
	if !r.running.Load() {
		r.logger.Info("reactor not running, read dropped", "client", clientID)
		return
	}
	r.selectSubReactor().submit(NewEvent(EventRead, data, clientID))
}

// SimulateDataWrite feeds a WRITE event for clientID to a round-robin
// selected sub reactor.
func (r *MasterSlaveReactor) SimulateDataWrite(clientID, data string) {
	if !r.running.Load() {
		r.logger.Info("reactor not running, write dropped", "client", clientID)
		return
	}
	r.selectSubReactor().submit(NewEvent(EventWrite, data, clientID))
}

// selectSubReactor picks the next sub reactor round-robin. The counter
// starts at zero and never resets.
func (r *MasterSlaveReactor) selectSubReactor() *subReactor {
	idx := int((atomic.AddUint64(&r.selector, 1) - 1) % uint64(len(r.subs)))
	sub := r.subs[idx]
	r.logger.V(1).Info("sub reactor selected", "sub", sub.name)
	return sub
}

// IsRunning reports whether the reactor is between Start and Stop.
func (r *MasterSlaveReactor) IsRunning() bool { return r.running.Load() }

// Name returns the reactor's identifier.
func (r *MasterSlaveReactor) Name() string { return r.name }

// SubReactorCount returns the number of sub reactors.
func (r *MasterSlaveReactor) SubReactorCount() int { return len(r.subs) }

// WorkerCount returns the shared worker pool size.
func (r *MasterSlaveReactor) WorkerCount() int { return r.workerCount }

// Registry exposes the metrics registry shared by the main and sub reactor
// counters and dispatch timers.
func (r *MasterSlaveReactor) Registry() metrics.Registry { return r.registry }

// AcceptHandler returns the main reactor's ACCEPT handler.
func (r *MasterSlaveReactor) AcceptHandler() *AcceptHandler { return r.main.accept }

// TotalReadOperations sums READ operations across all sub reactors.
func (r *MasterSlaveReactor) TotalReadOperations() int64 {
	var total int64
	for _, sub := range r.subs {
		total += sub.read.ReadOperationCount()
	}
	return total
}

// TotalWriteOperations sums WRITE operations across all sub reactors.
func (r *MasterSlaveReactor) TotalWriteOperations() int64 {
	var total int64
	for _, sub := range r.subs {
		total += sub.write.WriteOperationCount()
	}
	return total
}

// PendingEventCount sums the advisory queue depths of the main and every
// sub reactor.
func (r *MasterSlaveReactor) PendingEventCount() int {
	total := r.main.demux.Len()
	for _, sub := range r.subs {
		total += sub.demux.Len()
	}
	return total
}

// PrintStatistics logs a diagnostic snapshot of the whole composition.
func (r *MasterSlaveReactor) PrintStatistics() {
	r.logger.Info("reactor statistics",
		"running", r.running.Load(),
		"subReactors", len(r.subs),
		"workers", r.workerCount,
		"poolShutdown", r.workers.IsShutdown(),
		"connections", r.main.accept.ConnectionCount(),
		"readOps", r.TotalReadOperations(),
		"writeOps", r.TotalWriteOperations(),
		"pendingEvents", r.PendingEventCount(),
	)
	r.logger.Info("main reactor", "name", r.main.name, "pending", r.main.demux.Len())
	for _, sub := range r.subs {
		r.logger.Info("sub reactor", "name", sub.name,
			"pending", sub.demux.Len(),
			"readOps", sub.read.ReadOperationCount(),
			"writeOps", sub.write.WriteOperationCount(),
		)
	}
}

// mainReactor owns the ACCEPT-only dispatcher and its loop goroutine.
// Accept handling is connection setup only, so dispatch runs inline on the
// loop rather than on the shared pool.
type mainReactor struct {
	name        string
	logger      logr.Logger
	demux       *EventDemultiplexer
	dispatcher  *Dispatcher
	accept      *AcceptHandler
	pollTimeout time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newMainReactor(name string, logger logr.Logger, registry metrics.Registry, pollTimeout time.Duration) *mainReactor {
	m := &mainReactor{
		name:        name,
		logger:      logger.WithName(name),
		demux:       NewEventDemultiplexer(name+"-demux", logger),
		dispatcher:  NewDispatcher(name+"-dispatcher", logger, registry),
		accept:      NewAcceptHandler(name+"-accept", logger, registry),
		pollTimeout: pollTimeout,
	}
	m.dispatcher.Register(EventAccept, m.accept)
	return m
}

func (m *mainReactor) start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.demux.Start()
	go m.eventLoop(ctx)
	m.logger.Info("main reactor started")
}

func (m *mainReactor) stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	m.demux.Stop()
	m.cancel()
	select {
	case <-m.done:
	case <-time.After(loopJoinTimeout):
		m.logger.Info("timed out waiting for main reactor loop")
	}
	m.logger.Info("main reactor stopped")
}

func (m *mainReactor) eventLoop(ctx context.Context) {
	defer close(m.done)
	m.logger.Info("main reactor loop entered")
	for m.running.Load() && ctx.Err() == nil {
		ev := m.demux.Poll(ctx, m.pollTimeout)
		if ev == nil {
			continue
		}
		m.logger.Info("handling connection event", "source", ev.SourceID())
		m.dispatcher.Dispatch(ev)
		// Follow-up I/O for this connection is sub reactor territory.
	}
	m.logger.Info("main reactor loop exited")
}

func (m *mainReactor) submit(ev *Event) {
	if !m.running.Load() {
		return
	}
	m.demux.Add(ev)
}

// subReactor owns a READ/WRITE dispatcher, its own demultiplexer and loop
// goroutine, and offloads handler execution to the shared worker pool.
type subReactor struct {
	name        string
	logger      logr.Logger
	demux       *EventDemultiplexer
	dispatcher  *Dispatcher
	read        *ReadHandler
	write       *WriteHandler
	workers     *pool.WorkerPool
	pollTimeout time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newSubReactor(name string, logger logr.Logger, registry metrics.Registry, workers *pool.WorkerPool, pollTimeout time.Duration) *subReactor {
	s := &subReactor{
		name:        name,
		logger:      logger.WithName(name),
		demux:       NewEventDemultiplexer(name+"-demux", logger),
		dispatcher:  NewDispatcher(name+"-dispatcher", logger, registry),
		read:        NewReadHandler(name+"-read", logger, registry),
		write:       NewWriteHandler(name+"-write", logger, registry),
		workers:     workers,
		pollTimeout: pollTimeout,
	}
	s.dispatcher.Register(EventRead, s.read)
	s.dispatcher.Register(EventWrite, s.write)
	return s
}

func (s *subReactor) start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.demux.Start()
	go s.eventLoop(ctx)
	s.logger.Info("sub reactor started")
}

func (s *subReactor) stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.demux.Stop()
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(loopJoinTimeout):
		s.logger.Info("timed out waiting for sub reactor loop")
	}
	s.logger.Info("sub reactor stopped")
}

func (s *subReactor) eventLoop(ctx context.Context) {
	defer close(s.done)
	s.logger.Info("sub reactor loop entered")
	for s.running.Load() && ctx.Err() == nil {
		ev := s.demux.Poll(ctx, s.pollTimeout)
		if ev == nil {
			continue
		}
		submitted := s.workers.Submit(func() {
			s.logger.V(1).Info("worker handling event", "type", ev.Type().String())
			s.dispatcher.Dispatch(ev)
		})
		if !submitted {
			s.logger.Info("worker pool shut down, event dropped", "event", ev.String())
		}
	}
	s.logger.Info("sub reactor loop exited")
}

func (s *subReactor) submit(ev *Event) {
	if !s.running.Load() {
		return
	}
	s.demux.Add(ev)
}
