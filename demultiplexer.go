package reactor

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/go-logr/logr"
)

// EventDemultiplexer stands in for a readiness notifier (select/poll/epoll):
// producers push simulated events, a single consumer loop waits for the next
// one. The queue is unbounded FIFO, so Add never blocks for capacity and no
// backpressure signal exists.
type EventDemultiplexer struct {
	name   string
	logger logr.Logger

	mu      sync.Mutex
	events  *queue.Queue
	running bool

	// notify carries at most one pending wake-up for the consumer. Producers
	// signal it non-blocking; the consumer re-checks the queue after every
	// wake, so collapsed signals are harmless with a single consumer.
	notify chan struct{}
}

// NewEventDemultiplexer builds a stopped demultiplexer. Start must be called
// before Add or the wait methods do anything.
func NewEventDemultiplexer(name string, logger logr.Logger) *EventDemultiplexer {
	return &EventDemultiplexer{
		name:   name,
		logger: logger.WithName(name),
		events: queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// Start marks the demultiplexer as running. Idempotent.
func (d *EventDemultiplexer) Start() {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	d.logger.Info("demultiplexer started")
}

// Stop marks the demultiplexer as stopped and wakes a blocked consumer.
// Queued events are not purged, but waits return nil once stopped.
func (d *EventDemultiplexer) Stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	d.wake()
	d.logger.Info("demultiplexer stopped")
}

// Add enqueues an event. When not running the event is silently dropped with
// a warning; the queue is unbounded so Add never blocks the producer.
func (d *EventDemultiplexer) Add(ev *Event) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		d.logger.Info("not running, event dropped", "event", ev.String())
		return
	}
	d.events.Add(ev)
	d.mu.Unlock()
	d.wake()
	d.logger.V(1).Info("event enqueued", "event", ev.String())
}

// Wait blocks until an event arrives, returning nil once the demultiplexer is
// stopped or ctx is cancelled.
func (d *EventDemultiplexer) Wait(ctx context.Context) *Event {
	for {
		ev, running := d.take()
		if ev != nil || !running {
			return ev
		}
		select {
		case <-d.notify:
		case <-ctx.Done():
			return nil
		}
	}
}

// Poll blocks up to timeout for the next event. Returns nil on timeout, when
// not running, or when ctx is cancelled.
func (d *EventDemultiplexer) Poll(ctx context.Context, timeout time.Duration) *Event {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		ev, running := d.take()
		if ev != nil || !running {
			return ev
		}
		select {
		case <-d.notify:
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// take pops the head of the queue if running and non-empty.
func (d *EventDemultiplexer) take() (*Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil, false
	}
	if d.events.Length() == 0 {
		return nil, true
	}
	ev := d.events.Remove().(*Event)
	d.logger.V(1).Info("event demultiplexed", "event", ev.String())
	return ev, true
}

// Len reports the current queue depth. The value is an advisory snapshot and
// may be stale under concurrent producers; do not use it for flow control.
func (d *EventDemultiplexer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events.Length()
}

// IsRunning reports whether Start has been called without a later Stop.
func (d *EventDemultiplexer) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Name returns the demultiplexer's identifier.
func (d *EventDemultiplexer) Name() string { return d.name }

func (d *EventDemultiplexer) wake() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}
