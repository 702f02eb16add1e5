package reactor

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/rcrowley/go-metrics"
)

// Dispatcher maps event types to handlers and performs synchronous
// invocation. The map is not locked: all registration is expected to
// happen-before the event loop starts, after which the map is only read.
// Concurrent reads from multiple worker goroutines are safe.
type Dispatcher struct {
	name     string
	logger   logr.Logger
	handlers map[EventType]EventHandler
	timer    metrics.Timer
}

// NewDispatcher builds an empty dispatcher. Dispatch durations are recorded
// in a timer registered as "<name>.dispatch" on the given registry.
func NewDispatcher(name string, logger logr.Logger, registry metrics.Registry) *Dispatcher {
	return &Dispatcher{
		name:     name,
		logger:   logger.WithName(name),
		handlers: make(map[EventType]EventHandler),
		timer:    metrics.NewRegisteredTimer(name+".dispatch", registry),
	}
}

// Register maps typ to handler, silently replacing any prior mapping.
func (d *Dispatcher) Register(typ EventType, handler EventHandler) {
	d.handlers[typ] = handler
	d.logger.Info("handler registered", "type", typ.String(), "handler", handler.Name())
}

// Remove drops the mapping for typ if present; a no-op otherwise.
func (d *Dispatcher) Remove(typ EventType) {
	handler, ok := d.handlers[typ]
	if !ok {
		return
	}
	delete(d.handlers, typ)
	d.logger.Info("handler removed", "type", typ.String(), "handler", handler.Name())
}

// Dispatch routes ev to the handler registered for its type. A nil event or
// an unregistered type is a logged no-op. Handler errors and panics are
// logged and swallowed: a buggy handler can never crash the event loop, and
// the submitter gets no feedback either way.
func (d *Dispatcher) Dispatch(ev *Event) {
	if ev == nil {
		d.logger.Info("nil event, dispatch skipped")
		return
	}
	handler, ok := d.handlers[ev.Type()]
	if !ok {
		d.logger.Info("no handler for event type, event dropped",
			"type", ev.Type().String(), "event", ev.String())
		return
	}

	d.logger.V(1).Info("dispatching event", "type", ev.Type().String(), "handler", handler.Name())
	start := time.Now()
	err := d.invoke(handler, ev)
	elapsed := time.Since(start)
	d.timer.Update(elapsed)

	if err != nil {
		d.logger.Error(err, "handler failed", "handler", handler.Name(), "event", ev.String())
		return
	}
	d.logger.V(1).Info("event handled", "handler", handler.Name(), "elapsed", elapsed.String())
}

// invoke contains handler panics so the event loop keeps running.
func (d *Dispatcher) invoke(handler EventHandler, ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ev)
}

// HandlerCount reports how many handlers are registered.
func (d *Dispatcher) HandlerCount() int { return len(d.handlers) }

// HasHandler reports whether a handler is registered for typ.
func (d *Dispatcher) HasHandler(typ EventType) bool {
	_, ok := d.handlers[typ]
	return ok
}

// Name returns the dispatcher's identifier.
func (d *Dispatcher) Name() string { return d.name }

// SynchronizedDispatcher serializes Dispatch calls across goroutines by
// wrapping a plain Dispatcher behind the same interface. Only Dispatch is
// guarded; Register and Remove keep the plain dispatcher's happens-before
// assumption.
type SynchronizedDispatcher struct {
	inner *Dispatcher
	mu    sync.Mutex
}

// NewSynchronizedDispatcher wraps a fresh Dispatcher with mutual exclusion
// around Dispatch.
func NewSynchronizedDispatcher(name string, logger logr.Logger, registry metrics.Registry) *SynchronizedDispatcher {
	return &SynchronizedDispatcher{inner: NewDispatcher(name, logger, registry)}
}

func (d *SynchronizedDispatcher) Register(typ EventType, handler EventHandler) {
	d.inner.Register(typ, handler)
}

func (d *SynchronizedDispatcher) Remove(typ EventType) {
	d.inner.Remove(typ)
}

func (d *SynchronizedDispatcher) Dispatch(ev *Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inner.Dispatch(ev)
}

func (d *SynchronizedDispatcher) HandlerCount() int { return d.inner.HandlerCount() }

func (d *SynchronizedDispatcher) HasHandler(typ EventType) bool { return d.inner.HasHandler(typ) }

// Name returns the wrapped dispatcher's identifier.
func (d *SynchronizedDispatcher) Name() string { return d.inner.Name() }
