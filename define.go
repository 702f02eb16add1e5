package reactor

// EventHandler is the strategy contract for processing one event type.
// Implementations declare the type they are built for via SupportedType, but
// the dispatcher does not enforce it against the registration key; a handler
// invoked with a foreign type performs its own defensive check and returns
// without acting.
type EventHandler interface {
	// Handle processes a single event. A returned error is logged and
	// swallowed at the dispatcher boundary; it never reaches the submitter.
	Handle(ev *Event) error
	// Name identifies the handler in logs and statistics.
	Name() string
	// SupportedType declares which EventType the handler is built for.
	SupportedType() EventType
}

// EventDispatcher routes events to the handler registered for their type.
type EventDispatcher interface {
	// Register maps a type to a handler, replacing any prior mapping.
	// Registration is expected to happen before the event loop starts;
	// registering concurrently with active dispatch is undefined.
	Register(typ EventType, handler EventHandler)
	// Remove drops the mapping for typ if present.
	Remove(typ EventType)
	// Dispatch invokes the handler registered for ev's type. A nil event or
	// a missing handler is a logged no-op; handler errors and panics are
	// contained and never propagate to the caller.
	Dispatch(ev *Event)
	// HandlerCount reports the number of registered handlers.
	HandlerCount() int
	// HasHandler reports whether a handler is registered for typ.
	HasHandler(typ EventType) bool
}

// Reactor is the common lifecycle surface of the three reactor variants.
type Reactor interface {
	Start()
	Stop()
	IsRunning() bool
	Name() string
	PrintStatistics()
}

// EventSubmitter accepts externally produced events. The single-thread and
// multi-thread variants implement it; the master-slave variant exposes its
// Simulate* methods instead.
type EventSubmitter interface {
	SubmitEvent(ev *Event)
	PendingEventCount() int
}

var (
	_ Reactor        = (*SingleThreadReactor)(nil)
	_ Reactor        = (*MultiThreadReactor)(nil)
	_ Reactor        = (*MasterSlaveReactor)(nil)
	_ EventSubmitter = (*SingleThreadReactor)(nil)
	_ EventSubmitter = (*MultiThreadReactor)(nil)

	_ EventDispatcher = (*Dispatcher)(nil)
	_ EventDispatcher = (*SynchronizedDispatcher)(nil)

	_ EventHandler = (*AcceptHandler)(nil)
	_ EventHandler = (*ReadHandler)(nil)
	_ EventHandler = (*WriteHandler)(nil)
)
