package reactor

import (
	"fmt"
	"time"

	uuid "github.com/satori/go.uuid"
)

// EventType identifies the kind of simulated I/O readiness an Event carries.
type EventType int

const (
	// EventAccept signals a new client connection.
	EventAccept EventType = iota
	// EventRead signals inbound data ready to be consumed.
	EventRead
	// EventWrite signals outbound data ready to be flushed.
	EventWrite
	// EventClose is reserved for connection teardown. No handler registers
	// for it and no code path dispatches it; dispatching one is dropped
	// with a warning like any other unhandled type.
	EventClose
)

func (t EventType) String() string {
	switch t {
	case EventAccept:
		return "ACCEPT"
	case EventRead:
		return "READ"
	case EventWrite:
		return "WRITE"
	case EventClose:
		return "CLOSE"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// Event is an immutable description of one occurrence. All fields are set at
// construction and never mutated, so an Event can cross goroutines without
// copying or locking. Each Event is consumed at most once by a dispatcher and
// is never pooled or reused.
type Event struct {
	id        string
	typ       EventType
	data      interface{}
	sourceID  string
	timestamp time.Time
}

// NewEvent builds an Event of the given type. data is an opaque application
// payload and may be nil; sourceID identifies the logical connection that
// produced the event.
func NewEvent(typ EventType, data interface{}, sourceID string) *Event {
	return &Event{
		id:        uuid.NewV4().String(),
		typ:       typ,
		data:      data,
		sourceID:  sourceID,
		timestamp: time.Now(),
	}
}

// ID returns the unique identifier assigned at construction.
func (ev *Event) ID() string { return ev.id }

// Type returns the event type.
func (ev *Event) Type() EventType { return ev.typ }

// Data returns the opaque payload, which may be nil.
func (ev *Event) Data() interface{} { return ev.data }

// SourceID returns the identifier of the logical connection that produced
// the event.
func (ev *Event) SourceID() string { return ev.sourceID }

// Timestamp returns the creation time.
func (ev *Event) Timestamp() time.Time { return ev.timestamp }

func (ev *Event) String() string {
	return fmt.Sprintf("Event{type=%s, source=%s, id=%s, data=%v}",
		ev.typ, ev.sourceID, ev.id, ev.data)
}
