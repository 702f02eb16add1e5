package reactor

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-logr/logr"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	typ   EventType
	calls int32
	err   error
	panic bool
}

func (h *recordingHandler) Handle(ev *Event) error {
	atomic.AddInt32(&h.calls, 1)
	if h.panic {
		panic("handler blew up")
	}
	return h.err
}

func (h *recordingHandler) Name() string { return "recording" }

func (h *recordingHandler) SupportedType() EventType { return h.typ }

func (h *recordingHandler) callCount() int32 { return atomic.LoadInt32(&h.calls) }

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return NewDispatcher("test-dispatcher", logr.Discard(), metrics.NewRegistry())
}

func TestDispatcherRoutesToHandler(t *testing.T) {
	d := newTestDispatcher(t)
	h := &recordingHandler{typ: EventRead}
	d.Register(EventRead, h)

	d.Dispatch(NewEvent(EventRead, "payload", "client"))
	assert.EqualValues(t, 1, h.callCount())
}

func TestDispatcherNoHandlerSilentDrop(t *testing.T) {
	d := newTestDispatcher(t)
	h := &recordingHandler{typ: EventRead}
	d.Register(EventRead, h)

	require.NotPanics(t, func() {
		d.Dispatch(NewEvent(EventWrite, "payload", "client"))
	})
	assert.EqualValues(t, 0, h.callCount())
}

func TestDispatcherNilEvent(t *testing.T) {
	d := newTestDispatcher(t)
	require.NotPanics(t, func() {
		d.Dispatch(nil)
	})
}

func TestDispatcherSwallowsHandlerError(t *testing.T) {
	d := newTestDispatcher(t)
	h := &recordingHandler{typ: EventRead, err: errors.New("boom")}
	d.Register(EventRead, h)

	require.NotPanics(t, func() {
		d.Dispatch(NewEvent(EventRead, "payload", "client"))
	})
	assert.EqualValues(t, 1, h.callCount())
}

func TestDispatcherContainsHandlerPanic(t *testing.T) {
	d := newTestDispatcher(t)
	d.Register(EventRead, &recordingHandler{typ: EventRead, panic: true})

	require.NotPanics(t, func() {
		d.Dispatch(NewEvent(EventRead, "payload", "client"))
	})

	// The dispatcher keeps working afterwards.
	h := &recordingHandler{typ: EventWrite}
	d.Register(EventWrite, h)
	d.Dispatch(NewEvent(EventWrite, "payload", "client"))
	assert.EqualValues(t, 1, h.callCount())
}

func TestDispatcherRegisterReplaces(t *testing.T) {
	d := newTestDispatcher(t)
	first := &recordingHandler{typ: EventRead}
	second := &recordingHandler{typ: EventRead}
	d.Register(EventRead, first)
	d.Register(EventRead, second)
	assert.Equal(t, 1, d.HandlerCount())

	d.Dispatch(NewEvent(EventRead, "payload", "client"))
	assert.EqualValues(t, 0, first.callCount())
	assert.EqualValues(t, 1, second.callCount())
}

func TestDispatcherRemove(t *testing.T) {
	d := newTestDispatcher(t)
	d.Register(EventRead, &recordingHandler{typ: EventRead})
	require.True(t, d.HasHandler(EventRead))

	d.Remove(EventRead)
	assert.False(t, d.HasHandler(EventRead))
	assert.Equal(t, 0, d.HandlerCount())

	// Removing again is a no-op.
	require.NotPanics(t, func() { d.Remove(EventRead) })
}

func TestSynchronizedDispatcherSerializes(t *testing.T) {
	d := NewSynchronizedDispatcher("sync-dispatcher", logr.Discard(), metrics.NewRegistry())
	h := &recordingHandler{typ: EventRead}
	d.Register(EventRead, h)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(NewEvent(EventRead, "payload", "client"))
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 16, h.callCount())
	assert.Equal(t, 1, d.HandlerCount())
	assert.True(t, d.HasHandler(EventRead))
}
