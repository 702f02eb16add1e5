package reactor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDemultiplexer(t *testing.T) *EventDemultiplexer {
	t.Helper()
	return NewEventDemultiplexer("test-demux", logr.Discard())
}

func TestDemultiplexerFIFO(t *testing.T) {
	d := newTestDemultiplexer(t)
	d.Start()

	for i := 0; i < 10; i++ {
		d.Add(NewEvent(EventRead, fmt.Sprintf("payload-%d", i), "client"))
	}
	require.Equal(t, 10, d.Len())

	for i := 0; i < 10; i++ {
		ev := d.Poll(context.Background(), time.Second)
		require.NotNil(t, ev)
		assert.Equal(t, fmt.Sprintf("payload-%d", i), ev.Data())
	}
	assert.Equal(t, 0, d.Len())
}

func TestDemultiplexerAddBeforeStart(t *testing.T) {
	d := newTestDemultiplexer(t)

	d.Add(NewEvent(EventRead, "dropped", "client"))
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Poll(context.Background(), 10*time.Millisecond))
}

func TestDemultiplexerPollTimeout(t *testing.T) {
	d := newTestDemultiplexer(t)
	d.Start()

	start := time.Now()
	ev := d.Poll(context.Background(), 50*time.Millisecond)
	assert.Nil(t, ev)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDemultiplexerStopUnblocksWait(t *testing.T) {
	d := newTestDemultiplexer(t)
	d.Start()

	got := make(chan *Event, 1)
	go func() {
		got <- d.Wait(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	d.Stop()

	select {
	case ev := <-got:
		assert.Nil(t, ev)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Stop")
	}
}

func TestDemultiplexerWaitDeliversEvent(t *testing.T) {
	d := newTestDemultiplexer(t)
	d.Start()

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Add(NewEvent(EventWrite, "late", "client"))
	}()

	ev := d.Wait(context.Background())
	require.NotNil(t, ev)
	assert.Equal(t, "late", ev.Data())
}

func TestDemultiplexerStopKeepsQueueButReturnsNil(t *testing.T) {
	d := newTestDemultiplexer(t)
	d.Start()
	d.Add(NewEvent(EventRead, "queued", "client"))
	d.Stop()

	assert.Nil(t, d.Poll(context.Background(), 10*time.Millisecond))
	assert.False(t, d.IsRunning())
}

func TestDemultiplexerContextCancel(t *testing.T) {
	d := newTestDemultiplexer(t)
	d.Start()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	assert.Nil(t, d.Wait(ctx))
}

func TestDemultiplexerStartIdempotent(t *testing.T) {
	d := newTestDemultiplexer(t)
	d.Start()
	d.Start()
	d.Add(NewEvent(EventRead, "once", "client"))
	assert.Equal(t, 1, d.Len())
}
