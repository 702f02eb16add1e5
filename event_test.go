package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	before := time.Now()
	ev := NewEvent(EventRead, "HELLO world", "client-1")
	after := time.Now()

	assert.Equal(t, EventRead, ev.Type())
	assert.Equal(t, "HELLO world", ev.Data())
	assert.Equal(t, "client-1", ev.SourceID())
	assert.NotEmpty(t, ev.ID())
	assert.False(t, ev.Timestamp().Before(before))
	assert.False(t, ev.Timestamp().After(after))
}

func TestNewEventNilData(t *testing.T) {
	ev := NewEvent(EventAccept, nil, "client-2")
	assert.Nil(t, ev.Data())
	assert.Contains(t, ev.String(), "ACCEPT")
	assert.Contains(t, ev.String(), "client-2")
}

func TestEventUniqueIDs(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		ev := NewEvent(EventWrite, "payload", "client")
		_, dup := seen[ev.ID()]
		require.False(t, dup, "duplicate event id %s", ev.ID())
		seen[ev.ID()] = struct{}{}
	}
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "ACCEPT", EventAccept.String())
	assert.Equal(t, "READ", EventRead.String())
	assert.Equal(t, "WRITE", EventWrite.String())
	assert.Equal(t, "CLOSE", EventClose.String())
	assert.Contains(t, EventType(42).String(), "UNKNOWN")
}
