package reactor

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasterSlaveRoundRobinSelection(t *testing.T) {
	r := NewMasterSlaveReactor("ms-rr", 3, 2)

	// The selector starts at zero, so the i-th selection must hit sub
	// reactor i mod 3.
	for i := 0; i < 9; i++ {
		sub := r.selectSubReactor()
		assert.Same(t, r.subs[i%3], sub, "selection %d", i)
	}
}

func TestMasterSlaveRoutingDistribution(t *testing.T) {
	r := NewMasterSlaveReactor("ms-dist", 2, 4)
	r.Start()
	defer r.Stop()

	for i := 0; i < 4; i++ {
		r.SimulateDataRead("c1", fmt.Sprintf("DATA-%d", i))
	}

	assert.Eventually(t, func() bool {
		return r.TotalReadOperations() == 4
	}, 5*time.Second, 20*time.Millisecond)

	// Round-robin spreads the four reads evenly over both subs.
	assert.EqualValues(t, 2, r.subs[0].read.ReadOperationCount())
	assert.EqualValues(t, 2, r.subs[1].read.ReadOperationCount())
}

func TestMasterSlaveEndToEnd(t *testing.T) {
	r := NewMasterSlaveReactor("ms-e2e", 2, 4)
	r.Start()
	defer r.Stop()

	for i := 1; i <= 3; i++ {
		r.SimulateClientConnection(fmt.Sprintf("c%d", i))
	}
	r.SimulateDataRead("c1", "HELLO from c1")
	r.SimulateDataWrite("c1", "welcome c1")

	assert.Eventually(t, func() bool {
		return r.AcceptHandler().ConnectionCount() == 3 &&
			r.TotalReadOperations() == 1 &&
			r.TotalWriteOperations() == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestMasterSlaveStopDropsQueuedEvents(t *testing.T) {
	first := NewMasterSlaveReactor("ms-old", 2, 2)
	first.Start()
	for i := 0; i < 5; i++ {
		first.SimulateDataRead("c1", fmt.Sprintf("DATA-%d", i))
	}
	first.Stop()

	// A fresh instance must show no contamination from the events the
	// stopped one never processed.
	fresh := NewMasterSlaveReactor("ms-fresh", 2, 2)
	fresh.Start()
	defer fresh.Stop()

	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 0, fresh.TotalReadOperations())
	assert.EqualValues(t, 0, fresh.AcceptHandler().ConnectionCount())
	assert.Equal(t, 0, fresh.PendingEventCount())
}

func TestMasterSlaveNotRunningDrops(t *testing.T) {
	r := NewMasterSlaveReactor("ms-down", 2, 2)

	r.SimulateClientConnection("c1")
	r.SimulateDataRead("c1", "DATA")
	r.SimulateDataWrite("c1", "DATA")

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, r.AcceptHandler().ConnectionCount())
	assert.EqualValues(t, 0, r.TotalReadOperations())
	assert.EqualValues(t, 0, r.TotalWriteOperations())
}

func TestMasterSlaveStartStopIdempotent(t *testing.T) {
	r := NewMasterSlaveReactor("ms-idem", 2, 2)
	require.NotPanics(t, r.Stop)

	r.Start()
	require.NotPanics(t, r.Start)
	assert.True(t, r.IsRunning())

	r.Stop()
	require.NotPanics(t, r.Stop)
	assert.False(t, r.IsRunning())
}

func TestMasterSlaveDefaults(t *testing.T) {
	r := NewMasterSlaveReactor("ms-default", 0, -1)
	assert.Equal(t, runtime.NumCPU(), r.SubReactorCount())
	assert.Equal(t, runtime.NumCPU(), r.WorkerCount())
}
