package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsTasks(t *testing.T) {
	p := NewWorkerPool("test", 4)

	var count int64
	for i := 0; i < 10; i++ {
		require.True(t, p.Submit(func() {
			atomic.AddInt64(&count, 1)
		}))
	}

	assert.True(t, p.Shutdown(time.Second))
	assert.EqualValues(t, 10, atomic.LoadInt64(&count))
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	p := NewWorkerPool("bounded", 2)

	var cur, max int64
	for i := 0; i < 8; i++ {
		p.Submit(func() {
			n := atomic.AddInt64(&cur, 1)
			for {
				m := atomic.LoadInt64(&max)
				if n <= m || atomic.CompareAndSwapInt64(&max, m, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt64(&cur, -1)
		})
	}

	require.True(t, p.Shutdown(5*time.Second))
	assert.LessOrEqual(t, atomic.LoadInt64(&max), int64(2))
}

func TestWorkerPoolShutdownTimeout(t *testing.T) {
	p := NewWorkerPool("slow", 1)
	p.Submit(func() {
		time.Sleep(500 * time.Millisecond)
	})

	assert.False(t, p.Shutdown(50*time.Millisecond))
	assert.True(t, p.IsShutdown())
}

func TestWorkerPoolSubmitAfterShutdown(t *testing.T) {
	p := NewWorkerPool("closed", 1)
	require.True(t, p.Shutdown(time.Second))

	ran := false
	assert.False(t, p.Submit(func() { ran = true }))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran)
}

func TestWorkerPoolShutdownIdempotent(t *testing.T) {
	p := NewWorkerPool("idem", 1)
	assert.True(t, p.Shutdown(time.Second))
	assert.True(t, p.Shutdown(time.Second))
}

func TestWorkerPoolPanicHandler(t *testing.T) {
	p := NewWorkerPool("panicky", 1)
	caught := make(chan interface{}, 1)
	p.SetPanicHandler(func(r interface{}) {
		caught <- r
	})

	p.Submit(func() { panic("boom") })

	select {
	case r := <-caught:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic handler not invoked")
	}
}
