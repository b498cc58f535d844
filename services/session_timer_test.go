package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told, so timer tests never sleep for the
// durations they simulate.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSessionTimer_ExpiresExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	var fired atomic.Int32

	timer := newSessionTimerWithClock(10*time.Minute, func() {
		fired.Add(1)
	}, clock.Now, time.Millisecond)
	timer.Start()
	defer timer.Stop()

	clock.Advance(10*time.Minute + time.Second)
	waitFor(t, func() bool { return fired.Load() == 1 })

	// Extra ticks after expiry must not re-fire.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, time.Duration(0), timer.Remaining())
}

func TestSessionTimer_ElapsedFollowsWallClock(t *testing.T) {
	clock := newFakeClock()
	timer := newSessionTimerWithClock(20*time.Minute, nil, clock.Now, time.Hour)
	timer.Start()
	defer timer.Stop()

	clock.Advance(7 * time.Minute)
	assert.Equal(t, 7*time.Minute, timer.Elapsed())
	assert.Equal(t, 13*time.Minute, timer.Remaining())
}

func TestSessionTimer_PauseFreezesElapsed(t *testing.T) {
	clock := newFakeClock()
	timer := newSessionTimerWithClock(10*time.Minute, nil, clock.Now, time.Hour)
	timer.Start()
	defer timer.Stop()

	clock.Advance(2 * time.Minute)
	timer.Pause()
	clock.Advance(5 * time.Minute)
	assert.Equal(t, 2*time.Minute, timer.Elapsed())

	timer.Resume()
	clock.Advance(time.Minute)
	assert.Equal(t, 3*time.Minute, timer.Elapsed())
}

func TestSessionTimer_StopDoesNotFire(t *testing.T) {
	clock := newFakeClock()
	var fired atomic.Int32

	timer := newSessionTimerWithClock(time.Minute, func() { fired.Add(1) }, clock.Now, time.Millisecond)
	timer.Start()
	timer.Stop()
	timer.Stop() // idempotent

	clock.Advance(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestSessionTimer_SetDurationExtends(t *testing.T) {
	clock := newFakeClock()
	timer := newSessionTimerWithClock(10*time.Minute, nil, clock.Now, time.Hour)
	timer.Start()
	defer timer.Stop()

	clock.Advance(5 * time.Minute)
	timer.SetDuration(30 * time.Minute)
	assert.Equal(t, 25*time.Minute, timer.Remaining())
}

func TestSessionTimer_SetDurationBelowElapsedFiresImmediately(t *testing.T) {
	clock := newFakeClock()
	var fired atomic.Int32

	timer := newSessionTimerWithClock(30*time.Minute, func() { fired.Add(1) }, clock.Now, time.Hour)
	timer.Start()

	clock.Advance(15 * time.Minute)
	timer.SetDuration(10 * time.Minute)

	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, time.Duration(0), timer.Remaining())
}

func TestSessionTimer_ResetAllowsRestart(t *testing.T) {
	clock := newFakeClock()
	timer := newSessionTimerWithClock(10*time.Minute, nil, clock.Now, time.Hour)
	timer.Start()
	clock.Advance(4 * time.Minute)

	timer.Reset()
	assert.Equal(t, time.Duration(0), timer.Elapsed())

	timer.Start()
	defer timer.Stop()
	clock.Advance(time.Minute)
	assert.Equal(t, time.Minute, timer.Elapsed())
}

func TestSessionTimer_RealClockExpiry(t *testing.T) {
	var fired atomic.Int32
	done := make(chan struct{})

	timer := NewSessionTimer(30*time.Millisecond, func() {
		fired.Add(1)
		close(done)
	})
	// Tick fast enough to notice a sub-second total.
	timer.tick = 10 * time.Millisecond
	timer.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not expire")
	}
	require.Equal(t, int32(1), fired.Load())
}
