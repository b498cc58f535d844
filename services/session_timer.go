package services

import (
	"log"
	"sync"
	"time"
)

// SessionTimer tracks the remaining time of a voice session. It is
// monotonic: elapsed time is recomputed from the start instant on every
// tick instead of accumulating one second per tick, so suspended or
// throttled processes cannot desynchronize it.
type SessionTimer struct {
	mu sync.Mutex

	total        time.Duration
	elapsedBase  time.Duration // accumulated before the current run
	startInstant time.Time
	running      bool
	paused       bool
	expired      bool

	onExpire func()
	stop     chan struct{}

	now  func() time.Time
	tick time.Duration

	tickCount int64
}

// NewSessionTimer creates a stopped timer. onExpire fires exactly once, on
// the tick where the remaining time reaches zero.
func NewSessionTimer(total time.Duration, onExpire func()) *SessionTimer {
	return newSessionTimerWithClock(total, onExpire, time.Now, time.Second)
}

func newSessionTimerWithClock(total time.Duration, onExpire func(), now func() time.Time, tick time.Duration) *SessionTimer {
	return &SessionTimer{
		total:    total,
		onExpire: onExpire,
		now:      now,
		tick:     tick,
	}
}

func (t *SessionTimer) Start() {
	t.mu.Lock()
	if t.running || t.expired {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.paused = false
	t.startInstant = t.now()
	t.tickCount = 0
	t.stop = make(chan struct{})
	stop := t.stop
	t.mu.Unlock()

	go t.loop(stop)
}

func (t *SessionTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return
	}
	t.elapsedBase += t.now().Sub(t.startInstant)
	t.paused = true
}

func (t *SessionTimer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || !t.paused {
		return
	}
	t.startInstant = t.now()
	t.paused = false
}

// Stop halts ticking without firing onExpire. Safe to call from any state
// and any number of times.
func (t *SessionTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *SessionTimer) stopLocked() {
	if !t.running {
		return
	}
	t.elapsedBase += t.runElapsedLocked()
	t.running = false
	t.paused = false
	close(t.stop)
	t.stop = nil
}

// Reset stops the timer and clears all accumulated time, allowing a fresh
// Start.
func (t *SessionTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.elapsedBase = 0
	t.expired = false
}

func (t *SessionTimer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedBase + t.runElapsedLocked()
}

func (t *SessionTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

// SetDuration changes the total allotment mid-flight, for plans resolved
// after the timer already started. If the new allotment is already
// exceeded the timer expires immediately rather than going negative.
func (t *SessionTimer) SetDuration(total time.Duration) {
	t.mu.Lock()
	t.total = total
	fire := t.running && !t.expired && t.remainingLocked() == 0
	if fire {
		t.expired = true
		t.stopLocked()
	}
	t.mu.Unlock()

	if fire && t.onExpire != nil {
		t.onExpire()
	}
}

func (t *SessionTimer) runElapsedLocked() time.Duration {
	if !t.running || t.paused {
		return 0
	}
	return t.now().Sub(t.startInstant)
}

func (t *SessionTimer) remainingLocked() time.Duration {
	remaining := t.total - (t.elapsedBase + t.runElapsedLocked())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *SessionTimer) loop(stop chan struct{}) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if t.onTick() {
				return
			}
		}
	}
}

// onTick reports whether the timer expired and the loop should exit.
func (t *SessionTimer) onTick() bool {
	t.mu.Lock()
	if !t.running || t.paused {
		t.mu.Unlock()
		return false
	}

	t.tickCount++
	elapsed := t.elapsedBase + t.runElapsedLocked()

	// The tick counter drifts when the process is suspended; the wall
	// clock is authoritative.
	naive := time.Duration(t.tickCount) * t.tick
	if drift := elapsed - naive; drift > 2*time.Second || drift < -2*time.Second {
		log.Printf("Session timer drift corrected: %s", drift)
		t.tickCount = int64(elapsed / t.tick)
	}

	if t.remainingLocked() > 0 {
		t.mu.Unlock()
		return false
	}

	t.expired = true
	t.stopLocked()
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire()
	}
	return true
}
