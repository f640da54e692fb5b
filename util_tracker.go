package dropflow

import (
	"sync"
	"time"
)

// utilTracker accumulates time-weighted utilization (busy slots / capacity)
// without a background sampling goroutine: every transition records the
// area under the busy-count curve since the previous transition.
type utilTracker struct {
	mu         sync.Mutex
	capacity   int
	busy       int
	areaSum    float64
	elapsed    time.Duration
	lastSample time.Time
	init       bool
}

func newUtilTracker(capacity int) *utilTracker {
	return &utilTracker{capacity: capacity}
}

func (u *utilTracker) sampleLocked() {
	now := time.Now()
	if u.init {
		dt := now.Sub(u.lastSample)
		u.areaSum += u.currentLocked() * dt.Seconds()
		u.elapsed += dt
	}
	u.lastSample = now
	u.init = true
}

func (u *utilTracker) currentLocked() float64 {
	if u.capacity == 0 {
		return 0
	}
	return float64(u.busy) / float64(u.capacity)
}

func (u *utilTracker) markBusy() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sampleLocked()
	u.busy++
}

func (u *utilTracker) markIdle() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sampleLocked()
	if u.busy > 0 {
		u.busy--
	}
}

func (u *utilTracker) current() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.currentLocked()
}

func (u *utilTracker) average() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.init {
		return 0
	}
	now := time.Now()
	dt := now.Sub(u.lastSample)
	area := u.areaSum + u.currentLocked()*dt.Seconds()
	elapsed := u.elapsed + dt
	if elapsed <= 0 {
		return 0
	}
	return area / elapsed.Seconds()
}

func (u *utilTracker) busyCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.busy
}
