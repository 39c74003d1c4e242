package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// PausableClock measures simulation time: real time since start minus time spent paused
// Implements core.Stopwatch
type PausableClock struct {
	mu sync.RWMutex

	provider TimeProvider
	start    time.Time

	isPaused        atomic.Bool
	pauseStart      time.Time
	totalPausedTime time.Duration
}

// NewPausableClock creates a running clock on the system time
func NewPausableClock() *PausableClock {
	return NewPausableClockWith(NewMonotonicTimeProvider())
}

// NewPausableClockWith creates a running clock reading from provider
func NewPausableClockWith(provider TimeProvider) *PausableClock {
	return &PausableClock{
		provider: provider,
		start:    provider.Now(),
	}
}

// Elapsed returns simulation time since creation, frozen while paused
func (pc *PausableClock) Elapsed() time.Duration {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	now := pc.provider.Now()
	if pc.isPaused.Load() && !pc.pauseStart.IsZero() {
		now = pc.pauseStart
	}
	d := now.Sub(pc.start) - pc.totalPausedTime
	if d < 0 {
		return 0
	}
	return d
}

// Pause stops time advancement; repeated calls are no-ops
func (pc *PausableClock) Pause() {
	if pc.isPaused.CompareAndSwap(false, true) {
		pc.mu.Lock()
		defer pc.mu.Unlock()
		pc.pauseStart = pc.provider.Now()
	}
}

// Resume continues time advancement, excluding the paused span
func (pc *PausableClock) Resume() {
	if pc.isPaused.CompareAndSwap(true, false) {
		pc.mu.Lock()
		defer pc.mu.Unlock()

		if !pc.pauseStart.IsZero() {
			pc.totalPausedTime += pc.provider.Now().Sub(pc.pauseStart)
			pc.pauseStart = time.Time{}
		}
	}
}

// IsPaused returns current pause state
func (pc *PausableClock) IsPaused() bool {
	return pc.isPaused.Load()
}

// TotalPauseDuration returns cumulative pause time, including an ongoing pause
func (pc *PausableClock) TotalPauseDuration() time.Duration {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	total := pc.totalPausedTime
	if pc.isPaused.Load() && !pc.pauseStart.IsZero() {
		total += pc.provider.Now().Sub(pc.pauseStart)
	}
	return total
}
