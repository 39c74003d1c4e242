package engine

import (
	"sync/atomic"
	"time"
)

// MockTimeProvider is a hand-driven time source for tests and headless runs
// Time is kept as an offset from the start instant, so reads never lock
type MockTimeProvider struct {
	base   time.Time
	offset atomic.Int64
}

func NewMockTimeProvider(startTime time.Time) *MockTimeProvider {
	return &MockTimeProvider{base: startTime}
}

func (m *MockTimeProvider) Now() time.Time {
	return m.base.Add(time.Duration(m.offset.Load()))
}

// SetTime jumps to t; moving backwards is allowed but clocks built on the mock clamp at zero elapsed
func (m *MockTimeProvider) SetTime(t time.Time) {
	m.offset.Store(int64(t.Sub(m.base)))
}

// Advance moves the mock forward by d
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.offset.Add(int64(d))
}
