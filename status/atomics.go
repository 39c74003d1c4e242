package status

import (
	"math"
	"sync/atomic"
	"unicode/utf8"
)

// MaxStringLen bounds AtomicString values in bytes; a canonical UUID fits exactly
const MaxStringLen = 36

// AtomicFloat is a float64 stored as bits; the zero value reads 0.0
type AtomicFloat struct {
	bits atomic.Uint64
}

func (f *AtomicFloat) Set(val float64) { f.bits.Store(math.Float64bits(val)) }

func (f *AtomicFloat) Get() float64 { return math.Float64frombits(f.bits.Load()) }

// Add returns the sum after adding delta
func (f *AtomicFloat) Add(delta float64) float64 {
	return f.update(func(cur float64) (float64, bool) { return cur + delta, true })
}

// Max keeps the larger of the stored value and val, returning the result
func (f *AtomicFloat) Max(val float64) float64 {
	return f.update(func(cur float64) (float64, bool) { return val, val > cur })
}

// update retries fn until its result lands or fn declines to write
func (f *AtomicFloat) update(fn func(cur float64) (float64, bool)) float64 {
	for {
		old := f.bits.Load()
		cur := math.Float64frombits(old)
		next, write := fn(cur)
		if !write {
			return cur
		}
		if f.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// AtomicString holds a short label such as an instance id; the zero value reads ""
type AtomicString struct {
	ptr atomic.Pointer[string]
}

// Store keeps at most MaxStringLen bytes of val without splitting a rune
func (s *AtomicString) Store(val string) {
	if len(val) > MaxStringLen {
		cut := MaxStringLen
		for cut > 0 && !utf8.RuneStart(val[cut]) {
			cut--
		}
		val = val[:cut]
	}
	s.ptr.Store(&val)
}

func (s *AtomicString) Load() string {
	if p := s.ptr.Load(); p != nil {
		return *p
	}
	return ""
}
