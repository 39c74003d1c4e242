package status

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// Simulation metric keys; the kind column names the map each key lives in
const (
	KeyTicks       = "sim.ticks"       // Ints
	KeyEvaluations = "sim.evaluations" // Ints
	KeySkipped     = "sim.skipped"     // Ints
	KeyImpacts     = "sim.impacts"     // Ints
	KeyFaults      = "sim.faults"      // Ints
	KeyTracked     = "sim.tracked"     // Ints
	KeyStepMs      = "sim.step_ms"     // Floats
	KeyStepMaxMs   = "sim.step_max_ms" // Floats
	KeyTravelled   = "sim.travelled"   // Floats
	KeyPaused      = "sim.paused"      // Bools
	KeyInstance    = "sim.instance"    // Strings
)

// Sample is one metric rendered as text
type Sample struct {
	Key   string
	Value string
}

// Registry groups a simulation's metrics by value kind
// Writers cache the pointers returned by the maps and update them lock-free;
// readers render through Samples or Format from any goroutine
type Registry struct {
	Ints    *MetricMap[atomic.Int64]
	Floats  *MetricMap[AtomicFloat]
	Bools   *MetricMap[atomic.Bool]
	Strings *MetricMap[AtomicString]
}

func NewRegistry() *Registry {
	return &Registry{
		Ints:    NewMetricMap[atomic.Int64](),
		Floats:  NewMetricMap[AtomicFloat](),
		Bools:   NewMetricMap[atomic.Bool](),
		Strings: NewMetricMap[AtomicString](),
	}
}

// Len returns the number of metrics across all kinds
func (r *Registry) Len() int {
	return r.Ints.Count() + r.Floats.Count() + r.Bools.Count() + r.Strings.Count()
}

// AppendSamples appends every metric to dst: ints, floats, bools then strings, keys sorted within a kind
func (r *Registry) AppendSamples(dst []Sample) []Sample {
	r.Ints.Range(func(k string, v *atomic.Int64) {
		dst = append(dst, Sample{k, strconv.FormatInt(v.Load(), 10)})
	})
	r.Floats.Range(func(k string, v *AtomicFloat) {
		dst = append(dst, Sample{k, strconv.FormatFloat(v.Get(), 'f', 3, 64)})
	})
	r.Bools.Range(func(k string, v *atomic.Bool) {
		dst = append(dst, Sample{k, strconv.FormatBool(v.Load())})
	})
	r.Strings.Range(func(k string, v *AtomicString) {
		dst = append(dst, Sample{k, v.Load()})
	})
	return dst
}

// Format joins every sample as key=value with sep
func (r *Registry) Format(sep string) string {
	var b strings.Builder
	for i, s := range r.AppendSamples(nil) {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(s.Key)
		b.WriteByte('=')
		b.WriteString(s.Value)
	}
	return b.String()
}
