package core

import "time"

// Stopwatch is the simulation's notion of elapsed time
// Implementations must be monotonic; a paused stopwatch returns the same value until resumed
type Stopwatch interface {
	Elapsed() time.Duration
}
