package parameter

import "time"

// Host Loop Timing
const (
	// FrameUpdateInterval is the host frame interval (~60 FPS), one Step per frame
	FrameUpdateInterval = 16 * time.Millisecond
)

// Registry Layout
const (
	// RegistryBucketCount is the fixed number of hash buckets, index = id mod RegistryBucketCount
	RegistryBucketCount = 300

	// RegistryBucketCapacity is the initial slot count of each bucket, doubled on overflow
	RegistryBucketCapacity = 4

	// RegistryArenaCapacity is the default number of velocity slots; the arena never grows
	RegistryArenaCapacity = 8192
)

// Adaptive Evaluation
const (
	// EvalMostFrequent is the shortest re-evaluation interval, reached at EvalSpeedForMostFrequent
	EvalMostFrequent = 2 * time.Millisecond

	// EvalLeastFrequent is the longest re-evaluation interval, used by stationary entities
	EvalLeastFrequent = 50 * time.Millisecond

	// EvalSpeedForMostFrequent is the speed (cells/sec) at which the interval bottoms out
	EvalSpeedForMostFrequent = 100.0
)
