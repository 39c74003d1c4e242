package parameter

// Collision prediction constants
const (
	// Epsilon is subtracted from a predicted hit distance so a clamped entity stops short of the face
	// and never re-penetrates on the next evaluation through float rounding
	Epsilon = 1e-5

	// PreciseRayGranularity is the spacing of edge rays in precise casting mode (cells)
	PreciseRayGranularity = 0.5

	// LookaheadFactor scales the step distance into the prediction visibility
	LookaheadFactor = 1.5

	// DefaultSpeedRatio scales elapsed time before it is converted into travel
	DefaultSpeedRatio = 1.0
)
