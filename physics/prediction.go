package physics

import (
	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/vmath"
)

// CastingMode trades ray count for accuracy
type CastingMode uint8

const (
	// CastSingleRay casts from the center only
	CastSingleRay CastingMode = iota
	// CastRough casts from the four corners and the center
	CastRough
	// CastPrecise adds rays along every edge at PreciseRayGranularity spacing,
	// catching thin or partially overlapping obstacles that corner rays pass by
	CastPrecise
)

func (m CastingMode) String() string {
	switch m {
	case CastSingleRay:
		return "single"
	case CastRough:
		return "rough"
	case CastPrecise:
		return "precise"
	}
	return "unknown"
}

// HitType classifies a prediction
type HitType uint8

const (
	HitNone HitType = iota
	HitObstacle
)

func (h HitType) String() string {
	if h == HitObstacle {
		return "obstacle"
	}
	return "none"
}

// HitPrediction is the output of Detector.Predict
// It is overwritten by every call: copy the value to retain it past the call that filled it
type HitPrediction struct {
	CollisionPredicted bool
	Type               HitType

	// Visibility is the distance budget the prediction was made with
	Visibility float64

	// Distance is the raw distance to the nearest intersection
	Distance float64

	// LKGD is the last known good distance: how far the mover can travel before contact
	// On a miss it equals Visibility
	LKGD float64

	// LKG is the mover's top-left corner offset by LKGD along the travel angle
	LKG vmath.Point

	// ObstacleHit and ObstacleIndex refer to the obstacle set passed to Predict
	ObstacleHit   *core.Entity
	ObstacleIndex int

	// Edge is the struck face of the obstacle, Intersection the exact contact point
	Edge         vmath.Edge
	Intersection vmath.Point
}

// Clear resets to a miss with no visibility
func (p *HitPrediction) Clear() {
	*p = HitPrediction{ObstacleIndex: -1}
}

// Copy returns a detached value safe to keep across ticks
func (p *HitPrediction) Copy() HitPrediction {
	return *p
}

// Obstacles is a flattened pair of parallel slices; index i of each describes one obstacle
// Bounds may differ from Entities[i].Bounds() when the set is a snapshot
type Obstacles struct {
	Entities []*core.Entity
	Bounds   []vmath.Rect
}

// Len returns the obstacle count
func (o Obstacles) Len() int {
	return min(len(o.Entities), len(o.Bounds))
}

// Append adds one obstacle
func (o *Obstacles) Append(e *core.Entity, bounds vmath.Rect) {
	o.Entities = append(o.Entities, e)
	o.Bounds = append(o.Bounds, bounds)
}

// Reset empties the set, keeping capacity for reuse
func (o *Obstacles) Reset() {
	clear(o.Entities)
	o.Entities = o.Entities[:0]
	o.Bounds = o.Bounds[:0]
}
