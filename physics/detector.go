package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/lixenwraith/vi-motion/core"
	"github.com/lixenwraith/vi-motion/parameter"
	"github.com/lixenwraith/vi-motion/vmath"
)

// Detector predicts the nearest ray-edge intersection for a moving rectangle
// It owns a ray origin buffer reused across calls: one Detector per goroutine
type Detector struct {
	granularity float64
	epsilon     float64
	origins     []vmath.Point
}

// NewDetector creates a detector using package defaults
func NewDetector() *Detector {
	return &Detector{
		granularity: parameter.PreciseRayGranularity,
		epsilon:     parameter.Epsilon,
		origins:     make([]vmath.Point, 0, 64),
	}
}

// NewDetectorWith creates a detector with explicit precise-ray spacing and contact epsilon
func NewDetectorWith(granularity, epsilon float64) (*Detector, error) {
	if !(granularity > 0) || !vmath.IsFinite(granularity) {
		return nil, fmt.Errorf("%w: ray granularity %v", core.ErrInvalidArgument, granularity)
	}
	if !(epsilon > 0) || !vmath.IsFinite(epsilon) {
		return nil, fmt.Errorf("%w: epsilon %v", core.ErrInvalidArgument, epsilon)
	}
	d := NewDetector()
	d.granularity = granularity
	d.epsilon = epsilon
	return d, nil
}

// Predict casts rays from the rectangle from along angle for visibility cells and reports
// the nearest obstacle face in out. Ties resolve to the obstacle appearing first in obstacles.
// Zero or non-finite visibility reports no collision without geometry work
//
// Rays are cast visibility + epsilon long and the distance filter uses the same bound, so a
// face whose gap lies in (visibility, visibility+epsilon] is reported as a hit. Its Distance
// then exceeds Visibility, which callers clamping on Distance <= travel treat as a miss.
func (d *Detector) Predict(
	from vmath.Rect,
	angle vmath.Angle,
	obstacles Obstacles,
	visibility float64,
	mode CastingMode,
	out *HitPrediction,
) {
	out.Clear()
	out.LKG = from.Location()

	if !(visibility > 0) || !vmath.IsFinite(visibility) || !vmath.IsFinite(float64(angle)) {
		return
	}
	if !vmath.IsFinite(from.X) || !vmath.IsFinite(from.Y) {
		return
	}

	angle = angle.Normalize()
	out.Visibility = visibility

	// Rays overshoot by epsilon so a gap exactly equal to visibility is still found
	castLen := visibility + d.epsilon
	dir := angle.Unit()
	step := dir.Mul(castLen)
	d.buildOrigins(from, mode)

	nearest := math.Inf(1)
	n := obstacles.Len()

	for i := 0; i < n; i++ {
		b := obstacles.Bounds[i]
		if b.Degenerate() || from.Overlaps(b) {
			continue
		}
		gap := from.DistanceTo(b)
		if gap > castLen {
			continue
		}

		if gap <= vmath.Tolerance {
			if edge, point, ok := contactFace(from, b, dir); ok {
				if 0 < nearest {
					nearest = 0
					record(out, obstacles.Entities[i], i, edge, point, 0)
				}
				continue
			}
		}

		edges := b.Edges()
		for _, o := range d.origins {
			ray := vmath.Edge{From: o, To: vmath.PointFromVec(o.Vec().Add(step))}
			for _, e := range edges {
				t, hit, ok := vmath.Intersect(ray, e)
				if !ok {
					continue
				}
				if dist := t * castLen; dist < nearest {
					nearest = dist
					record(out, obstacles.Entities[i], i, e, hit, dist)
				}
			}
		}
	}

	if !out.CollisionPredicted {
		out.LKGD = visibility
		out.LKG = from.Location().Offset(angle, visibility)
		return
	}

	out.LKGD = math.Max(0, nearest-d.epsilon)
	out.LKG = from.Location().Offset(angle, out.LKGD)
}

func record(out *HitPrediction, e *core.Entity, index int, edge vmath.Edge, hit vmath.Point, dist float64) {
	out.CollisionPredicted = true
	out.Type = HitObstacle
	out.ObstacleHit = e
	out.ObstacleIndex = index
	out.Edge = edge
	out.Intersection = hit
	out.Distance = dist
}

// buildOrigins fills the ray origin buffer for the casting mode
func (d *Detector) buildOrigins(r vmath.Rect, mode CastingMode) {
	d.origins = append(d.origins[:0], r.Center())
	if mode == CastSingleRay || r.Degenerate() {
		return
	}

	l, t, rt, b := r.Left(), r.Top(), r.Right(), r.Bottom()
	d.origins = append(d.origins,
		vmath.Point{X: l, Y: t},
		vmath.Point{X: rt, Y: t},
		vmath.Point{X: l, Y: b},
		vmath.Point{X: rt, Y: b},
	)
	if mode != CastPrecise {
		return
	}

	g := d.granularity
	for x := l + g; x < rt-vmath.Tolerance; x += g {
		d.origins = append(d.origins, vmath.Point{X: x, Y: t}, vmath.Point{X: x, Y: b})
	}
	for y := t + g; y < b-vmath.Tolerance; y += g {
		d.origins = append(d.origins, vmath.Point{X: l, Y: y}, vmath.Point{X: rt, Y: y})
	}
}

// contactFace detects an obstacle already resting against the mover's leading face
// Rays starting on that face have t == 0 and would slip through it
func contactFace(from, b vmath.Rect, dir mgl64.Vec2) (vmath.Edge, vmath.Point, bool) {
	spanY := math.Min(from.Bottom(), b.Bottom()) - math.Max(from.Top(), b.Top())
	spanX := math.Min(from.Right(), b.Right()) - math.Max(from.Left(), b.Left())
	midY := (math.Max(from.Top(), b.Top()) + math.Min(from.Bottom(), b.Bottom())) / 2
	midX := (math.Max(from.Left(), b.Left()) + math.Min(from.Right(), b.Right())) / 2

	switch {
	case spanY > vmath.Tolerance && dir[0] > vmath.Tolerance && vmath.NearlyEqual(b.Left(), from.Right()):
		return b.Edge(vmath.SideLeft), vmath.Point{X: b.Left(), Y: midY}, true
	case spanY > vmath.Tolerance && dir[0] < -vmath.Tolerance && vmath.NearlyEqual(b.Right(), from.Left()):
		return b.Edge(vmath.SideRight), vmath.Point{X: b.Right(), Y: midY}, true
	case spanX > vmath.Tolerance && dir[1] > vmath.Tolerance && vmath.NearlyEqual(b.Top(), from.Bottom()):
		return b.Edge(vmath.SideTop), vmath.Point{X: midX, Y: b.Top()}, true
	case spanX > vmath.Tolerance && dir[1] < -vmath.Tolerance && vmath.NearlyEqual(b.Bottom(), from.Top()):
		return b.Edge(vmath.SideBottom), vmath.Point{X: midX, Y: b.Bottom()}, true
	}
	return vmath.Edge{}, vmath.Point{}, false
}
