package vmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Angle is a direction in degrees, clockwise from +X in screen space (Y grows down)
// Values produced by this package are always normalized to [0, 360)
type Angle float64

// Cardinal directions
const (
	Right Angle = 0
	Down  Angle = 90
	Left  Angle = 180
	Up    Angle = 270
)

// NewAngle returns deg normalized to [0, 360)
func NewAngle(deg float64) Angle {
	return Angle(deg).Normalize()
}

// Normalize wraps the angle into [0, 360)
// NaN and ±Inf are returned unchanged so callers can reject them
func (a Angle) Normalize() Angle {
	f := float64(a)
	if !IsFinite(f) {
		return a
	}
	f = math.Mod(f, 360)
	if f < 0 {
		f += 360
	}
	if f >= 360 {
		f = 0
	}
	return Angle(f)
}

func (a Angle) Degrees() float64 { return float64(a) }

func (a Angle) Radians() float64 { return float64(a) * math.Pi / 180 }

// Add rotates clockwise by deg
func (a Angle) Add(deg float64) Angle {
	return NewAngle(float64(a) + deg)
}

// Opposite returns the angle rotated by 180°
func (a Angle) Opposite() Angle {
	return a.Add(180)
}

// DiffShortest returns the smallest absolute rotation between a and b, in [0, 180]
func (a Angle) DiffShortest(b Angle) float64 {
	d := math.Abs(float64(a.Normalize()) - float64(b.Normalize()))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// RoundToNearest snaps the angle to the closest multiple of step
func (a Angle) RoundToNearest(step float64) Angle {
	if step <= 0 {
		return a.Normalize()
	}
	return NewAngle(math.Round(float64(a)/step) * step)
}

// ReflectHorizontal mirrors the vertical component (bounce off a top/bottom face)
func (a Angle) ReflectHorizontal() Angle {
	return NewAngle(360 - float64(a))
}

// ReflectVertical mirrors the horizontal component (bounce off a left/right face)
func (a Angle) ReflectVertical() Angle {
	return NewAngle(180 - float64(a))
}

// Unit returns the direction as a unit vector
// Cardinal angles return exact axis vectors so axis-aligned motion never drifts off-axis
func (a Angle) Unit() mgl64.Vec2 {
	switch a.Normalize() {
	case Right:
		return mgl64.Vec2{1, 0}
	case Down:
		return mgl64.Vec2{0, 1}
	case Left:
		return mgl64.Vec2{-1, 0}
	case Up:
		return mgl64.Vec2{0, -1}
	}
	r := a.Radians()
	return mgl64.Vec2{math.Cos(r), math.Sin(r)}
}

// AngleTo returns the direction from p to q; Right when the points coincide
func AngleTo(p, q Point) Angle {
	dx, dy := q.X-p.X, q.Y-p.Y
	if dx == 0 && dy == 0 {
		return Right
	}
	return NewAngle(math.Atan2(dy, dx) * 180 / math.Pi)
}
