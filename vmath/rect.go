package vmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Point is a location in grid cells
type Point struct {
	X, Y float64
}

func (p Point) Vec() mgl64.Vec2 { return mgl64.Vec2{p.X, p.Y} }

func PointFromVec(v mgl64.Vec2) Point { return Point{X: v[0], Y: v[1]} }

// Offset moves the point dist cells along a
func (p Point) Offset(a Angle, dist float64) Point {
	return PointFromVec(p.Vec().Add(a.Unit().Mul(dist)))
}

// Rect is an axis-aligned rectangle; X, Y is the top-left corner
type Rect struct {
	X, Y          float64
	Width, Height float64
}

func NewRect(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h}
}

func (r Rect) Left() float64   { return r.X }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

func (r Rect) Location() Point { return Point{X: r.X, Y: r.Y} }

func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Degenerate reports a rect without positive area or with non-finite coordinates
func (r Rect) Degenerate() bool {
	if !IsFinite(r.X) || !IsFinite(r.Y) || !IsFinite(r.Width) || !IsFinite(r.Height) {
		return true
	}
	return r.Width <= 0 || r.Height <= 0
}

// MoveTo returns the rect with its top-left corner at (x, y)
func (r Rect) MoveTo(x, y float64) Rect {
	r.X, r.Y = x, y
	return r
}

// OffsetByAngle returns the rect moved dist cells along a
func (r Rect) OffsetByAngle(a Angle, dist float64) Rect {
	loc := r.Location().Offset(a, dist)
	return r.MoveTo(loc.X, loc.Y)
}

// Contains reports whether p lies inside or on the boundary
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left() && p.X <= r.Right() && p.Y >= r.Top() && p.Y <= r.Bottom()
}

// Overlaps reports a positive-area intersection; shared faces do not count
func (r Rect) Overlaps(o Rect) bool {
	return r.Left() < o.Right()-Tolerance && o.Left() < r.Right()-Tolerance &&
		r.Top() < o.Bottom()-Tolerance && o.Top() < r.Bottom()-Tolerance
}

// Touches reports rectangles that share part of a face without overlapping
func (r Rect) Touches(o Rect) bool {
	return !r.Overlaps(o) && r.DistanceTo(o) <= Tolerance
}

// DistanceTo returns the shortest gap between two rectangles, 0 if they touch or overlap
func (r Rect) DistanceTo(o Rect) float64 {
	dx := math.Max(0, math.Max(o.Left()-r.Right(), r.Left()-o.Right()))
	dy := math.Max(0, math.Max(o.Top()-r.Bottom(), r.Top()-o.Bottom()))
	if dx == 0 {
		return dy
	}
	if dy == 0 {
		return dx
	}
	return math.Hypot(dx, dy)
}

// Edge returns one face of the rectangle, always ordered left-to-right or top-to-bottom
func (r Rect) Edge(side Side) Edge {
	switch side {
	case SideTop:
		return Edge{From: Point{r.Left(), r.Top()}, To: Point{r.Right(), r.Top()}, Side: side}
	case SideBottom:
		return Edge{From: Point{r.Left(), r.Bottom()}, To: Point{r.Right(), r.Bottom()}, Side: side}
	case SideLeft:
		return Edge{From: Point{r.Left(), r.Top()}, To: Point{r.Left(), r.Bottom()}, Side: side}
	case SideRight:
		return Edge{From: Point{r.Right(), r.Top()}, To: Point{r.Right(), r.Bottom()}, Side: side}
	}
	return Edge{}
}

// Edges returns top, bottom, left, right in that order
func (r Rect) Edges() [4]Edge {
	return [4]Edge{r.Edge(SideTop), r.Edge(SideBottom), r.Edge(SideLeft), r.Edge(SideRight)}
}
