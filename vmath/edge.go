package vmath

// Side identifies which face of a rectangle an edge belongs to
type Side uint8

const (
	SideNone Side = iota
	SideTop
	SideBottom
	SideLeft
	SideRight
)

// Horizontal is true for top and bottom faces
func (s Side) Horizontal() bool {
	return s == SideTop || s == SideBottom
}

// Vertical is true for left and right faces
func (s Side) Vertical() bool {
	return s == SideLeft || s == SideRight
}

func (s Side) String() string {
	switch s {
	case SideTop:
		return "top"
	case SideBottom:
		return "bottom"
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	}
	return "none"
}

// Edge is a line segment; Side is set for rectangle faces
type Edge struct {
	From, To Point
	Side     Side
}

// Ray builds a segment of length dist starting at p along a
func Ray(p Point, a Angle, dist float64) Edge {
	return Edge{From: p, To: p.Offset(a, dist)}
}

// Intersect solves the parametric segment-segment intersection of ray and edge
// t is the fraction along ray, u the fraction along edge
// Parallel or colinear pairs (den == 0) and hits outside the open interval (0,1)
// on either segment report ok == false
func Intersect(ray, edge Edge) (t float64, hit Point, ok bool) {
	x1, y1 := ray.From.X, ray.From.Y
	x2, y2 := ray.To.X, ray.To.Y
	x3, y3 := edge.From.X, edge.From.Y
	x4, y4 := edge.To.X, edge.To.Y

	den := (x1-x2)*(y3-y4) - (y1-y2)*(x3-x4)
	if den == 0 {
		return 0, Point{}, false
	}

	t = ((x1-x3)*(y3-y4) - (y1-y3)*(x3-x4)) / den
	if t <= 0 || t >= 1 {
		return 0, Point{}, false
	}

	u := -((x1-x2)*(y1-y3) - (y1-y2)*(x1-x3)) / den
	if u <= 0 || u >= 1 {
		return 0, Point{}, false
	}

	return t, Point{X: x1 + t*(x2-x1), Y: y1 + t*(y2-y1)}, true
}
