package geom

import (
	"fmt"
	"image"
	"math"
)

// Point is a position in canvas pixels or normalized content space.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Mul returns p scaled by k.
func (p Point) Mul(k float64) Point { return Point{p.X * k, p.Y * k} }

// Len returns the Euclidean length of p.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// Near reports whether p and q are within eps of each other on both axes.
func (p Point) Near(q Point, eps float64) bool {
	return math.Abs(p.X-q.X) <= eps && math.Abs(p.Y-q.Y) <= eps
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// cross returns the z component of (b-a)×(c-b).
func cross(a, b, c Point) float64 {
	ab := b.Sub(a)
	bc := c.Sub(b)
	return ab.X*bc.Y - ab.Y*bc.X
}

// Rect is an axis-aligned box in canvas pixels. Right and Bottom are
// exclusive, matching image.Rectangle.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// R builds a Rect from its edges.
func R(left, top, right, bottom float64) Rect {
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// Width returns the horizontal extent of r.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent of r.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Empty reports whether r encloses no area.
func (r Rect) Empty() bool { return r.Right <= r.Left || r.Bottom <= r.Top }

// Quad returns the rectangle's corners as a quad in TL, TR, BR, BL order.
func (r Rect) Quad() Quad {
	return Quad{
		{r.Left, r.Top},
		{r.Right, r.Top},
		{r.Right, r.Bottom},
		{r.Left, r.Bottom},
	}
}

// Intersect returns the largest rectangle contained by both r and s.
func (r Rect) Intersect(s Rect) Rect {
	out := Rect{
		Left:   math.Max(r.Left, s.Left),
		Top:    math.Max(r.Top, s.Top),
		Right:  math.Min(r.Right, s.Right),
		Bottom: math.Min(r.Bottom, s.Bottom),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Union returns the smallest rectangle containing both r and s.
// An empty operand is ignored.
func (r Rect) Union(s Rect) Rect {
	if r.Empty() {
		return s
	}
	if s.Empty() {
		return r
	}
	return Rect{
		Left:   math.Min(r.Left, s.Left),
		Top:    math.Min(r.Top, s.Top),
		Right:  math.Max(r.Right, s.Right),
		Bottom: math.Max(r.Bottom, s.Bottom),
	}
}

// Image returns the smallest integer rectangle covering r.
func (r Rect) Image() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.Left)),
		int(math.Floor(r.Top)),
		int(math.Ceil(r.Right)),
		int(math.Ceil(r.Bottom)),
	)
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g,%g,%g]", r.Left, r.Top, r.Right, r.Bottom)
}
