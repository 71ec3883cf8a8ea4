package geom

import (
	"math"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

// Corner indexes a quad corner.
type Corner int

// Corners in the order a Quad stores them: the canvas positions of the
// content's top-left, top-right, bottom-right and bottom-left corners.
const (
	TopLeft Corner = iota
	TopRight
	BottomRight
	BottomLeft
)

// Quad is a perspective quadrilateral in canvas space.
type Quad [4]Point

// Bounds returns the axis-aligned bounding box of the quad's corners.
func (q Quad) Bounds() Rect {
	r := Rect{Left: q[0].X, Top: q[0].Y, Right: q[0].X, Bottom: q[0].Y}
	for _, p := range q[1:] {
		r.Left = math.Min(r.Left, p.X)
		r.Top = math.Min(r.Top, p.Y)
		r.Right = math.Max(r.Right, p.X)
		r.Bottom = math.Max(r.Bottom, p.Y)
	}
	return r
}

// IsAxisAligned reports whether the quad is an upright rectangle.
func (q Quad) IsAxisAligned() bool {
	const eps = 1e-9
	return math.Abs(q[TopLeft].Y-q[TopRight].Y) < eps &&
		math.Abs(q[BottomLeft].Y-q[BottomRight].Y) < eps &&
		math.Abs(q[TopLeft].X-q[BottomLeft].X) < eps &&
		math.Abs(q[TopRight].X-q[BottomRight].X) < eps
}

// Area returns the signed shoelace area. It is positive for corners in
// clockwise order on a y-down canvas.
func (q Quad) Area() float64 {
	var a float64
	for i := range q {
		p, n := q[i], q[(i+1)%4]
		a += p.X*n.Y - n.X*p.Y
	}
	return a / 2
}

// Validate checks that the quad is a proper convex quadrilateral.
//
// Every turn along TL→TR→BR→BL must bend the same way and none may be
// (near) straight. That single test rejects duplicate corners, three
// collinear corners, self-intersecting ("bow-tie") orderings and reflex
// corners, none of which a perspective projection of a rectangle can
// produce.
func (q Quad) Validate() error {
	for i, p := range q {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return errors.New(errors.ErrCodeDegenerateGeometry, "quad corner %d is not finite", i)
		}
	}

	// Scale the tolerance with the quad so tiny and huge templates behave alike.
	b := q.Bounds()
	extent := math.Max(b.Width(), b.Height())
	if extent == 0 {
		return errors.New(errors.ErrCodeDegenerateGeometry, "quad has zero extent")
	}
	eps := 1e-9 * extent * extent

	var sign float64
	for i := range q {
		c := cross(q[i], q[(i+1)%4], q[(i+2)%4])
		if math.Abs(c) <= eps {
			return errors.New(errors.ErrCodeDegenerateGeometry,
				"quad corners %d, %d, %d are collinear or coincident", i, (i+1)%4, (i+2)%4)
		}
		if sign == 0 {
			sign = c
			continue
		}
		if (c > 0) != (sign > 0) {
			return errors.New(errors.ErrCodeDegenerateGeometry, "quad %v is not convex or self-intersects", q)
		}
	}
	return nil
}
