package geom

import (
	"math"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

// Homography is a 3x3 projective transform in row-major order:
//
//	| H[0] H[1] H[2] |
//	| H[3] H[4] H[5] |
//	| H[6] H[7] H[8] |
type Homography [9]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Scale returns a transform scaling x by sx and y by sy.
func Scale(sx, sy float64) Homography {
	return Homography{sx, 0, 0, 0, sy, 0, 0, 0, 1}
}

// Translate returns a transform shifting by (tx, ty).
func Translate(tx, ty float64) Homography {
	return Homography{1, 0, tx, 0, 1, ty, 0, 0, 1}
}

// Apply maps p through h. The second result is false when p lies on the
// transform's line at infinity.
func (h Homography) Apply(p Point) (Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return Point{}, false
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// Then returns the transform that applies h first and then g.
func (h Homography) Then(g Homography) Homography {
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = g[r*3]*h[c] + g[r*3+1]*h[3+c] + g[r*3+2]*h[6+c]
		}
	}
	return out
}

// Determinant returns det(h).
func (h Homography) Determinant() float64 {
	return h[0]*(h[4]*h[8]-h[5]*h[7]) -
		h[1]*(h[3]*h[8]-h[5]*h[6]) +
		h[2]*(h[3]*h[7]-h[4]*h[6])
}

// Inverse returns h⁻¹, normalized so that the bottom-right entry is 1 when
// possible. A singular matrix yields DEGENERATE_GEOMETRY.
func (h Homography) Inverse() (Homography, error) {
	det := h.Determinant()
	if math.Abs(det) < 1e-12 || math.IsNaN(det) {
		return Homography{}, errors.New(errors.ErrCodeDegenerateGeometry, "homography is singular (det=%g)", det)
	}
	inv := Homography{
		(h[4]*h[8] - h[5]*h[7]) / det,
		(h[2]*h[7] - h[1]*h[8]) / det,
		(h[1]*h[5] - h[2]*h[4]) / det,
		(h[5]*h[6] - h[3]*h[8]) / det,
		(h[0]*h[8] - h[2]*h[6]) / det,
		(h[2]*h[3] - h[0]*h[5]) / det,
		(h[3]*h[7] - h[4]*h[6]) / det,
		(h[1]*h[6] - h[0]*h[7]) / det,
		(h[0]*h[4] - h[1]*h[3]) / det,
	}
	return inv.normalize(), nil
}

func (h Homography) normalize() Homography {
	if math.Abs(h[8]) < 1e-12 {
		return h
	}
	k := h[8]
	for i := range h {
		h[i] /= k
	}
	return h
}

// IsAffine reports whether h has no projective component.
func (h Homography) IsAffine() bool {
	const eps = 1e-12
	n := h.normalize()
	return math.Abs(n[6]) < eps && math.Abs(n[7]) < eps
}

// Near reports whether every coefficient of h is within eps of g's after
// both are normalized.
func (h Homography) Near(g Homography, eps float64) bool {
	a, b := h.normalize(), g.normalize()
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// SquareToQuad solves the homography that maps the unit square's corners
// (0,0), (1,0), (1,1), (0,1) onto q's corners in TL, TR, BR, BL order.
//
// With h₈ fixed to 1, each correspondence (u,v)→(x,y) contributes two rows
// of an 8x8 linear system:
//
//	u·h₀ + v·h₁ + h₂ − u·x·h₆ − v·x·h₇ = x
//	u·h₃ + v·h₄ + h₅ − u·y·h₆ − v·y·h₇ = y
//
// The quad is validated first; a degenerate quad or singular system
// returns DEGENERATE_GEOMETRY.
func SquareToQuad(q Quad) (Homography, error) {
	if err := q.Validate(); err != nil {
		return Homography{}, err
	}
	unit := Quad{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	var a [8][9]float64
	for i := 0; i < 4; i++ {
		u, v := unit[i].X, unit[i].Y
		x, y := q[i].X, q[i].Y
		a[2*i] = [9]float64{u, v, 1, 0, 0, 0, -u * x, -v * x, x}
		a[2*i+1] = [9]float64{0, 0, 0, u, v, 1, -u * y, -v * y, y}
	}

	sol, ok := solve8(a)
	if !ok {
		return Homography{}, errors.New(errors.ErrCodeDegenerateGeometry, "perspective system for quad %v is singular", q)
	}
	h := Homography{sol[0], sol[1], sol[2], sol[3], sol[4], sol[5], sol[6], sol[7], 1}
	for _, c := range h {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Homography{}, errors.New(errors.ErrCodeDegenerateGeometry, "perspective solve for quad %v diverged", q)
		}
	}
	return h, nil
}

// solve8 runs Gaussian elimination with partial pivoting on an augmented
// 8x9 matrix.
func solve8(a [8][9]float64) ([8]float64, bool) {
	const n = 8
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for c := col; c <= n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	var x [8]float64
	for r := n - 1; r >= 0; r-- {
		s := a[r][n]
		for c := r + 1; c < n; c++ {
			s -= a[r][c] * x[c]
		}
		x[r] = s / a[r][r]
	}
	return x, true
}
