package geom

import (
	"math"
	"testing"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

const tol = 1e-9

func TestSquareToQuad_Corners(t *testing.T) {
	tests := []struct {
		name string
		quad Quad
	}{
		{"rectangle", Quad{{0, 0}, {200, 0}, {200, 150}, {0, 150}}},
		{"skewed", Quad{{0, 0}, {200, 20}, {190, 160}, {10, 150}}},
		{"trapezoid", Quad{{400, 520}, {1600, 500}, {1580, 1400}, {420, 1380}}},
		{"counter-clockwise", Quad{{0, 0}, {0, 100}, {100, 100}, {100, 0}}},
	}
	unit := Quad{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := SquareToQuad(tt.quad)
			if err != nil {
				t.Fatalf("SquareToQuad() error: %v", err)
			}
			for i, u := range unit {
				got, ok := h.Apply(u)
				if !ok {
					t.Fatalf("Apply(%v) at infinity", u)
				}
				if !got.Near(tt.quad[i], 1e-6) {
					t.Errorf("corner %d = %v, want %v", i, got, tt.quad[i])
				}
			}
		})
	}
}

func TestSquareToQuad_RectangleIsAffine(t *testing.T) {
	h, err := SquareToQuad(Quad{{0, 0}, {200, 0}, {200, 150}, {0, 150}})
	if err != nil {
		t.Fatal(err)
	}
	if !h.IsAffine() {
		t.Errorf("rectangle homography %v should be affine", h)
	}
	if !h.Near(Scale(200, 150), tol) {
		t.Errorf("H = %v, want Scale(200,150)", h)
	}
}

func TestSquareToQuad_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		quad Quad
	}{
		{"three collinear", Quad{{0, 0}, {100, 0}, {200, 0}, {0, 100}}},
		{"duplicate corner", Quad{{0, 0}, {0, 0}, {100, 100}, {0, 100}}},
		{"all same", Quad{{5, 5}, {5, 5}, {5, 5}, {5, 5}}},
		{"bow-tie", Quad{{0, 0}, {100, 100}, {100, 0}, {0, 100}}},
		{"reflex corner", Quad{{0, 0}, {100, 0}, {20, 20}, {0, 100}}},
		{"nan", Quad{{math.NaN(), 0}, {1, 0}, {1, 1}, {0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SquareToQuad(tt.quad)
			if !errors.Is(err, errors.ErrCodeDegenerateGeometry) {
				t.Errorf("SquareToQuad(%v) error = %v, want DEGENERATE_GEOMETRY", tt.quad, err)
			}
		})
	}
}

func TestHomography_InverseRoundTrip(t *testing.T) {
	h, err := SquareToQuad(Quad{{0, 0}, {200, 20}, {190, 160}, {10, 150}})
	if err != nil {
		t.Fatal(err)
	}
	inv, err := h.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []Point{{0.25, 0.75}, {0.5, 0.5}, {0, 1}, {0.9, 0.1}} {
		c, _ := h.Apply(p)
		back, _ := inv.Apply(c)
		if !back.Near(p, 1e-9) {
			t.Errorf("inverse(%v) = %v, want %v", c, back, p)
		}
	}
	if !h.Then(inv).Near(Identity(), 1e-9) {
		t.Errorf("H then H⁻¹ = %v, want identity", h.Then(inv))
	}
}

func TestHomography_InverseSingular(t *testing.T) {
	_, err := Homography{1, 2, 3, 2, 4, 6, 0, 0, 1}.Inverse()
	if !errors.Is(err, errors.ErrCodeDegenerateGeometry) {
		t.Errorf("Inverse() error = %v, want DEGENERATE_GEOMETRY", err)
	}
}

func TestHomography_ThenOrder(t *testing.T) {
	// scale first, then translate
	h := Scale(2, 3).Then(Translate(10, 20))
	got, _ := h.Apply(Pt(1, 1))
	if !got.Near(Pt(12, 23), tol) {
		t.Errorf("Apply = %v, want (12,23)", got)
	}
}

func TestQuad_Helpers(t *testing.T) {
	q := R(10, 20, 110, 70).Quad()
	if !q.IsAxisAligned() {
		t.Error("rect quad should be axis aligned")
	}
	if got := q.Bounds(); got != R(10, 20, 110, 70) {
		t.Errorf("Bounds() = %v", got)
	}
	if got := q.Area(); got != 5000 {
		t.Errorf("Area() = %v, want 5000", got)
	}
	skew := Quad{{0, 0}, {200, 20}, {190, 160}, {10, 150}}
	if skew.IsAxisAligned() {
		t.Error("skewed quad reported as axis aligned")
	}
}

func TestRect_IntersectUnion(t *testing.T) {
	a := R(0, 0, 10, 10)
	b := R(5, 5, 20, 20)
	if got := a.Intersect(b); got != R(5, 5, 10, 10) {
		t.Errorf("Intersect = %v", got)
	}
	if got := a.Intersect(R(30, 30, 40, 40)); !got.Empty() {
		t.Errorf("disjoint Intersect = %v, want empty", got)
	}
	if got := a.Union(b); got != R(0, 0, 20, 20) {
		t.Errorf("Union = %v", got)
	}
	if got := (Rect{}).Union(b); got != b {
		t.Errorf("empty Union = %v, want %v", got, b)
	}
	if got := R(0.5, 0.5, 9.2, 9.9).Image(); got.Min.X != 0 || got.Max.X != 10 || got.Max.Y != 10 {
		t.Errorf("Image() = %v", got)
	}
}

func TestNewWarpMesh_Validation(t *testing.T) {
	if _, err := NewWarpMesh(1, 3, make([]Point, 3)); !errors.Is(err, errors.ErrCodeMalformedDocument) {
		t.Errorf("1x3 mesh error = %v, want MALFORMED_DOCUMENT", err)
	}
	if _, err := NewWarpMesh(2, 2, make([]Point, 3)); !errors.Is(err, errors.ErrCodeMalformedDocument) {
		t.Errorf("short mesh error = %v, want MALFORMED_DOCUMENT", err)
	}
	if _, err := NewWarpMesh(2, 2, make([]Point, 4)); err != nil {
		t.Errorf("2x2 mesh error = %v", err)
	}
}

func TestWarpMesh_Displacement(t *testing.T) {
	// 3x3 arc: the middle row lifts by 20px at its center
	m, err := NewWarpMesh(3, 3, []Point{
		{0, 0}, {0, -12}, {0, 0},
		{0, 0}, {0, -20}, {0, 0},
		{0, 0}, {0, -12}, {0, 0},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		u, v float64
		want Point
	}{
		{0, 0, Pt(0, 0)},
		{0.5, 0.5, Pt(0, -20)},
		{0.5, 0, Pt(0, -12)},
		{0.25, 0.5, Pt(0, -10)},
		{0.5, 0.25, Pt(0, -16)},
		{1, 1, Pt(0, 0)},
		{-3, 0.5, Pt(0, 0)},
		{0.5, 7, Pt(0, -12)},
	}
	for _, tt := range tests {
		if got := m.Displacement(tt.u, tt.v); !got.Near(tt.want, tol) {
			t.Errorf("Displacement(%g,%g) = %v, want %v", tt.u, tt.v, got, tt.want)
		}
	}

	if m.IsIdentity() {
		t.Error("arc mesh reported as identity")
	}
	if got := m.MaxDisplacement(); got != 20 {
		t.Errorf("MaxDisplacement() = %v, want 20", got)
	}
	if cp := m.ControlPoint(2, 1); cp != Pt(0.5, 1) {
		t.Errorf("ControlPoint(2,1) = %v", cp)
	}
}

func TestWarpMesh_IsIdentity(t *testing.T) {
	var nilMesh *WarpMesh
	if !nilMesh.IsIdentity() {
		t.Error("nil mesh should be identity")
	}
	noise, _ := NewWarpMesh(2, 2, []Point{{1e-9, 0}, {0, -1e-8}, {0, 0}, {5e-7, 5e-7}})
	if !noise.IsIdentity() {
		t.Error("sub-epsilon mesh should be identity")
	}
	if got := nilMesh.Displacement(0.5, 0.5); got != (Point{}) {
		t.Errorf("nil Displacement = %v", got)
	}
}
