package geom

import (
	"math"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

// IdentityEpsilon is the displacement, in canvas pixels, below which a
// mesh control point counts as unmoved.
const IdentityEpsilon = 1e-6

// WarpMesh is a regular lattice of control points over content space,
// each carrying a canvas-space displacement.
//
// Displacements are stored row-major: control point (i, j) is
// Displacements[i*Cols+j] and sits at content position
// (j/(Cols-1), i/(Rows-1)).
type WarpMesh struct {
	Rows, Cols    int
	Displacements []Point
}

// NewWarpMesh validates the lattice shape and returns a mesh.
// Rows and Cols must both be at least 2 and len(d) must equal Rows*Cols.
func NewWarpMesh(rows, cols int, d []Point) (*WarpMesh, error) {
	if rows < 2 || cols < 2 {
		return nil, errors.New(errors.ErrCodeMalformedDocument, "warp mesh must be at least 2x2, got %dx%d", rows, cols)
	}
	if len(d) != rows*cols {
		return nil, errors.New(errors.ErrCodeMalformedDocument,
			"warp mesh %dx%d needs %d displacements, got %d", rows, cols, rows*cols, len(d))
	}
	for i, p := range d {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, errors.New(errors.ErrCodeMalformedDocument, "warp displacement %d is not finite", i)
		}
	}
	out := make([]Point, len(d))
	copy(out, d)
	return &WarpMesh{Rows: rows, Cols: cols, Displacements: out}, nil
}

// At returns the displacement of control point (i, j).
func (m *WarpMesh) At(i, j int) Point {
	return m.Displacements[i*m.Cols+j]
}

// ControlPoint returns the content-space position of control point (i, j).
func (m *WarpMesh) ControlPoint(i, j int) Point {
	return Point{
		X: float64(j) / float64(m.Cols-1),
		Y: float64(i) / float64(m.Rows-1),
	}
}

// MaxDisplacement returns the largest displacement magnitude.
func (m *WarpMesh) MaxDisplacement() float64 {
	var max float64
	for _, d := range m.Displacements {
		max = math.Max(max, d.Len())
	}
	return max
}

// IsIdentity reports whether every control point moves less than
// IdentityEpsilon. A nil mesh is the identity.
func (m *WarpMesh) IsIdentity() bool {
	if m == nil {
		return true
	}
	for _, d := range m.Displacements {
		if math.Abs(d.X) >= IdentityEpsilon || math.Abs(d.Y) >= IdentityEpsilon {
			return false
		}
	}
	return true
}

// Displacement returns the interpolated displacement at content position
// (u, v). Positions outside the unit square are clamped to its edge.
func (m *WarpMesh) Displacement(u, v float64) Point {
	if m == nil {
		return Point{}
	}
	fx := clampUnit(u) * float64(m.Cols-1)
	fy := clampUnit(v) * float64(m.Rows-1)

	j := int(math.Floor(fx))
	i := int(math.Floor(fy))
	if j >= m.Cols-1 {
		j = m.Cols - 2
	}
	if i >= m.Rows-1 {
		i = m.Rows - 2
	}
	tx := fx - float64(j)
	ty := fy - float64(i)

	d00 := m.At(i, j)
	d01 := m.At(i, j+1)
	d10 := m.At(i+1, j)
	d11 := m.At(i+1, j+1)

	top := d00.Mul(1 - tx).Add(d01.Mul(tx))
	bot := d10.Mul(1 - tx).Add(d11.Mul(tx))
	return top.Mul(1 - ty).Add(bot.Mul(ty))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
