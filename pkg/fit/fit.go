// Package fit computes how a replacement raster maps onto a placeholder's
// placement.
//
// The fitted map from a replacement pixel position p to the canvas is
//
//	canvas(p) = H(n) + D(n),  n = S(p)
//
// where S scales replacement pixels into the placeholder's normalized
// content space according to the fit [Mode], H is the homography from the
// unit square onto the placement quad, and D is the warp mesh's
// displacement field (zero without a mesh). Because S is derived from the
// replacement's own size, the canvas footprint does not depend on the
// replacement's resolution.
//
// Rasterization runs per destination pixel, so the useful direction is
// [Transform.Inverse]. Quad-only placements invert in closed form; warped
// placements are inverted with Newton iterations seeded by H⁻¹.
package fit

import (
	"image"
	"math"
	"strings"

	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/geom"
)

// Mode selects how the replacement's aspect ratio is reconciled with the
// placeholder content's.
type Mode string

const (
	// ModeStretch maps the replacement's corners onto the content's corners.
	ModeStretch Mode = "stretch"
	// ModeContain scales uniformly to fit inside the content, centered.
	ModeContain Mode = "contain"
	// ModeCover scales uniformly to fill the content, centered and cropped.
	ModeCover Mode = "cover"
)

// ParseMode parses a fit mode name. The empty string is ModeStretch.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStretch:
		return ModeStretch, nil
	case ModeContain:
		return ModeContain, nil
	case ModeCover:
		return ModeCover, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown fit mode %q (want stretch, contain or cover)", s)
}

const (
	newtonIterations = 16
	newtonTolerance  = 1e-3 // canvas px
	jacobianStep     = 1e-6 // content units
	coverEps         = 1e-9
)

// Transform is a fitted replacement-to-canvas mapping. It is immutable and
// safe for concurrent use.
type Transform struct {
	Placement geom.Placement
	Mode      Mode

	// Source is the replacement raster's size in pixels.
	Source image.Point

	// H maps the unit content square onto the placement quad.
	H geom.Homography

	toContent   geom.Homography // replacement px -> content units
	fromContent geom.Homography
	hInv        geom.Homography
	matrix      geom.Homography // replacement px -> canvas, without warp

	// region is the part of the content square the replacement covers.
	region geom.Rect
}

// Fit builds the transform for a replacement of size src placed into a
// placeholder whose embedded content is content pixels large.
//
// A degenerate quad yields DEGENERATE_GEOMETRY. content is only consulted
// by the contain and cover modes.
func Fit(p geom.Placement, content, src image.Point, mode Mode) (*Transform, error) {
	if src.X <= 0 || src.Y <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "replacement has no pixels (%dx%d)", src.X, src.Y)
	}
	if mode == "" {
		mode = ModeStretch
	}

	h, err := geom.SquareToQuad(p.Quad)
	if err != nil {
		return nil, err
	}
	hInv, err := h.Inverse()
	if err != nil {
		return nil, err
	}

	sw, sh := float64(src.X), float64(src.Y)
	var toContent geom.Homography
	switch mode {
	case ModeStretch:
		toContent = geom.Scale(1/sw, 1/sh)
	case ModeContain, ModeCover:
		if content.X <= 0 || content.Y <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "%s fit needs the content size, got %dx%d", mode, content.X, content.Y)
		}
		cw, ch := float64(content.X), float64(content.Y)
		s := math.Min(cw/sw, ch/sh)
		if mode == ModeCover {
			s = math.Max(cw/sw, ch/sh)
		}
		ox, oy := (cw-s*sw)/2, (ch-s*sh)/2
		toContent = geom.Scale(s/cw, s/ch).Then(geom.Translate(ox/cw, oy/ch))
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown fit mode %q", mode)
	}

	fromContent, err := toContent.Inverse()
	if err != nil {
		return nil, err
	}

	t := &Transform{
		Placement:   p,
		Mode:        mode,
		Source:      src,
		H:           h,
		toContent:   toContent,
		fromContent: fromContent,
		hInv:        hInv,
		matrix:      toContent.Then(h),
	}

	tl, _ := toContent.Apply(geom.Pt(0, 0))
	br, _ := toContent.Apply(geom.Pt(sw, sh))
	t.region = geom.R(tl.X, tl.Y, br.X, br.Y).Intersect(geom.R(0, 0, 1, 1))
	return t, nil
}

// Matrix returns the projective part of the map, replacement pixels to
// canvas, ignoring any warp.
func (t *Transform) Matrix() geom.Homography { return t.matrix }

// IsAffine reports whether the whole map is affine: no warp and no
// perspective foreshortening.
func (t *Transform) IsAffine() bool {
	return t.Placement.Mesh == nil && t.matrix.IsAffine()
}

// ContentToCanvas maps a point in normalized content space to the canvas.
func (t *Transform) ContentToCanvas(n geom.Point) (geom.Point, bool) {
	c, ok := t.H.Apply(n)
	if !ok {
		return geom.Point{}, false
	}
	if t.Placement.Mesh != nil {
		c = c.Add(t.Placement.Mesh.Displacement(n.X, n.Y))
	}
	return c, true
}

// Forward maps a replacement pixel position to the canvas.
func (t *Transform) Forward(p geom.Point) (geom.Point, bool) {
	n, ok := t.toContent.Apply(p)
	if !ok {
		return geom.Point{}, false
	}
	return t.ContentToCanvas(n)
}

// Inverse maps a canvas position back to a replacement pixel position. The
// second result is false when the canvas position is not covered by the
// replacement.
func (t *Transform) Inverse(c geom.Point) (geom.Point, bool) {
	n, ok := t.canvasToContent(c)
	if !ok {
		return geom.Point{}, false
	}
	if n.X < t.region.Left-coverEps || n.X > t.region.Right+coverEps ||
		n.Y < t.region.Top-coverEps || n.Y > t.region.Bottom+coverEps {
		return geom.Point{}, false
	}
	return t.fromContent.Apply(n)
}

func (t *Transform) canvasToContent(c geom.Point) (geom.Point, bool) {
	n, ok := t.hInv.Apply(c)
	if t.Placement.Mesh == nil {
		return n, ok
	}
	if !ok {
		n = geom.Pt(0.5, 0.5)
	}

	for i := 0; i < newtonIterations; i++ {
		p, ok := t.ContentToCanvas(n)
		if !ok {
			return geom.Point{}, false
		}
		f := p.Sub(c)
		if math.Abs(f.X) < newtonTolerance && math.Abs(f.Y) < newtonTolerance {
			return n, true
		}

		px, okx := t.ContentToCanvas(n.Add(geom.Pt(jacobianStep, 0)))
		py, oky := t.ContentToCanvas(n.Add(geom.Pt(0, jacobianStep)))
		if !okx || !oky {
			return geom.Point{}, false
		}
		ju := px.Sub(p).Mul(1 / jacobianStep)
		jv := py.Sub(p).Mul(1 / jacobianStep)
		det := ju.X*jv.Y - jv.X*ju.Y
		if math.Abs(det) < 1e-12 {
			return geom.Point{}, false
		}
		du := (jv.Y*f.X - jv.X*f.Y) / det
		dv := (ju.X*f.Y - ju.Y*f.X) / det
		n = geom.Pt(n.X-du, n.Y-dv)
	}

	p, ok := t.ContentToCanvas(n)
	if !ok {
		return geom.Point{}, false
	}
	f := p.Sub(c)
	return n, math.Abs(f.X) < newtonTolerance && math.Abs(f.Y) < newtonTolerance
}

// Corners returns the canvas positions of the replacement's TL, TR, BR and
// BL corners.
func (t *Transform) Corners() geom.Quad {
	w, h := float64(t.Source.X), float64(t.Source.Y)
	var q geom.Quad
	for i, p := range []geom.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}} {
		q[i], _ = t.Forward(p)
	}
	return q
}

// Footprint returns the canvas bounding box of the covered region.
func (t *Transform) Footprint() geom.Rect {
	r := t.region
	if r.Empty() {
		return geom.Rect{}
	}
	edge := []geom.Point{{X: r.Left, Y: r.Top}, {X: r.Right, Y: r.Top}, {X: r.Right, Y: r.Bottom}, {X: r.Left, Y: r.Bottom}}

	// Without a warp the covered region is a convex quad; its corners bound it.
	steps := 1
	if t.Placement.Mesh != nil {
		steps = 64
	}

	first := true
	var out geom.Rect
	for i := range edge {
		a, b := edge[i], edge[(i+1)%4]
		for s := 0; s < steps; s++ {
			k := float64(s) / float64(steps)
			c, ok := t.ContentToCanvas(a.Mul(1 - k).Add(b.Mul(k)))
			if !ok {
				continue
			}
			if first {
				out = geom.R(c.X, c.Y, c.X, c.Y)
				first = false
				continue
			}
			out.Left = math.Min(out.Left, c.X)
			out.Top = math.Min(out.Top, c.Y)
			out.Right = math.Max(out.Right, c.X)
			out.Bottom = math.Max(out.Bottom, c.Y)
		}
	}
	return out
}
