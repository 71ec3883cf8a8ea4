// Package placement resolves a placeholder layer's stored descriptor into
// the geometry the fitter consumes.
package placement

import (
	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/geom"
)

// Resolve returns the placement of a placeholder layer.
//
// A layer without an explicit quad gets a rectangle synthesized from its
// bounds. A warp that is disabled, styled "none", or whose displacements
// are all below geom.IdentityEpsilon is dropped, leaving a quad-only
// placement. Quad validity is not checked here; fitting reports
// DEGENERATE_GEOMETRY.
func Resolve(l *document.Layer) (geom.Placement, error) {
	if l == nil {
		return geom.Placement{}, errors.New(errors.ErrCodeInvalidInput, "no layer to resolve")
	}
	if !l.IsPlaceholder() {
		return geom.Placement{}, errors.New(errors.ErrCodeWrongLayerKind,
			"layer %q is a %s layer, not a placeholder", l.Name, l.Kind)
	}

	p := geom.Placement{Bounds: l.Bounds}
	pl := l.Placement
	if pl != nil && pl.Quad != nil {
		p.Quad = *pl.Quad
	} else {
		if l.Bounds.Empty() {
			return geom.Placement{}, errors.New(errors.ErrCodeDegenerateGeometry,
				"placeholder %q has empty bounds %v and no quad", l.Name, l.Bounds)
		}
		p.Quad = l.Bounds.Quad()
	}
	if p.Bounds.Empty() {
		p.Bounds = p.Quad.Bounds()
	}

	if pl != nil && activeWarp(pl.Warp) {
		p.Mesh = pl.Warp.Mesh
	}
	return p, nil
}

// activeWarp reports whether a stored warp actually deforms anything.
func activeWarp(w *document.Warp) bool {
	if w == nil || !w.Enabled || w.Style == "none" || w.Mesh == nil {
		return false
	}
	return !w.Mesh.IsIdentity()
}
