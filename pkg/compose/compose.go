// Package compose rasterizes a template with one placeholder's content
// replaced.
//
// # Modes
//
//   - [ModeFlatten] composites every visible layer back-to-front with
//     Porter-Duff "over". Group visibility and opacity multiply down to
//     their children; group bounds are ignored. The target placeholder
//     renders the replacement, other placeholders render their embedded
//     content, each clipped to its own bounds only.
//   - [ModePatch] starts from the template's stored composite and draws the
//     replacement over the placeholder's footprint.
//   - [ModeAuto] patches when the template has a composite but no layer
//     pixels, and flattens otherwise.
//
// Rendering is driven per destination pixel: each pixel center is mapped
// back through the fitted transform and the replacement is sampled
// bilinearly in premultiplied RGBA.
//
// [Render] and [Composite] allocate a fresh canvas per call and never
// modify the document, so concurrent renders of one document are safe.
package compose

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/fit"
	"github.com/matzehuels/mockupkit/pkg/geom"
	"github.com/matzehuels/mockupkit/pkg/locate"
	"github.com/matzehuels/mockupkit/pkg/placement"
)

// Mode selects the compositing strategy.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeFlatten Mode = "flatten"
	ModePatch   Mode = "patch"
)

// ParseMode parses a compositing mode. The empty string is ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeFlatten:
		return ModeFlatten, nil
	case ModePatch:
		return ModePatch, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown compositing mode %q (want auto, flatten or patch)", s)
}

// Request is one replacement job against a parsed document.
type Request struct {
	Placeholder string
	Replacement image.Image
	Fit         fit.Mode
	Mode        Mode

	// SkipHidden renders the template unchanged, with a warning, instead of
	// failing with PLACEHOLDER_HIDDEN when the placeholder is not visible.
	SkipHidden bool
}

// Target is a located and fitted placeholder ready to be drawn.
type Target struct {
	Match     *locate.Match
	Transform *fit.Transform
	Source    image.Image
}

// Result is a completed render.
type Result struct {
	Canvas *image.RGBA
	Mode   Mode // the mode actually used

	Target *Target // nil when a hidden placeholder was skipped

	// Covered counts canvas pixels the replacement was drawn into.
	Covered int

	Warnings []string
}

// Render locates, resolves, fits and composites in one call.
func Render(doc *document.Document, req Request) (*Result, error) {
	if req.Replacement == nil {
		return nil, errors.New(errors.ErrCodeInvalidImage, "no replacement image")
	}
	m, err := locate.Find(doc, req.Placeholder)
	if err != nil {
		return nil, err
	}
	if !m.Visible {
		if !req.SkipHidden {
			return nil, Hidden(m)
		}
		res, err := Composite(doc, nil, req.Mode)
		if err != nil {
			return nil, err
		}
		res.Warnings = append(res.Warnings, Hidden(m).Message+"; template rendered unchanged")
		return res, nil
	}

	p, err := placement.Resolve(m.Layer)
	if err != nil {
		return nil, err
	}
	t, err := Fit(m, p, req.Replacement, req.Fit)
	if err != nil {
		return nil, err
	}
	return Composite(doc, t, req.Mode)
}

// Hidden builds the PLACEHOLDER_HIDDEN error for m.
func Hidden(m *locate.Match) *errors.Error {
	return errors.New(errors.ErrCodePlaceholderHidden, "placeholder %q is hidden", m.Layer.Name)
}

// Fit fits a replacement onto a located placeholder's placement.
func Fit(m *locate.Match, p geom.Placement, replacement image.Image, mode fit.Mode) (*Target, error) {
	c := m.Layer.Content
	content := image.Point{}
	if c != nil {
		content = image.Pt(c.Width, c.Height)
	}
	tr, err := fit.Fit(p, content, replacement.Bounds().Size(), mode)
	if err != nil {
		return nil, fmt.Errorf("fit %q: %w", m.Layer.Name, err)
	}
	return &Target{Match: m, Transform: tr, Source: replacement}, nil
}

// Composite renders doc with target drawn in place of its placeholder's
// content. A nil target renders the template as stored.
func Composite(doc *document.Document, target *Target, mode Mode) (*Result, error) {
	if doc == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no document")
	}
	switch mode {
	case "", ModeAuto:
		mode = ModeFlatten
		if doc.Composite != nil && !doc.HasLayerPixels() {
			mode = ModePatch
		}
	case ModeFlatten:
	case ModePatch:
		if doc.Composite == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "template %q has no stored composite to patch", doc.Name)
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown compositing mode %q", mode)
	}

	r := &renderer{
		doc:    doc,
		target: target,
		canvas: image.NewRGBA(doc.Canvas()),
	}
	res := &Result{Canvas: r.canvas, Mode: mode, Target: target}

	if mode == ModePatch {
		xdraw.Draw(r.canvas, r.canvas.Bounds(), doc.Composite, doc.Composite.Bounds().Min, xdraw.Src)
		if target != nil {
			res.Covered = r.drawTarget(target.Match.Opacity)
		}
		return res, nil
	}

	if err := r.flatten(); err != nil {
		return nil, err
	}
	res.Covered = r.covered
	res.Warnings = r.warnings
	return res, nil
}

type renderer struct {
	doc      *document.Document
	target   *Target
	canvas   *image.RGBA
	covered  int
	warnings []string
}

func (r *renderer) flatten() error {
	if bg := r.doc.Background; bg != nil {
		xdraw.Draw(r.canvas, r.canvas.Bounds(), image.NewUniform(bg), image.Point{}, xdraw.Src)
	}

	return document.Walk(r.doc, func(v document.Visit) error {
		if !v.Visible || v.Opacity <= 0 {
			if v.Layer.Kind == document.KindGroup {
				return document.ErrSkipChildren
			}
			return nil
		}
		l := v.Layer
		switch l.Kind {
		case document.KindRaster:
			r.drawRaster(l, v.Opacity)
		case document.KindPlaceholder:
			if r.target != nil && l == r.target.Match.Layer {
				r.covered = r.drawTarget(v.Opacity)
				return nil
			}
			r.drawEmbedded(l, v.Opacity)
		}
		return nil
	})
}

func (r *renderer) drawRaster(l *document.Layer, opacity float64) {
	dr := l.Bounds.Image().Intersect(r.canvas.Bounds())
	if dr.Empty() {
		return
	}
	var mask image.Image
	if opacity < 1 {
		mask = image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})
	}

	switch {
	case l.Pixels != nil:
		origin := l.Bounds.Image().Min
		sp := l.Pixels.Bounds().Min.Add(dr.Min.Sub(origin))
		xdraw.DrawMask(r.canvas, dr, l.Pixels, sp, mask, image.Point{}, xdraw.Over)
	case l.Fill != nil:
		xdraw.DrawMask(r.canvas, dr, image.NewUniform(l.Fill), image.Point{}, mask, image.Point{}, xdraw.Over)
	}
}

// drawEmbedded renders a non-target placeholder's own content through its
// own placement. Geometry problems here only produce warnings; they do not
// concern the placeholder being replaced.
func (r *renderer) drawEmbedded(l *document.Layer, opacity float64) {
	if l.Content == nil || l.Content.Pixels == nil {
		return
	}
	p, err := placement.Resolve(l)
	if err == nil {
		var tr *fit.Transform
		tr, err = fit.Fit(p, image.Pt(l.Content.Width, l.Content.Height), l.Content.Pixels.Bounds().Size(), fit.ModeStretch)
		if err == nil {
			warp(r.canvas, tr, toRGBA(l.Content.Pixels), p.Bounds.Image(), opacity)
			return
		}
	}
	r.warnings = append(r.warnings, fmt.Sprintf("placeholder %q skipped: %s", l.Name, errors.UserMessage(err)))
}

func (r *renderer) drawTarget(opacity float64) int {
	t := r.target
	return warp(r.canvas, t.Transform, toRGBA(t.Source), t.Transform.Placement.Bounds.Image(), opacity)
}

// warp draws src through tr into dst, limited to clip, and returns the
// number of pixels written.
func warp(dst *image.RGBA, tr *fit.Transform, src *image.RGBA, clip image.Rectangle, opacity float64) int {
	area := tr.Footprint().Image().Intersect(clip).Intersect(dst.Rect)
	n := 0
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			p, ok := tr.Inverse(geom.Pt(float64(x)+0.5, float64(y)+0.5))
			if !ok {
				continue
			}
			over(dst.Pix, dst.PixOffset(x, y), sampleBilinear(src, p.X, p.Y), opacity)
			n++
		}
	}
	return n
}
