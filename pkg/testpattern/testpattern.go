// Package testpattern generates calibration images for checking how a
// template's placement distorts content.
//
// A pattern is a white raster with a red cross every Grid pixels, each
// labeled with its own "(x,y)" content coordinate. Rendering it into a
// placeholder shows where every control point lands on the canvas, which
// makes perspective and warp errors easy to spot.
package testpattern

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/fonts"
)

// Default values.
const (
	DefaultGrid     = 50
	DefaultFontSize = 11
	crossArm        = 5
	labelOffset     = 7
	maxSide         = 1 << 14
)

var (
	background = color.RGBA{255, 255, 255, 255}
	crossColor = color.RGBA{255, 0, 0, 255}
	gridColor  = color.RGBA{225, 225, 225, 255}
	labelColor = color.RGBA{0, 0, 0, 255}
)

// Options configures a pattern.
type Options struct {
	Width, Height int
	Grid          int     // control point spacing in pixels
	FontSize      float64 // label size; 0 uses DefaultFontSize
	NoLabels      bool
	Lines         bool // draw faint grid lines through the control points
}

// Pattern is a generated calibration image and its control points.
type Pattern struct {
	Image  *image.RGBA
	Points []image.Point // column-major, as drawn
}

// Generate draws a pattern.
func Generate(opts Options) (*Pattern, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.Width > maxSide || opts.Height > maxSide {
		return nil, errors.New(errors.ErrCodeInvalidInput, "pattern size %dx%d out of range (1..%d)", opts.Width, opts.Height, maxSide)
	}
	if opts.Grid == 0 {
		opts.Grid = DefaultGrid
	}
	if opts.Grid < 2 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "grid spacing must be at least 2, got %d", opts.Grid)
	}
	if opts.FontSize == 0 {
		opts.FontSize = DefaultFontSize
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	if opts.Lines {
		for x := 0; x < opts.Width; x += opts.Grid {
			fill(img, image.Rect(x, 0, x+1, opts.Height), gridColor)
		}
		for y := 0; y < opts.Height; y += opts.Grid {
			fill(img, image.Rect(0, y, opts.Width, y+1), gridColor)
		}
	}

	var face font.Face
	if !opts.NoLabels {
		face = fonts.Face(opts.FontSize)
	}

	p := &Pattern{Image: img}
	for x := 0; x < opts.Width; x += opts.Grid {
		for y := 0; y < opts.Height; y += opts.Grid {
			p.Points = append(p.Points, image.Pt(x, y))
			// 2px wide arms centered on the point
			fill(img, image.Rect(x-crossArm, y-1, x+crossArm+1, y+1), crossColor)
			fill(img, image.Rect(x-1, y-crossArm, x+1, y+crossArm+1), crossColor)
			if face != nil {
				label(img, face, x+labelOffset, y+labelOffset, fmt.Sprintf("(%d,%d)", x, y))
			}
		}
	}
	return p, nil
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// label draws text with its top-left corner at (x, y).
func label(img *image.RGBA, face font.Face, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
