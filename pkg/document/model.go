package document

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/matzehuels/mockupkit/pkg/geom"
)

// Kind distinguishes the layer variants.
type Kind int

const (
	KindRaster Kind = iota
	KindGroup
	KindPlaceholder
)

// String returns the manifest spelling of k.
func (k Kind) String() string {
	switch k {
	case KindRaster:
		return "raster"
	case KindGroup:
		return "group"
	case KindPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a manifest kind name to a Kind. "smart_object" is
// accepted as an alias for placeholder.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raster", "pixel", "":
		return KindRaster, true
	case "group":
		return KindGroup, true
	case "placeholder", "smart_object", "smartobject":
		return KindPlaceholder, true
	}
	return 0, false
}

// Document is a parsed layered template.
type Document struct {
	Name          string
	FormatVersion int
	Width, Height int

	// Background fills the canvas before any layer is drawn; nil means
	// transparent.
	Background color.Color

	// Composite is the stored pre-flattened preview, if the template
	// carries one. It always matches the canvas size.
	Composite image.Image

	// Layers are stored back-to-front.
	Layers []*Layer

	// Warnings collects non-fatal findings from parsing, such as unknown
	// manifest keys.
	Warnings []string
}

// Canvas returns the canvas rectangle.
func (d *Document) Canvas() image.Rectangle {
	return image.Rect(0, 0, d.Width, d.Height)
}

// HasLayerPixels reports whether any layer carries pixels or a fill.
// Documents without them can only be rendered by patching the composite.
func (d *Document) HasLayerPixels() bool {
	found := false
	_ = Walk(d, func(v Visit) error {
		l := v.Layer
		if l.Pixels != nil || l.Fill != nil || (l.Content != nil && l.Content.Pixels != nil) {
			found = true
			return ErrStop
		}
		return nil
	})
	return found
}

// Count returns the number of layers of each kind.
func (d *Document) Count() map[Kind]int {
	out := make(map[Kind]int, 3)
	_ = Walk(d, func(v Visit) error {
		out[v.Layer.Kind]++
		return nil
	})
	return out
}

// LayerCount returns the total number of layers, groups included.
func (d *Document) LayerCount() int {
	n := 0
	for _, c := range d.Count() {
		n += c
	}
	return n
}

// Layer is one node of the layer tree. Fields outside the layer's Kind are
// always zero.
type Layer struct {
	Name    string
	Kind    Kind
	Bounds  geom.Rect
	Visible bool
	Opacity float64 // [0,1]

	// Index is the z-order position within the parent, 0 being the bottom.
	Index int

	// Raster
	Source string      // asset path the pixels came from
	Pixels image.Image // drawn with its top-left corner at Bounds.Left/Top
	Fill   color.Color // solid fill of Bounds when Pixels is nil

	// Group
	Children []*Layer

	// Placeholder
	Content   *Content
	Placement *Placement
}

// IsPlaceholder reports whether l is a placeholder layer.
func (l *Layer) IsPlaceholder() bool { return l != nil && l.Kind == KindPlaceholder }

// Content is the embedded raster behind a placeholder.
type Content struct {
	// Width and Height are the native size of the embedded raster, which is
	// independent of the placeholder's canvas bounds.
	Width, Height int

	Source string
	Pixels image.Image // optional
}

// Placement is a placeholder's geometric descriptor as stored in the
// template.
type Placement struct {
	Version int

	// Quad holds the canvas positions of the content's TL, TR, BR, BL
	// corners. Nil means the template only stores the bounding box.
	Quad *geom.Quad

	Warp *Warp
}

// Warp is a stored warp block.
type Warp struct {
	Version int
	Enabled bool
	Style   string // custom, arc, bulge, none
	Mesh    *geom.WarpMesh
}
