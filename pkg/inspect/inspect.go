// Package inspect reports what a template contains: its layer tree and the
// resolved geometry of its placeholders. It backs the "inspect" commands
// used to debug templates before wiring them into a catalog.
package inspect

import (
	"image"
	"strings"

	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/fit"
	"github.com/matzehuels/mockupkit/pkg/geom"
	"github.com/matzehuels/mockupkit/pkg/locate"
	"github.com/matzehuels/mockupkit/pkg/placement"
)

// Entry is one layer in a listing, in document order.
type Entry struct {
	Path      string    `json:"path"` // group names joined by "/", ending in Name
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Depth     int       `json:"depth"`
	Bounds    geom.Rect `json:"bounds"`
	Visible   bool      `json:"visible"`   // own flag
	Effective bool      `json:"effective"` // own flag combined with ancestors
	Opacity   float64   `json:"opacity"`
	Pixels    bool      `json:"pixels"` // carries a raster or a fill
	Children  int       `json:"children,omitempty"`
}

// Layers lists every layer of doc in document order.
func Layers(doc *document.Document) []Entry {
	var out []Entry
	var path []string
	_ = document.Walk(doc, func(v document.Visit) error {
		path = append(path[:v.Depth], v.Layer.Name)
		l := v.Layer
		out = append(out, Entry{
			Path:      strings.Join(path, "/"),
			Name:      l.Name,
			Kind:      l.Kind.String(),
			Depth:     v.Depth,
			Bounds:    l.Bounds,
			Visible:   l.Visible,
			Effective: v.Visible,
			Opacity:   l.Opacity,
			Pixels:    l.Pixels != nil || l.Fill != nil || (l.Content != nil && l.Content.Pixels != nil),
			Children:  len(l.Children),
		})
		return nil
	})
	return out
}

// PlaceholderInfo is the resolved geometry of one placeholder.
type PlaceholderInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Bounds  geom.Rect `json:"bounds"`
	Visible bool      `json:"visible"` // effective
	Opacity float64   `json:"opacity"` // effective

	// Content is the embedded content's native size (zero when unknown).
	Content  image.Point `json:"content"`
	Embedded bool        `json:"embedded"` // embedded pixels present

	// Quad is the resolved perspective quad (synthesized from bounds when
	// the template stores none). ExplicitQuad tells which.
	Quad         geom.Quad `json:"quad"`
	ExplicitQuad bool      `json:"explicit_quad"`

	// Homography maps content pixel coordinates onto the canvas (before
	// any warp). Zero when the geometry is degenerate.
	Homography geom.Homography `json:"homography"`
	Affine     bool            `json:"affine"`

	Warp *WarpInfo `json:"warp,omitempty"`

	// Footprint is the canvas box the content covers, warp included.
	Footprint geom.Rect `json:"footprint"`

	// Error describes why the geometry could not be resolved or fitted.
	Error string `json:"error,omitempty"`
}

// WarpInfo summarizes the stored warp, whether or not it is applied.
type WarpInfo struct {
	Style           string  `json:"style"`
	Enabled         bool    `json:"enabled"`
	Rows            int     `json:"rows"`
	Cols            int     `json:"cols"`
	MaxDisplacement float64 `json:"max_displacement"`
	Applied         bool    `json:"applied"` // survived resolution
}

// Placeholder describes the placeholder named name. Locator errors are
// returned; geometry errors are reported in PlaceholderInfo.Error so that a
// broken placement can still be inspected.
func Placeholder(doc *document.Document, name string) (*PlaceholderInfo, error) {
	m, err := locate.Find(doc, name)
	if err != nil {
		return nil, err
	}
	return describe(m), nil
}

// Placeholders describes every placeholder in document order.
func Placeholders(doc *document.Document) ([]*PlaceholderInfo, error) {
	ms, err := locate.FindAll(doc)
	if err != nil {
		return nil, err
	}
	out := make([]*PlaceholderInfo, len(ms))
	for i, m := range ms {
		out[i] = describe(m)
	}
	return out, nil
}

func describe(m *locate.Match) *PlaceholderInfo {
	l := m.Layer
	info := &PlaceholderInfo{
		Name:    l.Name,
		Path:    strings.Join(m.Path, "/"),
		Bounds:  l.Bounds,
		Visible: m.Visible,
		Opacity: m.Opacity,
	}
	if c := l.Content; c != nil {
		info.Content = image.Pt(c.Width, c.Height)
		info.Embedded = c.Pixels != nil
	}
	if p := l.Placement; p != nil {
		info.ExplicitQuad = p.Quad != nil
		if w := p.Warp; w != nil && w.Mesh != nil {
			info.Warp = &WarpInfo{
				Style:           w.Style,
				Enabled:         w.Enabled,
				Rows:            w.Mesh.Rows,
				Cols:            w.Mesh.Cols,
				MaxDisplacement: w.Mesh.MaxDisplacement(),
			}
		}
	}

	p, err := placement.Resolve(l)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Quad = p.Quad
	if info.Warp != nil {
		info.Warp.Applied = p.Mesh != nil
	}

	src := info.Content
	if src.X <= 0 || src.Y <= 0 {
		src = image.Pt(max(1, int(l.Bounds.Width())), max(1, int(l.Bounds.Height())))
	}
	t, err := fit.Fit(p, info.Content, src, fit.ModeStretch)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Homography = t.Matrix()
	info.Affine = t.IsAffine()
	info.Footprint = t.Footprint()
	return info
}
