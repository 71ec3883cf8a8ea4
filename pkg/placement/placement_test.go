package placement

import (
	"testing"

	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/geom"
)

func placeholder(bounds geom.Rect, pl *document.Placement) *document.Layer {
	return &document.Layer{
		Name: "front", Kind: document.KindPlaceholder, Bounds: bounds, Visible: true, Opacity: 1,
		Content: &document.Content{Width: 10, Height: 10}, Placement: pl,
	}
}

func mesh(t *testing.T, d ...geom.Point) *geom.WarpMesh {
	t.Helper()
	m, err := geom.NewWarpMesh(2, 2, d)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestResolve_SynthesizesQuadFromBounds(t *testing.T) {
	p, err := Resolve(placeholder(geom.R(10, 20, 110, 70), nil))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := geom.Quad{{X: 10, Y: 20}, {X: 110, Y: 20}, {X: 110, Y: 70}, {X: 10, Y: 70}}
	if p.Quad != want {
		t.Errorf("Quad = %v, want %v", p.Quad, want)
	}
	if p.Mesh != nil || p.Warped() {
		t.Error("no mesh expected")
	}
}

func TestResolve_ExplicitQuad(t *testing.T) {
	q := geom.Quad{{X: 0, Y: 0}, {X: 200, Y: 20}, {X: 190, Y: 160}, {X: 10, Y: 150}}
	p, err := Resolve(placeholder(geom.R(0, 0, 200, 160), &document.Placement{Version: 1, Quad: &q}))
	if err != nil {
		t.Fatal(err)
	}
	if p.Quad != q || p.Bounds != geom.R(0, 0, 200, 160) {
		t.Errorf("placement = %+v", p)
	}
}

func TestResolve_Warp(t *testing.T) {
	bulge := mesh(t, geom.Pt(0, 0), geom.Pt(3, 0), geom.Pt(0, 0), geom.Pt(0, 0))
	noise := mesh(t, geom.Pt(1e-9, 0), geom.Pt(0, 0), geom.Pt(0, -1e-8), geom.Pt(0, 0))

	tests := []struct {
		name string
		warp *document.Warp
		keep bool
	}{
		{"active", &document.Warp{Version: 1, Enabled: true, Style: "bulge", Mesh: bulge}, true},
		{"disabled", &document.Warp{Version: 1, Enabled: false, Style: "bulge", Mesh: bulge}, false},
		{"style none", &document.Warp{Version: 1, Enabled: true, Style: "none", Mesh: bulge}, false},
		{"identity noise", &document.Warp{Version: 1, Enabled: true, Style: "custom", Mesh: noise}, false},
		{"no mesh", &document.Warp{Version: 1, Enabled: true, Style: "none"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Resolve(placeholder(geom.R(0, 0, 10, 10), &document.Placement{Version: 1, Warp: tt.warp}))
			if err != nil {
				t.Fatal(err)
			}
			if (p.Mesh != nil) != tt.keep {
				t.Errorf("mesh kept = %v, want %v", p.Mesh != nil, tt.keep)
			}
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	if _, err := Resolve(nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Resolve(nil) error = %v", err)
	}

	raster := &document.Layer{Name: "bg", Kind: document.KindRaster}
	if _, err := Resolve(raster); !errors.Is(err, errors.ErrCodeWrongLayerKind) {
		t.Errorf("Resolve(raster) error = %v", err)
	}

	if _, err := Resolve(placeholder(geom.Rect{}, nil)); !errors.Is(err, errors.ErrCodeDegenerateGeometry) {
		t.Errorf("Resolve(empty bounds) error = %v", err)
	}
}

func TestResolve_DegenerateQuadIsNotAResolveError(t *testing.T) {
	q := geom.Quad{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 200, Y: 0}, {X: 0, Y: 100}}
	p, err := Resolve(placeholder(geom.Rect{}, &document.Placement{Version: 1, Quad: &q}))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if p.Bounds != q.Bounds() {
		t.Errorf("Bounds = %v, want quad bounds", p.Bounds)
	}
}
