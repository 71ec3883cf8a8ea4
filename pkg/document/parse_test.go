package document_test

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/document/documenttest"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/geom"
)

const mugTOML = `
format_version = 1
name = "Ceramic mug"

[canvas]
width = 40
height = 30
background = "#ffffff"

[[layers]]
name = "background"
kind = "raster"
bounds = [0, 0, 40, 30]
fill = "#eeeeee"

[[layers]]
name = "product"
kind = "group"

  [[layers.children]]
  name = "shadow"
  kind = "raster"
  source = "layers/shadow.png"
  bounds = [5, 5, 15, 15]
  opacity = 0.5

  [[layers.children]]
  name = "front_surface"
  kind = "placeholder"
  bounds = [10, 5, 30, 25]
    [layers.children.content]
    width = 20
    height = 20
    source = "so/front.png"
    [layers.children.placement]
    version = 1
    quad = [[10, 6], [30, 5], [29, 25], [11, 24]]
      [layers.children.placement.warp]
      version = 1
      style = "arc"
      rows = 2
      cols = 3
      displacements = [[0, 0], [0, -2], [0, 0], [0, 0], [0, -1.5], [0, 0]]
`

func mugBundle() []byte {
	return documenttest.Bundle(mugTOML, map[string]image.Image{
		"layers/shadow.png": documenttest.Solid(10, 10, color.Black),
		"so/front.png":      documenttest.Pattern(20, 20),
	})
}

func TestParseBytes_Bundle(t *testing.T) {
	d, err := document.ParseBytes(mugBundle())
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}

	if d.Name != "Ceramic mug" || d.Width != 40 || d.Height != 30 {
		t.Errorf("header = %q %dx%d", d.Name, d.Width, d.Height)
	}
	if d.Background == nil {
		t.Error("Background not parsed")
	}
	if len(d.Layers) != 2 {
		t.Fatalf("len(Layers) = %d, want 2", len(d.Layers))
	}

	bg := d.Layers[0]
	if bg.Kind != document.KindRaster || bg.Fill == nil || bg.Index != 0 {
		t.Errorf("background = %+v", bg)
	}

	group := d.Layers[1]
	if group.Kind != document.KindGroup || len(group.Children) != 2 || group.Index != 1 {
		t.Fatalf("product group = %+v", group)
	}

	shadow := group.Children[0]
	if shadow.Pixels == nil || shadow.Opacity != 0.5 {
		t.Errorf("shadow = %+v", shadow)
	}

	ph := group.Children[1]
	if !ph.IsPlaceholder() {
		t.Fatalf("front_surface kind = %v", ph.Kind)
	}
	if ph.Content.Width != 20 || ph.Content.Height != 20 || ph.Content.Pixels == nil {
		t.Errorf("content = %+v", ph.Content)
	}
	if ph.Placement.Quad == nil || ph.Placement.Quad[1] != geom.Pt(30, 5) {
		t.Errorf("quad = %v", ph.Placement.Quad)
	}
	w := ph.Placement.Warp
	if w == nil || !w.Enabled || w.Style != "arc" || w.Mesh.Rows != 2 || w.Mesh.Cols != 3 {
		t.Fatalf("warp = %+v", w)
	}
	if got := w.Mesh.At(1, 1); got != geom.Pt(0, -1.5) {
		t.Errorf("mesh(1,1) = %v", got)
	}
	if len(d.Warnings) != 0 {
		t.Errorf("Warnings = %v", d.Warnings)
	}
}

func TestParseBytes_BareJSON(t *testing.T) {
	manifest := `{
  "name": "flat",
  "canvas": {"width": 200, "height": 150},
  "layers": [
    {"name": "Front_Surface", "kind": "placeholder", "bounds": [0, 0, 200, 150]}
  ]
}`
	d, err := document.ParseBytes([]byte(manifest))
	if err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
	ph := d.Layers[0]
	if ph.Content.Width != 200 || ph.Content.Height != 150 {
		t.Errorf("content size defaults to bounds, got %dx%d", ph.Content.Width, ph.Content.Height)
	}
	if ph.Placement == nil || ph.Placement.Quad != nil || ph.Placement.Version != 1 {
		t.Errorf("placement = %+v", ph.Placement)
	}
	if !ph.Visible || ph.Opacity != 1 {
		t.Errorf("defaults visible=%v opacity=%v", ph.Visible, ph.Opacity)
	}
}

func TestParseBytes_BoundsFromQuad(t *testing.T) {
	manifest := `
[canvas]
width = 100
height = 100
[[layers]]
name = "p"
kind = "smart_object"
  [layers.placement]
  quad = [[10, 10], [90, 20], [80, 90], [20, 80]]
`
	d, err := document.ParseBytes([]byte(manifest))
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Layers[0].Bounds; got != geom.R(10, 10, 90, 90) {
		t.Errorf("Bounds = %v, want quad bounds", got)
	}
}

func TestParseBytes_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		code     errors.Code
		contains string
	}{
		{"empty", []byte("  \n"), errors.ErrCodeMalformedDocument, "empty"},
		{"toml syntax", []byte("[canvas\nwidth = 1"), errors.ErrCodeMalformedDocument, "manifest:"},
		{"json syntax", []byte("{\n\"canvas\": {,}\n}"), errors.ErrCodeMalformedDocument, "manifest:2"},
		{"truncated zip", mugBundle()[:60], errors.ErrCodeMalformedDocument, "bundle"},
		{"zip without manifest", documenttest.Zip(map[string][]byte{"readme.txt": []byte("hi")}), errors.ErrCodeMalformedDocument, "no document.toml"},
		{"zip slip", documenttest.Zip(map[string][]byte{"document.toml": []byte(mugTOML), "../evil.png": []byte("x")}), errors.ErrCodeMalformedDocument, "escapes"},
		{"missing asset", documenttest.Bundle(mugTOML, nil), errors.ErrCodeMalformedDocument, "not found"},
		{"bare manifest asset", []byte(mugTOML), errors.ErrCodeMalformedDocument, "cannot reference assets"},
		{"canvas size", []byte("[canvas]\nwidth = 0\nheight = 5\n"), errors.ErrCodeMalformedDocument, "canvas size"},
		{"unknown kind", layerDoc(`kind = "adjustment"`), errors.ErrCodeMalformedDocument, "unknown layer kind"},
		{"bounds arity", layerDoc(`bounds = [1, 2, 3]`), errors.ErrCodeMalformedDocument, "bounds need 4"},
		{"inverted bounds", layerDoc(`bounds = [10, 10, 0, 0]`), errors.ErrCodeMalformedDocument, "inverted"},
		{"opacity range", layerDoc(`opacity = 1.5`), errors.ErrCodeMalformedDocument, "opacity"},
		{"bad fill", layerDoc(`fill = "#12"`), errors.ErrCodeMalformedDocument, "invalid color"},
		{"placeholder without geometry", []byte("[canvas]\nwidth = 5\nheight = 5\n[[layers]]\nname = \"p\"\nkind = \"placeholder\"\n"), errors.ErrCodeMalformedDocument, "bounds or a placement quad"},
		{"quad arity", phDoc("quad = [[0,0],[1,0],[1,1]]"), errors.ErrCodeMalformedDocument, "4 corners"},
		{"mesh too small", phDoc("[layers.placement.warp]\nrows = 1\ncols = 3\ndisplacements = [[0,0],[0,0],[0,0]]"), errors.ErrCodeMalformedDocument, "at least 2x2"},
		{"mesh arity", phDoc("[layers.placement.warp]\nrows = 2\ncols = 2\ndisplacements = [[0,0],[0,0],[0,0]]"), errors.ErrCodeMalformedDocument, "needs 4"},
		{"format version", []byte("format_version = 2\n[canvas]\nwidth = 5\nheight = 5\n"), errors.ErrCodeUnsupportedFeature, "format_version 2"},
		{"placement version", phDoc("version = 3"), errors.ErrCodeUnsupportedFeature, "placement version 3"},
		{"warp version", phDoc("[layers.placement.warp]\nversion = 2\nrows = 2\ncols = 2\ndisplacements = [[0,0],[0,0],[0,0],[0,0]]"), errors.ErrCodeUnsupportedFeature, "warp version 2"},
		{"huge canvas", []byte("[canvas]\nwidth = 2147483647\nheight = 2147483647\n"), errors.ErrCodeUnsupportedFeature, "size limit"},
		{"canvas side", []byte("[canvas]\nwidth = 40000\nheight = 10\n"), errors.ErrCodeUnsupportedFeature, "size limit"},
		{"canvas pixels", []byte("[canvas]\nwidth = 20000\nheight = 20000\n"), errors.ErrCodeUnsupportedFeature, "size limit"},
		{"oversized asset", documenttest.Zip(map[string][]byte{
			document.ManifestTOML: []byte("[canvas]\nwidth = 5\nheight = 5\n[[layers]]\nname = \"bg\"\nkind = \"raster\"\nbounds = [0,0,5,5]\nsource = \"big.png\"\n"),
			"big.png":             documenttest.PNGHeader(60000, 60000),
		}), errors.ErrCodeMalformedDocument, "pixel limit"},
		{"linked content", []byte("[canvas]\nwidth = 5\nheight = 5\n[[layers]]\nname = \"p\"\nkind = \"placeholder\"\nbounds = [0,0,5,5]\n[layers.content]\nlinked = true\n"), errors.ErrCodeUnsupportedFeature, "embed the content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := document.ParseBytes(tt.data)
			if !errors.Is(err, tt.code) {
				t.Fatalf("ParseBytes() error = %v, want %s", err, tt.code)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func layerDoc(extra string) []byte {
	return []byte(fmt.Sprintf("[canvas]\nwidth = 5\nheight = 5\n[[layers]]\nname = \"x\"\n%s\n", extra))
}

func phDoc(placement string) []byte {
	return []byte(fmt.Sprintf("[canvas]\nwidth = 5\nheight = 5\n[[layers]]\nname = \"p\"\nkind = \"placeholder\"\nbounds = [0,0,5,5]\n[layers.placement]\n%s\n", placement))
}

func TestParseBytes_DepthLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`{"canvas": {"width": 5, "height": 5}, "layers": [`)
	depth := document.MaxDepth + 5
	for i := 0; i < depth; i++ {
		sb.WriteString(`{"name": "g", "kind": "group", "children": [`)
	}
	for i := 0; i < depth; i++ {
		sb.WriteString(`]}`)
	}
	sb.WriteString(`]}`)

	_, err := document.ParseBytes([]byte(sb.String()))
	if !errors.Is(err, errors.ErrCodeMalformedDocument) || !strings.Contains(err.Error(), "nested deeper") {
		t.Errorf("deep nesting error = %v", err)
	}
}

func TestParseBytes_UnknownKeysWarn(t *testing.T) {
	d, err := document.ParseBytes([]byte("[canvas]\nwidth = 5\nheight = 5\nblend_mode = \"multiply\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Warnings) != 1 || !strings.Contains(d.Warnings[0], "blend_mode") {
		t.Errorf("Warnings = %v", d.Warnings)
	}
}

func TestParseBytesWithOptions_SkipPixels(t *testing.T) {
	d, err := document.ParseBytesWithOptions(mugBundle(), document.Options{SkipPixels: true})
	if err != nil {
		t.Fatal(err)
	}
	if d.Layers[1].Children[0].Pixels != nil {
		t.Error("pixels decoded despite SkipPixels")
	}
	if d.Layers[1].Children[1].Content.Width != 20 {
		t.Error("declared content size lost")
	}
}

func TestParseBytes_NestedBundleDir(t *testing.T) {
	data := documenttest.Zip(map[string][]byte{
		"mug/document.toml":     []byte(mugTOML),
		"mug/layers/shadow.png": documenttest.PNG(documenttest.Solid(10, 10, color.Black)),
		"mug/so/front.png":      documenttest.PNG(documenttest.Pattern(20, 20)),
	})
	if _, err := document.ParseBytes(data); err != nil {
		t.Fatalf("ParseBytes() error: %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	bundle := filepath.Join(dir, "mug.mockup")
	if err := os.WriteFile(bundle, mugBundle(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := document.Open(bundle); err != nil {
		t.Errorf("Open(bundle) error: %v", err)
	}

	tpl := filepath.Join(dir, "tpl")
	must(t, os.MkdirAll(filepath.Join(tpl, "layers"), 0o755))
	must(t, os.MkdirAll(filepath.Join(tpl, "so"), 0o755))
	must(t, os.WriteFile(filepath.Join(tpl, "document.toml"), []byte(mugTOML), 0o644))
	must(t, os.WriteFile(filepath.Join(tpl, "layers", "shadow.png"), documenttest.PNG(documenttest.Solid(10, 10, color.Black)), 0o644))
	must(t, os.WriteFile(filepath.Join(tpl, "so", "front.png"), documenttest.PNG(documenttest.Pattern(20, 20)), 0o644))
	if _, err := document.Open(tpl); err != nil {
		t.Errorf("Open(dir) error: %v", err)
	}

	if _, err := document.Open(filepath.Join(dir, "missing.mockup")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("Open(missing) error = %v, want FILE_NOT_FOUND", err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
