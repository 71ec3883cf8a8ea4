package document

import (
	"archive/zip"
	"bytes"
	stderrors "errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"math"
	"os"
	"path"
	"strings"

	"github.com/matzehuels/mockupkit/pkg/encode"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/geom"
)

const (
	// ManifestTOML and ManifestJSON are the manifest names looked up at the
	// root of a bundle or template directory.
	ManifestTOML = "document.toml"
	ManifestJSON = "document.json"

	// FormatVersion is the only container version this package reads.
	FormatVersion = 1

	// MaxDepth bounds group nesting.
	MaxDepth = 256

	// MaxAssetBytes bounds a single uncompressed asset.
	MaxAssetBytes = 256 << 20

	// MaxCanvasSide bounds each canvas dimension and MaxCanvasPixels their
	// product, so a template cannot request a canvas that cannot be allocated.
	MaxCanvasSide   = 1 << 15
	MaxCanvasPixels = encode.MaxPixels
)

var zipMagic = []byte("PK\x03\x04")

// Options configures parsing.
type Options struct {
	// SkipPixels checks that referenced assets exist but does not decode
	// them. Useful when only the layer structure is needed.
	SkipPixels bool
}

// Open reads a template from a .mockup bundle, a bare manifest file, or a
// directory holding a manifest and its assets.
func Open(p string) (*Document, error) {
	return OpenWithOptions(p, Options{})
}

// OpenWithOptions is Open with explicit options.
func OpenWithOptions(p string, opts Options) (*Document, error) {
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "template %s not found", p)
		}
		return nil, fmt.Errorf("stat template: %w", err)
	}
	if info.IsDir() {
		return parseFS(os.DirFS(p), p, opts)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return ParseBytesWithOptions(data, opts)
}

// Parse reads a whole template from r.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses a template byte stream: a ZIP bundle when it starts
// with the ZIP magic, otherwise a bare TOML or JSON manifest.
func ParseBytes(data []byte) (*Document, error) {
	return ParseBytesWithOptions(data, Options{})
}

// ParseBytesWithOptions is ParseBytes with explicit options.
func ParseBytesWithOptions(data []byte, opts Options) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New(errors.ErrCodeMalformedDocument, "template is empty")
	}
	if !bytes.HasPrefix(data, zipMagic) {
		m, warnings, err := decodeManifest("manifest", data)
		if err != nil {
			return nil, err
		}
		return build(m, warnings, nil, opts)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && !stderrors.Is(err, zip.ErrInsecurePath) {
		return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "open template bundle")
	}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if err := errors.ValidatePath(f.Name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "bundle entry %q escapes the archive", f.Name)
		}
	}
	return parseFS(zr, "bundle", opts)
}

// parseFS locates the manifest at the root of fsys, or inside its single
// top-level directory for archives zipped from a folder.
func parseFS(fsys fs.FS, where string, opts Options) (*Document, error) {
	root, file, err := findManifest(fsys)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "%s", where)
	}
	if root != "." {
		if fsys, err = fs.Sub(fsys, root); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "%s", where)
		}
	}
	raw, err := readAsset(fsys, file)
	if err != nil {
		return nil, err
	}
	m, warnings, err := decodeManifest(file, raw)
	if err != nil {
		return nil, err
	}
	return build(m, warnings, fsys, opts)
}

func findManifest(fsys fs.FS) (dir, file string, err error) {
	for _, name := range []string{ManifestTOML, ManifestJSON} {
		if _, err := fs.Stat(fsys, name); err == nil {
			return ".", name, nil
		}
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return "", "", err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), "__MACOSX") {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 1 {
		for _, name := range []string{ManifestTOML, ManifestJSON} {
			if _, err := fs.Stat(fsys, path.Join(dirs[0], name)); err == nil {
				return dirs[0], name, nil
			}
		}
	}
	return "", "", fmt.Errorf("no %s or %s found", ManifestTOML, ManifestJSON)
}

func readAsset(fsys fs.FS, name string) ([]byte, error) {
	if err := errors.ValidatePath(name); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "asset %q", name)
	}
	if fsys == nil {
		return nil, errors.New(errors.ErrCodeMalformedDocument, "asset %q: a bare manifest cannot reference assets", name)
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "asset %q not found", name)
	}
	if info.Size() > MaxAssetBytes {
		return nil, errors.New(errors.ErrCodeMalformedDocument, "asset %q is too large (%d bytes)", name, info.Size())
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "read asset %q", name)
	}
	return data, nil
}

// builder turns a decoded manifest into a Document.
type builder struct {
	fsys     fs.FS
	opts     Options
	warnings []string
}

func build(m *manifest, warnings []string, fsys fs.FS, opts Options) (*Document, error) {
	b := &builder{fsys: fsys, opts: opts, warnings: warnings}

	version := m.FormatVersion
	if version == 0 {
		version = FormatVersion
	}
	if version != FormatVersion {
		return nil, errors.New(errors.ErrCodeUnsupportedFeature,
			"template format_version %d is not supported (want %d)", m.FormatVersion, FormatVersion)
	}
	if m.Canvas.Width <= 0 || m.Canvas.Height <= 0 {
		return nil, errors.New(errors.ErrCodeMalformedDocument,
			"canvas size must be positive, got %dx%d", m.Canvas.Width, m.Canvas.Height)
	}
	if m.Canvas.Width > MaxCanvasSide || m.Canvas.Height > MaxCanvasSide ||
		int64(m.Canvas.Width)*int64(m.Canvas.Height) > MaxCanvasPixels {
		return nil, errors.New(errors.ErrCodeUnsupportedFeature,
			"canvas %dx%d exceeds the size limit (%d px per side, %d px total)",
			m.Canvas.Width, m.Canvas.Height, MaxCanvasSide, MaxCanvasPixels)
	}

	d := &Document{
		Name:          m.Name,
		FormatVersion: version,
		Width:         m.Canvas.Width,
		Height:        m.Canvas.Height,
	}
	if m.Canvas.Background != "" {
		c, err := parseColor(m.Canvas.Background)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "canvas.background")
		}
		d.Background = c
	}
	if m.Canvas.Composite != "" {
		img, err := b.image(m.Canvas.Composite)
		if err != nil {
			return nil, err
		}
		if img != nil && img.Bounds().Size() != d.Canvas().Size() {
			return nil, errors.New(errors.ErrCodeMalformedDocument,
				"composite %q is %v, canvas is %dx%d", m.Canvas.Composite, img.Bounds().Size(), d.Width, d.Height)
		}
		d.Composite = img
	}

	if err := b.layers(d, m.Layers); err != nil {
		return nil, err
	}
	d.Warnings = b.warnings
	return d, nil
}

// layers converts the layer tree with an explicit stack.
func (b *builder) layers(d *Document, specs []layerSpec) error {
	type frame struct {
		spec  *layerSpec
		where string
		depth int
		dst   []*Layer
		idx   int
	}

	d.Layers = make([]*Layer, len(specs))
	stack := make([]frame, 0, len(specs))
	for i := range specs {
		stack = append(stack, frame{&specs[i], fmt.Sprintf("layers[%d]", i), 1, d.Layers, i})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > MaxDepth {
			return errors.New(errors.ErrCodeMalformedDocument, "%s: layers nested deeper than %d", f.where, MaxDepth)
		}
		l, err := b.layer(f.spec, f.where)
		if err != nil {
			return err
		}
		l.Index = f.idx
		f.dst[f.idx] = l

		if l.Kind != KindGroup {
			continue
		}
		l.Children = make([]*Layer, len(f.spec.Children))
		for i := range f.spec.Children {
			stack = append(stack, frame{
				spec:  &f.spec.Children[i],
				where: fmt.Sprintf("%s.children[%d]", f.where, i),
				depth: f.depth + 1,
				dst:   l.Children,
				idx:   i,
			})
		}
	}
	return nil
}

func (b *builder) layer(s *layerSpec, where string) (*Layer, error) {
	where = fmt.Sprintf("%s %q", where, s.Name)
	malformed := func(format string, args ...any) error {
		return errors.New(errors.ErrCodeMalformedDocument, "%s: %s", where, fmt.Sprintf(format, args...))
	}

	kind, ok := ParseKind(s.Kind)
	if !ok {
		return nil, malformed("unknown layer kind %q", s.Kind)
	}
	if s.Name == "" {
		b.warnings = append(b.warnings, where+": layer has no name")
	}

	l := &Layer{Name: s.Name, Kind: kind, Visible: true, Opacity: 1}
	if s.Visible != nil {
		l.Visible = *s.Visible
	}
	if s.Opacity != nil {
		if *s.Opacity < 0 || *s.Opacity > 1 || math.IsNaN(*s.Opacity) {
			return nil, malformed("opacity %g outside [0,1]", *s.Opacity)
		}
		l.Opacity = *s.Opacity
	}

	switch len(s.Bounds) {
	case 0:
	case 4:
		l.Bounds = geom.R(s.Bounds[0], s.Bounds[1], s.Bounds[2], s.Bounds[3])
		if l.Bounds.Right < l.Bounds.Left || l.Bounds.Bottom < l.Bounds.Top {
			return nil, malformed("bounds %v are inverted", s.Bounds)
		}
	default:
		return nil, malformed("bounds need 4 numbers (left, top, right, bottom), got %d", len(s.Bounds))
	}

	if kind != KindGroup && len(s.Children) > 0 {
		return nil, malformed("only groups may have children")
	}
	if kind != KindPlaceholder && (s.Content != nil || s.Placement != nil) {
		return nil, malformed("content and placement are only valid on placeholders")
	}
	if kind != KindRaster && (s.Source != "" || s.Fill != "") {
		return nil, malformed("source and fill are only valid on raster layers")
	}

	var err error
	switch kind {
	case KindRaster:
		err = b.raster(l, s, malformed)
	case KindPlaceholder:
		err = b.placeholder(l, s, where, malformed)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (b *builder) raster(l *Layer, s *layerSpec, malformed func(string, ...any) error) error {
	if s.Fill != "" {
		c, err := parseColor(s.Fill)
		if err != nil {
			return malformed("%v", err)
		}
		l.Fill = c
	}
	if s.Source == "" {
		return nil
	}
	l.Source = s.Source
	img, err := b.image(s.Source)
	if err != nil {
		return err
	}
	l.Pixels = img
	if len(s.Bounds) == 0 && img != nil {
		sz := img.Bounds().Size()
		l.Bounds = geom.R(0, 0, float64(sz.X), float64(sz.Y))
	}
	return nil
}

func (b *builder) placeholder(l *Layer, s *layerSpec, where string, malformed func(string, ...any) error) error {
	cs := s.Content
	if cs == nil {
		cs = &contentSpec{}
	}
	if cs.Linked {
		return errors.New(errors.ErrCodeUnsupportedFeature,
			"%s: placeholder links external content; embed the content in the template", where)
	}

	ps := s.Placement
	if ps == nil {
		ps = &placementSpec{}
	}
	p := &Placement{Version: ps.Version}
	if p.Version == 0 {
		p.Version = 1
	}
	if p.Version != 1 {
		return errors.New(errors.ErrCodeUnsupportedFeature, "%s: placement version %d is not supported", where, ps.Version)
	}

	if len(ps.Quad) > 0 {
		if len(ps.Quad) != 4 {
			return malformed("quad needs 4 corners, got %d", len(ps.Quad))
		}
		var q geom.Quad
		for i, c := range ps.Quad {
			if len(c) != 2 {
				return malformed("quad corner %d needs 2 numbers, got %d", i, len(c))
			}
			q[i] = geom.Pt(c[0], c[1])
		}
		p.Quad = &q
	}

	if ps.Warp != nil {
		w, err := warp(ps.Warp, where, malformed)
		if err != nil {
			return err
		}
		p.Warp = w
	}
	l.Placement = p

	if len(s.Bounds) == 0 {
		if p.Quad == nil {
			return malformed("placeholder needs bounds or a placement quad")
		}
		l.Bounds = p.Quad.Bounds()
	}

	c := &Content{Width: cs.Width, Height: cs.Height, Source: cs.Source}
	if c.Width < 0 || c.Height < 0 {
		return malformed("content size %dx%d is negative", c.Width, c.Height)
	}
	if cs.Source != "" {
		img, err := b.image(cs.Source)
		if err != nil {
			return err
		}
		c.Pixels = img
		if img != nil {
			sz := img.Bounds().Size()
			if c.Width == 0 && c.Height == 0 {
				c.Width, c.Height = sz.X, sz.Y
			} else if sz.X != c.Width || sz.Y != c.Height {
				b.warnings = append(b.warnings, fmt.Sprintf(
					"%s: content is declared %dx%d but %s is %dx%d", where, c.Width, c.Height, cs.Source, sz.X, sz.Y))
			}
		}
	}
	if c.Width == 0 {
		c.Width = int(math.Round(l.Bounds.Width()))
	}
	if c.Height == 0 {
		c.Height = int(math.Round(l.Bounds.Height()))
	}
	if c.Width <= 0 || c.Height <= 0 {
		return malformed("content has no size")
	}
	l.Content = c
	return nil
}

func warp(ws *warpSpec, where string, malformed func(string, ...any) error) (*Warp, error) {
	w := &Warp{Version: ws.Version, Enabled: true, Style: strings.ToLower(ws.Style)}
	if w.Version == 0 {
		w.Version = 1
	}
	if w.Version != 1 {
		return nil, errors.New(errors.ErrCodeUnsupportedFeature, "%s: warp version %d is not supported", where, ws.Version)
	}
	if ws.Enabled != nil {
		w.Enabled = *ws.Enabled
	}
	if w.Style == "" {
		w.Style = "custom"
	}

	disp := make([]geom.Point, len(ws.Displacements))
	for i, d := range ws.Displacements {
		if len(d) != 2 {
			return nil, malformed("warp displacement %d needs 2 numbers, got %d", i, len(d))
		}
		disp[i] = geom.Pt(d[0], d[1])
	}
	if w.Style == "none" && ws.Rows == 0 && ws.Cols == 0 && len(disp) == 0 {
		return w, nil
	}
	mesh, err := geom.NewWarpMesh(ws.Rows, ws.Cols, disp)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "%s", where)
	}
	w.Mesh = mesh
	return w, nil
}

// image loads and, unless SkipPixels is set, decodes an asset.
func (b *builder) image(name string) (image.Image, error) {
	data, err := readAsset(b.fsys, name)
	if err != nil {
		return nil, err
	}
	if b.opts.SkipPixels {
		return nil, nil
	}
	img, _, err := encode.Decode(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedDocument, err, "asset %q", name)
	}
	return img, nil
}
