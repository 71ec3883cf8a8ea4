package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/mockupkit/internal/config"
	"github.com/matzehuels/mockupkit/pkg/cache"
	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/document/documenttest"
	"github.com/matzehuels/mockupkit/pkg/encode"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/inspect"
	"github.com/matzehuels/mockupkit/pkg/pipeline"
)

const mugTemplate = `
name = "mug"
[canvas]
width = 120
height = 90
background = "#ffffff"

[[layers]]
name = "front_surface"
kind = "placeholder"
bounds = [20, 15, 100, 75]

[[layers]]
name = "handle"
kind = "raster"
bounds = [100, 30, 115, 60]
fill = "#333333"
`

// workspace holds a template, a config file and an image directory.
type workspace struct {
	dir      string
	template string
	config   string
	images   string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	w := workspace{
		dir:      dir,
		template: filepath.Join(dir, "mug.toml"),
		config:   filepath.Join(dir, "config.toml"),
		images:   filepath.Join(dir, "designs"),
	}
	mustWrite(t, w.template, []byte(mugTemplate))
	mustWrite(t, w.config, []byte("[cache]\nbackend = \"none\"\n"))
	mustWrite(t, filepath.Join(w.images, "red.png"), documenttest.PNG(documenttest.Solid(32, 24, color.NRGBA{R: 200, A: 255})))
	mustWrite(t, filepath.Join(w.images, "blue.png"), documenttest.PNG(documenttest.Solid(24, 32, color.NRGBA{B: 200, A: 255})))
	return w
}

func mustWrite(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the root command with args.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	cfg, _, err := encode.DecodeConfig(data)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		dir, input string
		format     encode.Format
		want       string
	}{
		{".", "designs/red.png", encode.FormatPNG, "result_red.png"},
		{"out", "blue.webp", encode.FormatJPEG, filepath.Join("out", "result_blue.jpg")},
		{"out", "a.b.jpeg", encode.FormatTIFF, filepath.Join("out", "result_a.b.tiff")},
	}
	for _, tt := range tests {
		if got := outputPath(tt.dir, tt.input, tt.format); got != tt.want {
			t.Errorf("outputPath(%q, %q, %s) = %q, want %q", tt.dir, tt.input, tt.format, got, tt.want)
		}
	}
}

func TestIsImage(t *testing.T) {
	tests := map[string]bool{
		"a.png": true, "b.JPG": true, "c.jpeg": true, "d.webp": true,
		"e.gif": false, "f.toml": false, "noext": false,
	}
	for name, want := range tests {
		if got := isImage(name); got != want {
			t.Errorf("isImage(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestJobFlagsOptions(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	c.Config.Render.Format = "jpeg"
	c.Config.Render.Quality = 70
	c.Config.Render.Fit = "contain"

	opts := (&jobFlags{}).options(c)
	if opts.Format != "jpeg" || opts.Quality != 70 || opts.Fit != "contain" {
		t.Errorf("options() = %+v, want config defaults", opts)
	}

	opts = (&jobFlags{format: "png", quality: 90, fit: "cover", skipHidden: true, maxSize: 512}).options(c)
	if opts.Format != "png" || opts.Quality != 90 || opts.Fit != "cover" || !opts.SkipHidden || opts.MaxSize != 512 {
		t.Errorf("options() = %+v, want flag overrides", opts)
	}
	if opts.Logger != c.Logger {
		t.Error("options() should carry the CLI logger")
	}
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()
	c := New(io.Discard, log.InfoLevel)

	c.Config.Cache.Backend = config.BackendNone
	cc, err := c.newCache(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cc.(*cache.NullCache); !ok {
		t.Errorf("backend none: got %T, want *cache.NullCache", cc)
	}

	c.Config.Cache.Backend = config.BackendFile
	c.Config.Cache.Dir = t.TempDir()
	cc, err = c.newCache(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cc.(*cache.FileCache); !ok {
		t.Errorf("backend file: got %T, want *cache.FileCache", cc)
	}

	cc, _ = c.newCache(ctx, true)
	if _, ok := cc.(*cache.NullCache); !ok {
		t.Errorf("noCache: got %T, want *cache.NullCache", cc)
	}
}

func TestNewKeyer(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	opts := cache.RenderKeyOpts{}

	plain := c.newKeyer(false).RenderKey("t", "r", opts)

	c.Config.Cache.Backend = config.BackendRedis
	c.Config.Cache.Redis.Prefix = "mk:test:"
	if got := c.newKeyer(false).RenderKey("t", "r", opts); got != "mk:test:"+plain {
		t.Errorf("redis RenderKey = %q, want prefix on %q", got, plain)
	}
	if got := c.newKeyer(true).RenderKey("t", "r", opts); got != plain {
		t.Errorf("noCache RenderKey = %q, want %q", got, plain)
	}
}

func TestOpenCatalogUnconfigured(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	if _, err := c.openCatalog(context.Background(), ""); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("openCatalog() error = %v, want INVALID_INPUT", err)
	}
}

func TestLoadTemplateDirectory(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, document.ManifestTOML), []byte(mugTemplate))

	data, err := loadTemplate(dir)
	if err != nil {
		t.Fatalf("loadTemplate() error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatal("directory template should be bundled as a zip")
	}
	doc, err := document.ParseBytes(data)
	if err != nil {
		t.Fatalf("ParseBytes(bundle) error: %v", err)
	}
	if doc.Name != "mug" {
		t.Errorf("doc.Name = %q, want mug", doc.Name)
	}

	if _, err := loadTemplate(filepath.Join(dir, "missing")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("loadTemplate(missing) error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestFindImages(t *testing.T) {
	w := newWorkspace(t)
	mustWrite(t, filepath.Join(w.images, "notes.txt"), []byte("skip me"))

	got, err := findImages(w.images)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(w.images, "blue.png"), filepath.Join(w.images, "red.png")}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("findImages() = %v, want %v", got, want)
	}

	if _, err := findImages(filepath.Join(w.dir, "nope")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("findImages(missing) error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestRenderCommand(t *testing.T) {
	w := newWorkspace(t)
	out := filepath.Join(w.dir, "out", "mug.jpg")

	err := execute(t, "render", w.template, filepath.Join(w.images, "red.png"),
		"--layer", "Front_Surface", "-o", out, "--config", w.config)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	_, format, err := encode.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %q, want jpeg (from the .jpg extension)", format)
	}
	if gw, gh := decodeSize(t, out); gw != 120 || gh != 90 {
		t.Errorf("output size = %dx%d, want 120x90", gw, gh)
	}
}

func TestRenderCommandMaxSize(t *testing.T) {
	w := newWorkspace(t)
	out := filepath.Join(w.dir, "out", "small.png")

	err := execute(t, "render", w.template, filepath.Join(w.images, "red.png"),
		"--layer", "front_surface", "--max-size", "60", "-o", out, "--config", w.config)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if gw, gh := decodeSize(t, out); gw != 60 || gh != 45 {
		t.Errorf("output size = %dx%d, want 60x45", gw, gh)
	}
}

func TestRenderCommandErrors(t *testing.T) {
	w := newWorkspace(t)
	img := filepath.Join(w.images, "red.png")

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"unknown layer", []string{"render", w.template, img, "--layer", "back", "--config", w.config}, errors.ErrCodeNotFound},
		{"wrong kind", []string{"render", w.template, img, "--layer", "handle", "--config", w.config}, errors.ErrCodeWrongLayerKind},
		{"missing image", []string{"render", w.template, "nope.png", "--layer", "front_surface", "--config", w.config}, errors.ErrCodeFileNotFound},
		{"bad format", []string{"render", w.template, img, "--layer", "front_surface", "-f", "gif", "--config", w.config}, errors.ErrCodeInvalidFormat},
		{"missing config", []string{"render", w.template, img, "--layer", "front_surface", "--config", "nope.toml"}, errors.ErrCodeFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := execute(t, tt.args...)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestBatchCommand(t *testing.T) {
	w := newWorkspace(t)
	mustWrite(t, filepath.Join(w.images, "broken.png"), []byte("not a png"))
	out := filepath.Join(w.dir, "results")

	err := execute(t, "batch", "--template", w.template, "--layer", "front_surface",
		"--images", w.images, "--out", out, "--no-tui", "--workers", "2", "--config", w.config)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 images failed") {
		t.Fatalf("batch error = %v, want 1 of 3 failed", err)
	}

	for _, name := range []string{"result_red.png", "result_blue.png"} {
		if gw, gh := decodeSize(t, filepath.Join(out, name)); gw != 120 || gh != 90 {
			t.Errorf("%s size = %dx%d, want 120x90", name, gw, gh)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "result_broken.png")); !os.IsNotExist(err) {
		t.Error("a failed image should not produce an output file")
	}
}

func TestInspectLayersJSON(t *testing.T) {
	w := newWorkspace(t)
	out := filepath.Join(w.dir, "layers.json")

	if err := execute(t, "inspect", "layers", w.template, "--json", "-o", out, "--config", w.config); err != nil {
		t.Fatalf("inspect layers error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var entries []inspect.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "front_surface" || entries[0].Kind != "placeholder" {
		t.Errorf("entries = %+v, want front_surface placeholder then handle", entries)
	}
}

func TestInspectLayersDOT(t *testing.T) {
	w := newWorkspace(t)
	out := filepath.Join(w.dir, "layers.dot")

	if err := execute(t, "inspect", "layers", w.template, "--dot", "-o", out, "--config", w.config); err != nil {
		t.Fatalf("inspect layers --dot error: %v", err)
	}
	data, _ := os.ReadFile(out)
	if !strings.HasPrefix(string(data), "digraph layers") {
		t.Errorf("DOT output starts with %q", string(data[:min(len(data), 20)]))
	}
}

func TestInspectPlaceholderCommand(t *testing.T) {
	w := newWorkspace(t)
	if err := execute(t, "inspect", "placeholder", w.template, "front_surface", "--config", w.config); err != nil {
		t.Errorf("inspect placeholder error: %v", err)
	}
	if err := execute(t, "inspect", "placeholder", w.template, "back", "--config", w.config); !errors.IsNotFound(err) {
		t.Errorf("inspect placeholder back error = %v, want NOT_FOUND", err)
	}
}

func TestPatternCommand(t *testing.T) {
	w := newWorkspace(t)

	out := filepath.Join(w.dir, "pattern.png")
	if err := execute(t, "pattern", "--width", "100", "--height", "80", "--grid", "20", "-o", out, "--config", w.config); err != nil {
		t.Fatalf("pattern error: %v", err)
	}
	if gw, gh := decodeSize(t, out); gw != 100 || gh != 80 {
		t.Errorf("pattern size = %dx%d, want 100x80", gw, gh)
	}

	// sized from the placeholder bounds (80x60)
	out = filepath.Join(w.dir, "fitted.png")
	if err := execute(t, "pattern", "--template", w.template, "--layer", "front_surface", "-o", out, "--config", w.config); err != nil {
		t.Fatalf("pattern --template error: %v", err)
	}
	if gw, gh := decodeSize(t, out); gw != 80 || gh != 60 {
		t.Errorf("fitted pattern size = %dx%d, want 80x60", gw, gh)
	}
}

func TestProductsCommands(t *testing.T) {
	w := newWorkspace(t)
	catalogPath := filepath.Join(w.dir, "products.toml")
	mustWrite(t, catalogPath, []byte(`
[[products]]
id = "mug_001"
name = "Premium Ceramic Mug"

  [[products.templates]]
  name = "front"
  path = "mug.toml"
  placeholder = "front_surface"
`))

	if err := execute(t, "products", "list", "--catalog", catalogPath, "--config", w.config); err != nil {
		t.Errorf("products list error: %v", err)
	}

	out := filepath.Join(w.dir, "product-out")
	err := execute(t, "products", "render", "mug_001", filepath.Join(w.images, "red.png"),
		"--catalog", catalogPath, "-o", out, "--config", w.config)
	if err != nil {
		t.Fatalf("products render error: %v", err)
	}
	if gw, gh := decodeSize(t, filepath.Join(out, "mug_001_front.png")); gw != 120 || gh != 90 {
		t.Errorf("product render size = %dx%d, want 120x90", gw, gh)
	}

	err = execute(t, "products", "render", "nope", filepath.Join(w.images, "red.png"), "--catalog", catalogPath, "--config", w.config)
	if !errors.IsNotFound(err) {
		t.Errorf("products render nope error = %v, want NOT_FOUND", err)
	}
}

func TestBatchProgressModel(t *testing.T) {
	canceled := false
	m := NewBatchProgressModel("test", 3, func() { canceled = true })

	var model tea.Model = m
	model, _ = model.Update(batchRowMsg{index: 0, row: BatchRow{Input: "a.png", Status: pipeline.StatusSucceeded}})
	model, _ = model.Update(batchRowMsg{index: 2, row: BatchRow{Input: "c.png", Status: pipeline.StatusFailed, Err: errors.New(errors.ErrCodeInvalidImage, "bad")}})

	got := model.(BatchProgressModel)
	if got.Done != 2 || got.Failed != 1 {
		t.Errorf("Done, Failed = %d, %d, want 2, 1", got.Done, got.Failed)
	}
	if view := got.View(); !strings.Contains(view, "2/3") || !strings.Contains(view, "c.png") {
		t.Errorf("View() = %q, want progress and recent rows", view)
	}

	if _, cmd := model.Update(batchDoneMsg{}); cmd == nil {
		t.Error("batchDoneMsg should quit the program")
	}

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || !canceled || !model.(BatchProgressModel).Canceled {
		t.Error("q should cancel the batch and quit")
	}
}

func TestRenderBatchSummary(t *testing.T) {
	rows := []BatchRow{
		{Input: "designs/red.png", Output: "results/result_red.png", Status: pipeline.StatusSucceeded},
		{Input: "designs/bad.png", Status: pipeline.StatusFailed, Err: errors.New(errors.ErrCodeInvalidImage, "decode image")},
		{Input: "designs/blue.png", Status: pipeline.StatusFailed, Err: errors.New(errors.ErrCodePlaceholderHidden, "placeholder is hidden")},
	}
	out := renderBatchSummary(rows)
	for _, want := range []string{"red.png", "result_red.png", "bad.png", "INVALID_IMAGE", "blue.png", "PLACEHOLDER_HIDDEN", iconWarning} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestBatchRowIcon(t *testing.T) {
	tests := []struct {
		name string
		row  BatchRow
		want string
	}{
		{"succeeded", BatchRow{Status: pipeline.StatusSucceeded}, iconSuccess},
		{"hidden", BatchRow{Status: pipeline.StatusFailed, Err: fmt.Errorf("locate: %w", errors.New(errors.ErrCodePlaceholderHidden, "hidden"))}, iconWarning},
		{"not found", BatchRow{Status: pipeline.StatusFailed, Err: errors.New(errors.ErrCodeNotFound, "missing")}, iconError},
		{"write failed", BatchRow{Status: pipeline.StatusSucceeded, Err: fmt.Errorf("disk full")}, iconError},
		{"canceled", BatchRow{Status: pipeline.StatusCanceled}, iconError},
	}
	for _, tt := range tests {
		if got := tt.row.icon(); got != tt.want {
			t.Errorf("%s: icon() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestListenURL(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://localhost:8080",
		"0.0.0.0:9000":   "http://localhost:9000",
		"example.com:80": "http://example.com:80",
		"garbage":        "garbage",
	}
	for addr, want := range tests {
		if got := listenURL(addr); got != want {
			t.Errorf("listenURL(%q) = %q, want %q", addr, got, want)
		}
	}
}
