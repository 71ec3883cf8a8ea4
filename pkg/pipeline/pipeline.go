// Package pipeline runs placeholder replacement jobs for mockupkit.
//
// A job takes one template, one placeholder name and one replacement raster
// and walks a fixed sequence of states:
//
//	Parsed → LayerLocated → GeometryResolved → TransformFitted → Rendered → Encoded
//
// Each arrow is a fallible step. A failing step short-circuits the job with
// a coded error from [github.com/matzehuels/mockupkit/pkg/errors]; Encoded is
// the only success state. Cancellation is checked between steps, so a job
// abandoned mid-way leaves nothing behind.
//
// The same Runner serves the CLI and the HTTP server so both behave
// identically and share the result cache.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	res, err := runner.Execute(ctx, pipeline.Job{
//	    Template:    templateBytes,
//	    Placeholder: "front_surface",
//	    Replacement: pngBytes,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("out.png", res.Output, 0644)
//
// Run many jobs with per-job failure isolation:
//
//	results := runner.Batch(ctx, jobs, 4)
//	for _, r := range results {
//	    fmt.Println(r.JobID, r.Status, r.Err)
//	}
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mockupkit/pkg/cache"
	"github.com/matzehuels/mockupkit/pkg/compose"
	"github.com/matzehuels/mockupkit/pkg/encode"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/fit"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultFormat is the output encoding when none is requested.
	DefaultFormat = encode.FormatPNG

	// DefaultQuality is the JPEG quality used when none is requested.
	DefaultQuality = encode.DefaultJPEGQuality

	// DefaultFit is the content fit mode.
	DefaultFit = fit.ModeStretch

	// DefaultMode is the compositing mode.
	DefaultMode = compose.ModeAuto
)

// =============================================================================
// Job States
// =============================================================================

// State is the last state a job reached.
type State string

// Job states in execution order. StatePending means nothing succeeded yet.
const (
	StatePending          State = "pending"
	StateParsed           State = "parsed"
	StateLayerLocated     State = "layer_located"
	StateGeometryResolved State = "geometry_resolved"
	StateTransformFitted  State = "transform_fitted"
	StateRendered         State = "rendered"
	StateEncoded          State = "encoded"
)

// States lists the job states in the order a job walks them.
var States = []State{
	StateParsed,
	StateLayerLocated,
	StateGeometryResolved,
	StateTransformFitted,
	StateRendered,
	StateEncoded,
}

// Status is the terminal outcome of a job.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// =============================================================================
// Options - Job Configuration
// =============================================================================

// Options configures how a job renders and encodes.
// This struct supports JSON serialization for server requests.
type Options struct {
	Format     string `json:"format,omitempty"`
	Quality    int    `json:"quality,omitempty"`
	Fit        string `json:"fit,omitempty"`
	Mode       string `json:"mode,omitempty"`
	SkipHidden bool   `json:"skip_hidden,omitempty"`
	Refresh    bool   `json:"refresh,omitempty"`

	// MaxSize downscales the output so neither side exceeds it. Zero keeps
	// the canvas size.
	MaxSize int `json:"max_size,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	format    encode.Format
	fit       fit.Mode
	mode      compose.Mode
	validated bool
}

// ValidateAndSetDefaults parses the string options and fills defaults.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	format, err := encode.ParseFormat(o.Format)
	if err != nil {
		return err
	}
	o.format = format
	o.Format = string(format)

	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	if o.Quality < 1 || o.Quality > 100 {
		return errors.New(errors.ErrCodeInvalidInput, "quality must be in [1,100], got %d", o.Quality)
	}

	fm, err := fit.ParseMode(o.Fit)
	if err != nil {
		return err
	}
	o.fit = fm
	o.Fit = string(fm)

	mode, err := compose.ParseMode(o.Mode)
	if err != nil {
		return err
	}
	o.mode = mode
	o.Mode = string(mode)

	if o.MaxSize < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "max size must be >= 0, got %d", o.MaxSize)
	}

	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}

	o.validated = true
	return nil
}

// EncodeOptions returns the encoder settings. Call after ValidateAndSetDefaults.
func (o Options) EncodeOptions() encode.Options {
	return encode.Options{Format: o.format, Quality: o.Quality}
}

// RenderKeyOpts returns the options that participate in the cache key.
func (o Options) RenderKeyOpts(placeholder string) cache.RenderKeyOpts {
	quality := 0
	if o.format == encode.FormatJPEG {
		quality = o.Quality
	}
	return cache.RenderKeyOpts{
		Placeholder: placeholder,
		Fit:         string(o.fit),
		Mode:        string(o.mode),
		Format:      string(o.format),
		Quality:     quality,
		SkipHidden:  o.SkipHidden,
		MaxSize:     o.MaxSize,
	}
}

// =============================================================================
// Job and Result
// =============================================================================

// Job is one replacement request: a template, a placeholder name and the
// encoded replacement raster.
type Job struct {
	// ID identifies the job in logs and results. A UUID is assigned when empty.
	ID string

	// Template is the raw template bytes (a .mockup bundle or bare manifest).
	Template []byte

	// TemplateName labels the template in logs and errors.
	TemplateName string

	// Placeholder is the layer name to replace (case-insensitive).
	Placeholder string

	// Replacement is the encoded replacement raster (PNG, JPEG, WebP, ...).
	Replacement []byte

	Options Options
}

// Result is the outcome of one job. Err is nil only when Status is
// StatusSucceeded, in which case State is StateEncoded and Output holds the
// encoded image.
type Result struct {
	JobID  string
	State  State
	Status Status

	Output []byte
	Format encode.Format
	Width  int
	Height int

	// Warnings are non-fatal findings (unknown manifest keys, skipped hidden
	// placeholder, unsolvable non-target placeholders).
	Warnings []string

	Stats    Stats
	CacheHit bool
	Err      error
}

// OK reports whether the job succeeded.
func (r *Result) OK() bool {
	return r.Status == StatusSucceeded
}

// Stats contains job execution statistics.
type Stats struct {
	Layers     int           // layers in the parsed template
	Covered    int           // canvas pixels written by the replacement
	Mode       compose.Mode  // compositing mode actually used
	ParseTime  time.Duration // template parse + replacement decode
	FitTime    time.Duration // locate + resolve + fit
	RenderTime time.Duration
	EncodeTime time.Duration
	Total      time.Duration
}
