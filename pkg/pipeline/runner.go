package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/mockupkit/pkg/cache"
	"github.com/matzehuels/mockupkit/pkg/compose"
	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/encode"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/geom"
	"github.com/matzehuels/mockupkit/pkg/locate"
	"github.com/matzehuels/mockupkit/pkg/observability"
	"github.com/matzehuels/mockupkit/pkg/placement"
)

// Runner executes jobs with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different jobs.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// execution carries the intermediate values of one job.
type execution struct {
	job  Job
	opts Options
	res  *Result

	doc       *document.Document
	repl      image.Image
	match     *locate.Match
	hidden    bool
	placement geom.Placement
	target    *compose.Target
	composite *compose.Result
}

type step struct {
	state State
	verb  string
	stat  *time.Duration
	run   func() error
}

// Execute runs one job through every state. The returned Result is never
// nil; on failure its State is the last state reached and the error is also
// returned (and stored in Result.Err).
func (r *Runner) Execute(ctx context.Context, job Job) (out *Result, err error) {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	res := &Result{JobID: job.ID, State: StatePending}
	hooks := observability.Pipeline()
	hooks.OnJobStart(ctx, job.ID, job.Placeholder)

	finish := func(err error) (*Result, error) {
		res.Stats.Total = time.Since(start)
		switch {
		case err == nil:
			res.Status = StatusSucceeded
		case errors.Is(err, errors.ErrCodeCanceled):
			res.Status = StatusCanceled
		default:
			res.Status = StatusFailed
		}
		res.Err = err
		hooks.OnJobComplete(ctx, job.ID, string(res.Status), res.Stats.Total, err)
		return res, err
	}
	defer func() {
		if p := recover(); p != nil {
			r.Logger.Error("job panicked", "job", job.ID, "panic", p)
			out, err = finish(errors.New(errors.ErrCodeInternal, "job panicked: %v", p))
		}
	}()

	opts := job.Options
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return finish(fmt.Errorf("invalid options: %w", err))
	}
	if err := validateJob(job); err != nil {
		return finish(err)
	}
	logger := opts.Logger.With("job", shortID(job.ID))
	res.Format = opts.format

	key := r.Keyer.RenderKey(cache.Hash(job.Template), cache.Hash(job.Replacement), opts.RenderKeyOpts(job.Placeholder))
	if !opts.Refresh && r.load(ctx, key, res) {
		logger.Debug("cache hit", "placeholder", job.Placeholder)
		return finish(nil)
	}

	e := &execution{job: job, opts: opts, res: res}
	steps := []step{
		{StateParsed, "parse", &res.Stats.ParseTime, e.parse},
		{StateLayerLocated, "locate", &res.Stats.FitTime, e.locate},
		{StateGeometryResolved, "resolve", &res.Stats.FitTime, e.resolve},
		{StateTransformFitted, "fit", &res.Stats.FitTime, e.fit},
		{StateRendered, "render", &res.Stats.RenderTime, e.render},
		{StateEncoded, "encode", &res.Stats.EncodeTime, e.encode},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			logger.Debug("job canceled", "before", s.state)
			return finish(errors.Wrap(errors.ErrCodeCanceled, err, "job canceled before %s", s.verb))
		}
		t := time.Now()
		err := s.run()
		d := time.Since(t)
		*s.stat += d
		hooks.OnStageComplete(ctx, job.ID, string(s.state), d, err)
		if err != nil {
			logger.Debug("job failed", "step", s.verb, "err", err)
			return finish(fmt.Errorf("%s: %w", s.verb, err))
		}
		res.State = s.state
	}

	r.store(ctx, key, res)

	logger.Info("rendered mockup",
		"template", job.TemplateName,
		"placeholder", job.Placeholder,
		"mode", res.Stats.Mode,
		"size", fmt.Sprintf("%dx%d", res.Width, res.Height),
		"covered", res.Stats.Covered,
		"duration", time.Since(start))
	for _, w := range res.Warnings {
		logger.Warn(w)
	}

	return finish(nil)
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func validateJob(job Job) error {
	if len(job.Template) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no template")
	}
	if err := errors.ValidateLayerName(job.Placeholder); err != nil {
		return err
	}
	if len(job.Replacement) == 0 {
		return errors.New(errors.ErrCodeInvalidImage, "no replacement image")
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// =============================================================================
// Steps
// =============================================================================

func (e *execution) parse() error {
	doc, err := document.ParseBytes(e.job.Template)
	if err != nil {
		if e.job.TemplateName != "" {
			return fmt.Errorf("template %s: %w", e.job.TemplateName, err)
		}
		return err
	}
	repl, _, err := encode.Decode(e.job.Replacement)
	if err != nil {
		return err
	}
	e.doc, e.repl = doc, repl
	e.res.Width, e.res.Height = doc.Width, doc.Height
	e.res.Stats.Layers = doc.LayerCount()
	e.res.Warnings = append(e.res.Warnings, doc.Warnings...)
	return nil
}

func (e *execution) locate() error {
	m, err := locate.Find(e.doc, e.job.Placeholder)
	if err != nil {
		return err
	}
	e.match = m
	if !m.Visible {
		if !e.opts.SkipHidden {
			return compose.Hidden(m)
		}
		e.hidden = true
		e.res.Warnings = append(e.res.Warnings, compose.Hidden(m).Message+"; template rendered unchanged")
	}
	return nil
}

// resolve and fit are no-ops for a skipped hidden placeholder.
func (e *execution) resolve() error {
	if e.hidden {
		return nil
	}
	p, err := placement.Resolve(e.match.Layer)
	if err != nil {
		return err
	}
	e.placement = p
	return nil
}

func (e *execution) fit() error {
	if e.hidden {
		return nil
	}
	t, err := compose.Fit(e.match, e.placement, e.repl, e.opts.fit)
	if err != nil {
		return err
	}
	e.target = t
	return nil
}

func (e *execution) render() error {
	c, err := compose.Composite(e.doc, e.target, e.opts.mode)
	if err != nil {
		return err
	}
	e.composite = c
	e.res.Stats.Mode = c.Mode
	e.res.Stats.Covered = c.Covered
	e.res.Warnings = append(e.res.Warnings, c.Warnings...)
	return nil
}

func (e *execution) encode() error {
	var img image.Image = e.composite.Canvas
	if n := e.opts.MaxSize; n > 0 {
		img = encode.Thumbnail(img, n, n)
		e.res.Width, e.res.Height = img.Bounds().Dx(), img.Bounds().Dy()
	}
	out, err := encode.EncodeBytes(img, e.opts.EncodeOptions())
	if err != nil {
		return err
	}
	e.res.Output = out
	return nil
}

// =============================================================================
// Cache
// =============================================================================

// cachedRender is the cache envelope for an encoded output.
type cachedRender struct {
	Output   []byte       `json:"output"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Layers   int          `json:"layers"`
	Covered  int          `json:"covered"`
	Mode     compose.Mode `json:"mode"`
	Warnings []string     `json:"warnings,omitempty"`
}

// load fills res from the cache and reports whether it hit.
func (r *Runner) load(ctx context.Context, key string, res *Result) bool {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "render")
		return false
	}
	var c cachedRender
	if err := json.Unmarshal(data, &c); err != nil || len(c.Output) == 0 {
		// Unreadable entry, recompute
		observability.Cache().OnCacheMiss(ctx, "render")
		return false
	}
	observability.Cache().OnCacheHit(ctx, "render")
	res.Output = c.Output
	res.Width, res.Height = c.Width, c.Height
	res.Stats.Layers = c.Layers
	res.Stats.Covered = c.Covered
	res.Stats.Mode = c.Mode
	res.Warnings = c.Warnings
	res.State = StateEncoded
	res.CacheHit = true
	return true
}

func (r *Runner) store(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(cachedRender{
		Output:   res.Output,
		Width:    res.Width,
		Height:   res.Height,
		Layers:   res.Stats.Layers,
		Covered:  res.Stats.Covered,
		Mode:     res.Stats.Mode,
		Warnings: res.Warnings,
	})
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLRender); err == nil {
		observability.Cache().OnCacheSet(ctx, "render", len(data))
	}
}
