// Package server exposes the render pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz         liveness check
//	GET  /products        catalog listing
//	GET  /products/{id}   one catalog product
//	POST /process         multipart upload, returns the rendered image
//
// POST /process takes the replacement image in the "file" field. The
// optional "product" and "template" fields pick a catalog template; without
// them the server's default template is used. "layer", "format", "fit",
// "quality" and "max_size" override the job options.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/mockupkit/pkg/catalog"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/observability"
	"github.com/matzehuels/mockupkit/pkg/pipeline"
)

// DefaultMaxUpload bounds a /process request body.
const DefaultMaxUpload = 32 << 20

// Options configures a Server.
type Options struct {
	Runner  *pipeline.Runner
	Catalog catalog.Store // nil serves an empty catalog
	Logger  *log.Logger

	// Template and Layer are used when a request names no product.
	Template     []byte
	TemplateName string
	Layer        string

	// Defaults are the job options requests start from.
	Defaults pipeline.Options

	MaxUpload int64 // bytes; 0 means DefaultMaxUpload
}

// Server handles mockup requests.
type Server struct {
	opts   Options
	logger *log.Logger
	router chi.Router
}

// New creates a server. A runner is required.
func New(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "server needs a runner")
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	s := &Server{opts: opts, logger: opts.Logger}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleProducts)
		r.Get("/{id}", s.handleProduct)
	})
	r.Post("/process", s.handleProcess)
	return r
}

// logRequests logs each request and reports it to the HTTP hooks.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, d)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", d,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if s.opts.Catalog == nil {
		writeJSON(w, http.StatusOK, []catalog.Product{})
		return
	}
	products, err := s.opts.Catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.opts.Catalog == nil {
		s.writeError(w, r, "", errors.New(errors.ErrCodeNotFound, "product %q not found", id))
		return
	}
	p, err := s.opts.Catalog.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	jobID := uuid.NewString()
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUpload)
	if err := r.ParseMultipartForm(s.opts.MaxUpload); err != nil {
		s.writeError(w, r, jobID, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid multipart upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, jobID, errors.New(errors.ErrCodeInvalidInput, "missing file field"))
		return
	}
	defer file.Close()
	if err := errors.ValidateFilename(filepath.Base(header.Filename)); err != nil {
		s.writeError(w, r, jobID, err)
		return
	}
	replacement, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, jobID, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload"))
		return
	}

	job, err := s.buildJob(r, jobID, replacement)
	if err != nil {
		s.writeError(w, r, jobID, err)
		return
	}

	res, err := s.opts.Runner.Execute(ctx, job)
	if err != nil {
		s.writeError(w, r, jobID, err)
		return
	}

	w.Header().Set("Content-Type", res.Format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Output)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "result_"+jobID+"."+res.Format.Extension()))
	w.Header().Set("X-Job-ID", jobID)
	cacheStatus := "miss"
	if res.CacheHit {
		cacheStatus = "hit"
	}
	w.Header().Set("X-Cache", cacheStatus)
	for _, warn := range res.Warnings {
		w.Header().Add("X-Mockup-Warning", warn)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Output)
}

// buildJob resolves the template and options of a /process request.
func (s *Server) buildJob(r *http.Request, jobID string, replacement []byte) (pipeline.Job, error) {
	ctx := r.Context()
	opts := s.opts.Defaults
	opts.Logger = nil

	job := pipeline.Job{
		ID:           jobID,
		Template:     s.opts.Template,
		TemplateName: s.opts.TemplateName,
		Placeholder:  s.opts.Layer,
		Replacement:  replacement,
	}

	if productID := r.FormValue("product"); productID != "" {
		if s.opts.Catalog == nil {
			return job, errors.New(errors.ErrCodeNotFound, "product %q not found", productID)
		}
		p, err := s.opts.Catalog.Get(ctx, productID)
		if err != nil {
			return job, err
		}
		t, name, err := pickTemplate(p, r.FormValue("template"))
		if err != nil {
			return job, err
		}
		data, err := s.opts.Catalog.Template(ctx, t)
		if err != nil {
			return job, err
		}
		job.Template = data
		job.TemplateName = p.ID + "/" + name
		job.Placeholder = t.Placeholder
		if t.Fit != "" {
			opts.Fit = t.Fit
		}
	}
	if len(job.Template) == 0 {
		return job, errors.New(errors.ErrCodeInvalidInput, "no product given and no default template configured")
	}

	if layer := r.FormValue("layer"); layer != "" {
		if err := errors.ValidateLayerName(layer); err != nil {
			return job, err
		}
		job.Placeholder = layer
	}
	if f := r.FormValue("format"); f != "" {
		opts.Format = f
	}
	if f := r.FormValue("fit"); f != "" {
		opts.Fit = f
	}
	if q := r.FormValue("quality"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return job, errors.New(errors.ErrCodeInvalidInput, "quality %q is not a number", q)
		}
		opts.Quality = n
	}
	if m := r.FormValue("max_size"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			return job, errors.New(errors.ErrCodeInvalidInput, "max_size %q is not a number", m)
		}
		opts.MaxSize = n
	}
	job.Options = opts
	return job, nil
}

// pickTemplate returns the template called name, or the first one.
func pickTemplate(p *catalog.Product, name string) (catalog.Template, string, error) {
	for i, t := range p.Templates {
		tn := catalog.TemplateName(t, i)
		if name == "" || tn == name {
			return t, tn, nil
		}
	}
	if name == "" {
		return catalog.Template{}, "", errors.New(errors.ErrCodeNotFound, "product %q has no templates", p.ID)
	}
	return catalog.Template{}, "", errors.New(errors.ErrCodeNotFound, "product %q has no template %q", p.ID, name)
}

// =============================================================================
// Responses
// =============================================================================

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case stderrors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.IsNotFound(err), errors.Is(err, errors.ErrCodeFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrCodeMalformedDocument),
		errors.Is(err, errors.ErrCodeUnsupportedFeature),
		errors.Is(err, errors.ErrCodeDegenerateGeometry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrCodePlaceholderHidden):
		return http.StatusConflict
	case errors.Is(err, errors.ErrCodeInvalidInput),
		errors.Is(err, errors.ErrCodeInvalidImage),
		errors.Is(err, errors.ErrCodeInvalidFormat),
		errors.Is(err, errors.ErrCodeInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrCodeCanceled):
		return 499 // client closed request
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, jobID string, err error) {
	status := StatusFor(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	msg := errors.UserMessage(err)
	switch {
	case status == http.StatusInternalServerError:
		s.logger.Error("request failed", "path", r.URL.Path, "job", jobID, "error", err)
		msg = "internal error"
	case !errors.IsFatal(err):
		s.logger.Info("placeholder skipped", "path", r.URL.Path, "job", jobID, "reason", msg)
	default:
		s.logger.Debug("request rejected", "path", r.URL.Path, "job", jobID, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: string(code), Message: msg, JobID: jobID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
