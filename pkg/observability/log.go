package observability

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements every hook interface by writing debug records to a
// logger and keeping running counts.
type LogHooks struct {
	logger *log.Logger

	jobs   atomic.Int64
	failed atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
}

// Counts is a snapshot of the events a LogHooks has seen.
type Counts struct {
	Jobs, Failed int64
	Hits, Misses int64
}

// NewLogHooks creates hooks that log to logger at debug level.
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{logger: logger.WithPrefix("hooks")}
}

// Register installs h as the pipeline, cache and HTTP hooks.
func (h *LogHooks) Register() {
	SetPipelineHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

// Counts returns the current event counts.
func (h *LogHooks) Counts() Counts {
	return Counts{
		Jobs:   h.jobs.Load(),
		Failed: h.failed.Load(),
		Hits:   h.hits.Load(),
		Misses: h.misses.Load(),
	}
}

func (h *LogHooks) OnJobStart(_ context.Context, jobID, placeholder string) {
	h.jobs.Add(1)
	h.logger.Debug("job start", "job", jobID, "placeholder", placeholder)
}

func (h *LogHooks) OnStageComplete(_ context.Context, jobID, stage string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("stage failed", "job", jobID, "stage", stage, "took", d, "err", err)
		return
	}
	h.logger.Debug("stage", "job", jobID, "stage", stage, "took", d)
}

func (h *LogHooks) OnJobComplete(_ context.Context, jobID, status string, d time.Duration, err error) {
	if err != nil {
		h.failed.Add(1)
	}
	h.logger.Debug("job done", "job", jobID, "status", status, "took", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.hits.Add(1)
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.misses.Add(1)
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, path string) {
	h.logger.Debug("request", "method", method, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	h.logger.Debug("response", "method", method, "path", path, "status", status, "took", d)
}
