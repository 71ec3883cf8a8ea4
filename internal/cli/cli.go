package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mockupkit/internal/config"
	"github.com/matzehuels/mockupkit/pkg/buildinfo"
	"github.com/matzehuels/mockupkit/pkg/cache"
	"github.com/matzehuels/mockupkit/pkg/catalog"
	"github.com/matzehuels/mockupkit/pkg/encode"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "mockupkit"

	// outputPrefix names rendered files: result_<stem>.<ext>.
	outputPrefix = "result_"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *config.Config

	configPath string
}

// New creates a new CLI instance with a default logger and configuration.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Mockupkit places artwork into layered mockup templates",
		Long:         `Mockupkit replaces a named placeholder layer in a layered mockup template with your own image, following the placeholder's perspective and warp, and writes the flattened result.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/mockupkit/config.toml)")

	// Register all subcommands
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.productsCommand())
	root.AddCommand(c.patternCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, c.newKeyer(noCache), c.Logger), nil
}

// newKeyer namespaces keys for a shared redis; other backends use the
// default keys.
func (c *CLI) newKeyer(noCache bool) cache.Keyer {
	r := c.Config.Cache.Redis
	if noCache || c.Config.Cache.Backend != config.BackendRedis || r.Prefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), r.Prefix)
}

// newCache opens the configured cache backend. A file cache whose directory
// cannot be determined degrades to no cache.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch c.Config.Cache.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		r := c.Config.Cache.Redis
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{Addr: r.Addr, Password: r.Password, DB: r.DB})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, nil
	default:
		dir, err := c.Config.CacheDir()
		if err != nil {
			c.Logger.Warn("no cache directory, caching disabled", "error", err)
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	}
}

// openCatalog opens the configured product catalog. An explicit path
// overrides the configuration.
func (c *CLI) openCatalog(ctx context.Context, path string) (catalog.Store, error) {
	if path != "" {
		return catalog.LoadFile(path)
	}
	if uri := c.Config.Catalog.MongoURI; uri != "" {
		return catalog.NewMongoStore(ctx, catalog.MongoOptions{URI: uri, Database: c.Config.Catalog.Database})
	}
	if p := c.Config.Catalog.Path; p != "" {
		return catalog.LoadFile(p)
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "no catalog configured: pass --catalog or set catalog.path in %s", configHint())
}

func configHint() string {
	if p, err := config.DefaultPath(); err == nil {
		return p
	}
	return "the config file"
}

// =============================================================================
// Options Helpers
// =============================================================================

// jobFlags holds the render flags shared by render, batch and products.
type jobFlags struct {
	format     string
	quality    int
	fit        string
	mode       string
	skipHidden bool
	noCache    bool
	refresh    bool
	maxSize    int
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: png, jpeg, bmp, tiff (default from config)")
	cmd.Flags().IntVar(&f.quality, "quality", 0, "JPEG quality 1-100 (default from config)")
	cmd.Flags().StringVar(&f.fit, "fit", "", "content fit: stretch, contain, cover (default from config)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "compositing: auto, flatten, patch (default from config)")
	cmd.Flags().BoolVar(&f.skipHidden, "skip-hidden", false, "render a hidden placeholder's template unchanged instead of failing")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the result cache")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached results and re-render")
	cmd.Flags().IntVar(&f.maxSize, "max-size", 0, "downscale the output so neither side exceeds this many pixels")
}

// options merges the flags over the configured render defaults.
func (f *jobFlags) options(c *CLI) pipeline.Options {
	r := c.Config.Render
	opts := pipeline.Options{
		Format:     firstNonEmpty(f.format, r.Format),
		Quality:    r.Quality,
		Fit:        firstNonEmpty(f.fit, r.Fit),
		Mode:       firstNonEmpty(f.mode, r.Mode),
		SkipHidden: f.skipHidden,
		Refresh:    f.refresh,
		MaxSize:    f.maxSize,
		Logger:     c.Logger,
	}
	if f.quality != 0 {
		opts.Quality = f.quality
	}
	return opts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// =============================================================================
// Paths
// =============================================================================

// outputPath returns result_<stem>.<ext> inside dir.
func outputPath(dir, input string, format encode.Format) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, outputPrefix+stem+"."+format.Extension())
}

// writeOutput writes data to path, creating parent directories.
func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// readInput reads a file, mapping a missing file to FILE_NOT_FOUND.
func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "%s not found", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
