// Package config loads the mockupkit configuration file.
//
// The file is TOML and optional. It lives at
// $XDG_CONFIG_HOME/mockupkit/config.toml (~/.config/mockupkit/config.toml)
// unless --config names another path. Every field has a default, so an empty
// or missing file yields a usable configuration.
//
//	[cache]
//	backend = "redis"          # file | redis | none
//
//	[cache.redis]
//	addr = "localhost:6379"
//	prefix = "mockupkit:prod:" # namespace when several deployments share one redis
//
//	[catalog]
//	path = "products.toml"     # or mongo_uri = "mongodb://..."
//
//	[server]
//	addr = ":8080"
//	template = "mug.mockup"    # used when an upload names no product
//	layer = "front_surface"
//
//	[render]
//	format = "jpeg"
//	workers = 4
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mockupkit/pkg/catalog"
	"github.com/matzehuels/mockupkit/pkg/compose"
	"github.com/matzehuels/mockupkit/pkg/encode"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/fit"
)

const appName = "mockupkit"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the full configuration file.
type Config struct {
	Cache   CacheConfig   `toml:"cache"`
	Catalog CatalogConfig `toml:"catalog"`
	Server  ServerConfig  `toml:"server"`
	Render  RenderConfig  `toml:"render"`
}

// CacheConfig selects where rendered results are cached.
type CacheConfig struct {
	Backend string      `toml:"backend"`
	Dir     string      `toml:"dir"` // file backend; defaults to the XDG cache dir
	Redis   RedisConfig `toml:"redis"`
}

// RedisConfig addresses the redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// CatalogConfig locates the product catalog. MongoURI wins over Path.
type CatalogConfig struct {
	Path     string `toml:"path"`
	MongoURI string `toml:"mongo_uri"`
	Database string `toml:"database"`
}

// ServerConfig configures `mockupkit serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`

	// Template and Layer serve uploads that name no catalog product.
	Template string `toml:"template"`
	Layer    string `toml:"layer"`

	// MaxUploadMB bounds the multipart request body.
	MaxUploadMB int64 `toml:"max_upload_mb"`
}

// RenderConfig holds job defaults shared by every command.
type RenderConfig struct {
	Format  string `toml:"format"`
	Quality int    `toml:"quality"`
	Fit     string `toml:"fit"`
	Mode    string `toml:"mode"`
	Workers int    `toml:"workers"` // 0 means one per CPU
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Backend: BackendFile,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Catalog: CatalogConfig{
			Database: catalog.DefaultDatabase,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 32,
		},
		Render: RenderConfig{
			Format:  string(encode.FormatPNG),
			Quality: encode.DefaultJPEGQuality,
			Fit:     string(fit.ModeStretch),
			Mode:    string(compose.ModeAuto),
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/mockupkit/config.toml.
func DefaultPath() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the configuration at path on top of the defaults. An empty
// path means DefaultPath, and a missing default file is not an error; a
// missing explicit path is FILE_NOT_FOUND.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if explicit {
				return nil, errors.New(errors.ErrCodeFileNotFound, "config file %s not found", path)
			}
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.Catalog.Path, &cfg.Server.Template, &cfg.Cache.Dir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	return cfg, nil
}

// Parse decodes TOML onto the defaults and validates the result.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated fields and ranges.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.Redis.Addr == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache.redis.addr is required for the redis backend")
	}
	if _, err := encode.ParseFormat(c.Render.Format); err != nil {
		return err
	}
	if _, err := fit.ParseMode(c.Render.Fit); err != nil {
		return err
	}
	if _, err := compose.ParseMode(c.Render.Mode); err != nil {
		return err
	}
	if c.Render.Quality < 1 || c.Render.Quality > 100 {
		return errors.New(errors.ErrCodeInvalidInput, "render.quality must be in [1,100], got %d", c.Render.Quality)
	}
	if c.Render.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "render.workers cannot be negative")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "server.max_upload_mb must be positive")
	}
	return nil
}

// CacheDir returns Cache.Dir or the XDG cache directory (~/.cache/mockupkit).
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
