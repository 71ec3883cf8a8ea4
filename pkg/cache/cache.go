// Package cache stores encoded render outputs keyed by their inputs.
//
// A render is a pure function of (template bytes, replacement bytes,
// placeholder name, render options), so its encoded output can be reused
// across CLI invocations and server requests. Three backends are provided:
//
//   - [FileCache]: one file per entry under a directory (CLI default)
//   - [RedisCache]: shared entries for server deployments
//   - [NullCache]: caching disabled
//
// Keys are built by a [Keyer] so that deployments can namespace them with
// [NewScopedKeyer].
package cache

import (
	"context"
	"time"
)

// TTLs for cached entries.
const (
	// TTLRender is how long an encoded render output is kept.
	TTLRender = 7 * 24 * time.Hour

	// TTLDocument is how long a parsed template summary is kept.
	TTLDocument = 24 * time.Hour
)

// Cache is a byte-oriented key/value store with expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored value and whether it was found.
	// A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// RenderKeyOpts are the render options that change the output bytes.
type RenderKeyOpts struct {
	Placeholder string `json:"placeholder"`
	Fit         string `json:"fit"`
	Mode        string `json:"mode"`
	Format      string `json:"format"`
	Quality     int    `json:"quality,omitempty"`
	SkipHidden  bool   `json:"skip_hidden,omitempty"`
	MaxSize     int    `json:"max_size,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	// RenderKey identifies the encoded output of one render job.
	RenderKey(templateHash, replacementHash string, opts RenderKeyOpts) string

	// DocumentKey identifies metadata derived from a template alone.
	DocumentKey(templateHash string) string
}

// DefaultKeyer builds keys of the form "<kind>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key builder.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RenderKey hashes both content hashes together with the options.
func (DefaultKeyer) RenderKey(templateHash, replacementHash string, opts RenderKeyOpts) string {
	return hashKey("render", templateHash, replacementHash, opts)
}

// DocumentKey hashes the template hash.
func (DefaultKeyer) DocumentKey(templateHash string) string {
	return hashKey("document", templateHash)
}
