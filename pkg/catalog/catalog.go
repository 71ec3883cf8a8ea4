// Package catalog maps products to the mockup templates that show them.
//
// A product (a mug, a t-shirt, a poster) owns one or more templates, each
// naming the placeholder layer a customer design is rendered into. Two
// stores are provided: [FileStore] reads a TOML catalog next to the
// template files, [MongoStore] keeps products in MongoDB and template bytes
// in GridFS.
package catalog

import (
	"context"
	"sort"
	"strconv"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

// Template is one mockup a product renders into.
type Template struct {
	// Name labels the output (e.g. "front", "angled").
	Name string `toml:"name" json:"name" bson:"name"`

	// Path locates the template bytes: relative to the catalog file for a
	// FileStore, the GridFS file name for a MongoStore.
	Path string `toml:"path" json:"path" bson:"path"`

	// Placeholder is the layer replaced with the customer design.
	Placeholder string `toml:"placeholder" json:"placeholder" bson:"placeholder"`

	// Fit optionally overrides the fit mode for this template.
	Fit string `toml:"fit,omitempty" json:"fit,omitempty" bson:"fit,omitempty"`
}

// Product is a catalog entry.
type Product struct {
	ID        string     `toml:"id" json:"id" bson:"_id"`
	Name      string     `toml:"name" json:"name" bson:"name"`
	Thumbnail string     `toml:"thumbnail,omitempty" json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	Width     int        `toml:"width,omitempty" json:"width,omitempty" bson:"width,omitempty"`
	Height    int        `toml:"height,omitempty" json:"height,omitempty" bson:"height,omitempty"`
	Templates []Template `toml:"templates" json:"templates" bson:"templates"`
}

// Store reads products and their template bytes.
type Store interface {
	// List returns every product ordered by ID.
	List(ctx context.Context) ([]Product, error)

	// Get returns one product or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*Product, error)

	// Template returns the raw bytes of t.
	Template(ctx context.Context, t Template) ([]byte, error)

	Close() error
}

// Validate checks the fields every store relies on.
func (p *Product) Validate() error {
	if p.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "product has no id")
	}
	if len(p.Templates) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "product %q has no templates", p.ID)
	}
	for i, t := range p.Templates {
		if t.Path == "" {
			return errors.New(errors.ErrCodeInvalidInput, "product %q template %d has no path", p.ID, i)
		}
		if err := errors.ValidateLayerName(t.Placeholder); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "product %q template %d", p.ID, i)
		}
	}
	return nil
}

// TemplateName returns t.Name, or "template-<i>" when unnamed.
func TemplateName(t Template, i int) string {
	if t.Name != "" {
		return t.Name
	}
	return "template-" + strconv.Itoa(i)
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeNotFound, "product %q not found", id)
}

func sortProducts(ps []Product) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
