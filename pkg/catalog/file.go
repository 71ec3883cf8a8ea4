package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mockupkit/pkg/errors"
)

// FileStore is a catalog read from a TOML file:
//
//	[[products]]
//	id = "mug-11oz"
//	name = "Ceramic mug"
//	thumbnail = "thumbs/mug.png"
//
//	  [[products.templates]]
//	  name = "front"
//	  path = "templates/mug-front.mockup"
//	  placeholder = "front_surface"
//
// Template paths are relative to the catalog file's directory.
type FileStore struct {
	dir      string
	products []Product
	byID     map[string]int
}

type catalogFile struct {
	Products []Product `toml:"products"`
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "catalog %s", path)
		}
		return nil, err
	}
	s, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a catalog whose template paths are relative to dir.
func Parse(data []byte, dir string) (*FileStore, error) {
	var f catalogFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode catalog")
	}
	s := &FileStore{dir: dir, byID: make(map[string]int, len(f.Products))}
	for i := range f.Products {
		p := &f.Products[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.byID[p.ID]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate product id %q", p.ID)
		}
		s.byID[p.ID] = i
	}
	s.products = f.Products
	sortProducts(s.products)
	for i, p := range s.products {
		s.byID[p.ID] = i
	}
	return s, nil
}

// List returns every product ordered by ID.
func (s *FileStore) List(ctx context.Context) ([]Product, error) {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

// Get returns one product.
func (s *FileStore) Get(ctx context.Context, id string) (*Product, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, notFound(id)
	}
	p := s.products[i]
	return &p, nil
}

// Template reads a template file relative to the catalog directory.
func (s *FileStore) Template(ctx context.Context, t Template) ([]byte, error) {
	data, err := os.ReadFile(s.Path(t))
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "template %s", t.Path)
	}
	return data, err
}

// Path resolves t.Path against the catalog directory.
func (s *FileStore) Path(t Template) string {
	if filepath.IsAbs(t.Path) {
		return t.Path
	}
	return filepath.Join(s.dir, filepath.FromSlash(t.Path))
}

// Close does nothing for a file store.
func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
