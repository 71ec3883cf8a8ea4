// Package locate finds placeholder layers by name.
//
// Search runs in document order (see package document): siblings bottom to
// top, each group's subtree before its next sibling. Names match exactly
// but case-insensitively. Layers of other kinds that share the name are
// skipped rather than returned, so
//
//	[raster "front_surface", placeholder "front_surface"]
//
// resolves to the placeholder.
package locate

import (
	"strings"

	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/errors"
)

// Match is a located placeholder with the effective flags of its position
// in the tree.
type Match struct {
	Layer *document.Layer

	// Path lists the names from the top-level layer down to Layer.
	Path []string

	// Visible and Opacity fold in every ancestor group.
	Visible bool
	Opacity float64

	// Order is the layer's position in document order.
	Order int
}

// Find returns the first placeholder named name.
//
// When no layer has the name the error code is NOT_FOUND; when only layers
// of other kinds have it the code is WRONG_LAYER_KIND. errors.IsNotFound
// is true for both.
func Find(doc *document.Document, name string) (*Match, error) {
	var (
		match     *Match
		wrongKind *document.Layer
	)
	err := walk(doc, func(m *Match) bool {
		if !strings.EqualFold(m.Layer.Name, name) {
			return true
		}
		if !m.Layer.IsPlaceholder() {
			if wrongKind == nil {
				wrongKind = m.Layer
			}
			return true
		}
		match = m
		return false
	})
	if err != nil {
		return nil, err
	}

	switch {
	case match != nil:
		return match, nil
	case wrongKind != nil:
		return nil, errors.New(errors.ErrCodeWrongLayerKind,
			"layer %q is a %s layer, not a placeholder", wrongKind.Name, wrongKind.Kind)
	default:
		names := Names(doc)
		if len(names) == 0 {
			return nil, errors.New(errors.ErrCodeNotFound, "placeholder %q not found (template has no placeholders)", name)
		}
		return nil, errors.New(errors.ErrCodeNotFound, "placeholder %q not found (placeholders: %s)", name, strings.Join(names, ", "))
	}
}

// FindAll returns every placeholder in document order.
func FindAll(doc *document.Document) ([]*Match, error) {
	var out []*Match
	err := walk(doc, func(m *Match) bool {
		if m.Layer.IsPlaceholder() {
			out = append(out, m)
		}
		return true
	})
	return out, err
}

// Names returns the names of all placeholders in document order.
func Names(doc *document.Document) []string {
	all, _ := FindAll(doc)
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = m.Layer.Name
	}
	return names
}

// walk adapts document.Walk, tracking the name path of each layer. fn
// returns false to stop.
func walk(doc *document.Document, fn func(*Match) bool) error {
	if doc == nil {
		return errors.New(errors.ErrCodeInvalidInput, "no document")
	}
	paths := map[*document.Layer][]string{}
	order := 0
	return document.Walk(doc, func(v document.Visit) error {
		var path []string
		if v.Parent != nil {
			path = append(path, paths[v.Parent]...)
		}
		path = append(path, v.Layer.Name)
		if v.Layer.Kind == document.KindGroup {
			paths[v.Layer] = path
		}

		m := &Match{Layer: v.Layer, Path: path, Visible: v.Visible, Opacity: v.Opacity, Order: order}
		order++
		if !fn(m) {
			return document.ErrStop
		}
		return nil
	})
}
