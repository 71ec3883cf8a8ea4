package document

import stderrors "errors"

// ErrSkipChildren may be returned by a WalkFunc visiting a group to skip
// the group's subtree.
var ErrSkipChildren = stderrors.New("skip children")

// ErrStop may be returned by a WalkFunc to end the walk early without
// reporting an error.
var ErrStop = stderrors.New("stop walk")

// Visit describes one layer reached by Walk.
type Visit struct {
	Layer  *Layer
	Parent *Layer // nil for top-level layers
	Depth  int

	// Visible and Opacity are effective values: the layer's own flags
	// combined with every ancestor group's.
	Visible bool
	Opacity float64
}

// WalkFunc is called for each layer in document order.
type WalkFunc func(v Visit) error

// Walk visits every layer of d in document order (pre-order, depth-first,
// siblings bottom to top).
func Walk(d *Document, fn WalkFunc) error {
	if d == nil {
		return nil
	}
	stack := make([]Visit, 0, len(d.Layers))
	push := func(layers []*Layer, parent Visit, root bool) {
		for i := len(layers) - 1; i >= 0; i-- {
			l := layers[i]
			v := Visit{Layer: l, Visible: l.Visible, Opacity: l.Opacity}
			if !root {
				v.Parent = parent.Layer
				v.Depth = parent.Depth + 1
				v.Visible = v.Visible && parent.Visible
				v.Opacity *= parent.Opacity
			}
			stack = append(stack, v)
		}
	}
	push(d.Layers, Visit{}, true)

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		err := fn(v)
		switch {
		case stderrors.Is(err, ErrStop):
			return nil
		case stderrors.Is(err, ErrSkipChildren):
			continue
		case err != nil:
			return err
		}
		if v.Layer.Kind == KindGroup {
			push(v.Layer.Children, v, false)
		}
	}
	return nil
}
