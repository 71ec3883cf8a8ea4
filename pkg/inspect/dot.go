package inspect

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/mockupkit/pkg/document"
)

// DOTOptions configures layer tree diagrams.
type DOTOptions struct {
	// Detailed adds bounds and opacity to node labels.
	// When false, only the layer name and kind are shown.
	Detailed bool
}

// ToDOT converts a document's layer tree to Graphviz DOT format.
// The canvas is the root; groups point at their children in document order.
//
// Placeholders are drawn filled, hidden layers dashed and grey.
func ToDOT(doc *document.Document, opts DOTOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph layers {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.2;\n")
	buf.WriteString("\n")

	root := doc.Name
	if root == "" {
		root = "canvas"
	}
	fmt.Fprintf(&buf, "  n0 [label=%q, shape=note];\n", fmt.Sprintf("%s\n%dx%d", root, doc.Width, doc.Height))

	ids := map[*document.Layer]string{}
	var edges []string
	next := 1
	_ = document.Walk(doc, func(v document.Visit) error {
		id := "n" + strconv.Itoa(next)
		next++
		ids[v.Layer] = id
		fmt.Fprintf(&buf, "  %s [%s];\n", id, strings.Join(dotAttrs(v, opts.Detailed), ", "))

		parent := "n0"
		if v.Parent != nil {
			parent = ids[v.Parent]
		}
		edges = append(edges, fmt.Sprintf("  %s -> %s;\n", parent, id))
		return nil
	})

	buf.WriteString("\n")
	for _, e := range edges {
		buf.WriteString(e)
	}
	buf.WriteString("}\n")
	return buf.String()
}

func dotLabel(l *document.Layer, detailed bool) string {
	label := l.Name + "\n(" + l.Kind.String() + ")"
	if !detailed {
		return label
	}
	parts := []string{"bounds: " + l.Bounds.String()}
	if l.Opacity < 1 {
		parts = append(parts, fmt.Sprintf("opacity: %.2f", l.Opacity))
	}
	if c := l.Content; c != nil && c.Width > 0 {
		parts = append(parts, fmt.Sprintf("content: %dx%d", c.Width, c.Height))
	}
	if p := l.Placement; p != nil && p.Warp != nil && p.Warp.Mesh != nil {
		parts = append(parts, fmt.Sprintf("warp: %s %dx%d", p.Warp.Style, p.Warp.Mesh.Rows, p.Warp.Mesh.Cols))
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func dotAttrs(v document.Visit, detailed bool) []string {
	l := v.Layer
	attrs := []string{fmt.Sprintf("label=%q", dotLabel(l, detailed))}
	switch l.Kind {
	case document.KindGroup:
		attrs = append(attrs, "shape=folder")
	case document.KindPlaceholder:
		attrs = append(attrs, "fillcolor=\"#ffe08a\"", "penwidth=2")
	}
	if !v.Visible {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fontcolor=grey40", "color=grey60")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized svg tag with one whose
// width and height match the viewBox, so the diagram scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
