package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/geom"
	"github.com/matzehuels/mockupkit/pkg/inspect"
)

// inspectOpts holds the flags shared by the inspect subcommands.
type inspectOpts struct {
	json     bool
	dot      bool
	svg      bool
	detailed bool
	output   string
}

// inspectCommand creates the inspect command group.
func (c *CLI) inspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect template layers and placeholders",
	}

	cmd.AddCommand(c.inspectLayersCommand())
	cmd.AddCommand(c.inspectPlaceholderCommand())

	return cmd
}

// inspectLayersCommand creates the "inspect layers" subcommand.
func (c *CLI) inspectLayersCommand() *cobra.Command {
	var opts inspectOpts

	cmd := &cobra.Command{
		Use:   "layers <template>",
		Short: "List the layer tree with kinds, bounds and visibility",
		Example: `  mockupkit inspect layers shirt.mockup
  mockupkit inspect layers shirt.mockup --svg -o layers.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspectLayers(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print the listing as JSON")
	cmd.Flags().BoolVar(&opts.dot, "dot", false, "print the layer tree as Graphviz DOT")
	cmd.Flags().BoolVar(&opts.svg, "svg", false, "render the layer tree as SVG")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include bounds and opacity in DOT/SVG labels")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write DOT/SVG/JSON to a file instead of stdout")
	cmd.MarkFlagsMutuallyExclusive("json", "dot", "svg")

	return cmd
}

// inspectPlaceholderCommand creates the "inspect placeholder" subcommand.
func (c *CLI) inspectPlaceholderCommand() *cobra.Command {
	var opts inspectOpts

	cmd := &cobra.Command{
		Use:   "placeholder <template> [name]",
		Short: "Describe a placeholder's size, position, perspective and warp",
		Long: `Placeholder prints the resolved geometry of one placeholder, or of every
placeholder when no name is given: bounds, perspective quad, homography,
warp mesh and the embedded content size.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return c.runInspectPlaceholder(args[0], name, &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print as JSON")

	return cmd
}

func (c *CLI) runInspectLayers(ctx context.Context, path string, opts *inspectOpts) error {
	doc, err := document.OpenWithOptions(path, document.Options{SkipPixels: !opts.json})
	if err != nil {
		return err
	}
	c.Logger.Debug("parsed template", "name", doc.Name, "canvas", fmt.Sprintf("%dx%d", doc.Width, doc.Height))

	switch {
	case opts.json:
		data, err := json.MarshalIndent(inspect.Layers(doc), "", "  ")
		if err != nil {
			return err
		}
		return emit(opts.output, append(data, '\n'))
	case opts.dot:
		return emit(opts.output, []byte(inspect.ToDOT(doc, inspect.DOTOptions{Detailed: opts.detailed})))
	case opts.svg:
		svg, err := inspect.RenderSVG(ctx, inspect.ToDOT(doc, inspect.DOTOptions{Detailed: opts.detailed}))
		if err != nil {
			return err
		}
		if opts.output != "" {
			printFile(opts.output)
		}
		return emit(opts.output, svg)
	}

	for _, w := range doc.Warnings {
		printWarning("%s", w)
	}
	printKeyValue("Template", doc.Name)
	printKeyValue("Canvas", fmt.Sprintf("%dx%d", doc.Width, doc.Height))
	counts := doc.Count()
	printKeyValue("Layers", fmt.Sprintf("%d raster, %d group, %d placeholder",
		counts[document.KindRaster], counts[document.KindGroup], counts[document.KindPlaceholder]))
	printNewline()
	fmt.Println(renderLayerTable(inspect.Layers(doc)))
	return nil
}

func (c *CLI) runInspectPlaceholder(path, name string, opts *inspectOpts) error {
	doc, err := document.Open(path)
	if err != nil {
		return err
	}

	var infos []*inspect.PlaceholderInfo
	if name != "" {
		info, err := inspect.Placeholder(doc, name)
		if err != nil {
			return err
		}
		infos = []*inspect.PlaceholderInfo{info}
	} else {
		infos, err = inspect.Placeholders(doc)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			printWarning("%s has no placeholders", path)
			return nil
		}
	}

	if opts.json {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for i, info := range infos {
		if i > 0 {
			printNewline()
		}
		printPlaceholder(info)
	}
	return nil
}

// printPlaceholder prints one placeholder description.
func printPlaceholder(info *inspect.PlaceholderInfo) {
	fmt.Println(StyleTitle.Render(info.Name) + " " + StyleDim.Render(info.Path))
	printKeyValue("Position", fmt.Sprintf("%.1f, %.1f", info.Bounds.Left, info.Bounds.Top))
	printKeyValue("Size", fmt.Sprintf("%.1f x %.1f", info.Bounds.Width(), info.Bounds.Height()))
	printKeyValue("Visible", yesNo(info.Visible))
	printKeyValue("Opacity", fmt.Sprintf("%.2f", info.Opacity))

	content := "unknown"
	if info.Content.X > 0 && info.Content.Y > 0 {
		content = fmt.Sprintf("%dx%d", info.Content.X, info.Content.Y)
	}
	if info.Embedded {
		content += " (embedded)"
	}
	printKeyValue("Content", content)

	source := "synthesized"
	if info.ExplicitQuad {
		source = "stored"
	}
	printKeyValue("Quad", formatQuad(info.Quad)+" "+StyleDim.Render(source))

	if info.Error != "" {
		printWarning("%s", info.Error)
		return
	}

	kind := "perspective"
	if info.Affine {
		kind = "affine"
	}
	printKeyValue("Homography", kind)
	for _, row := range formatHomography(info.Homography) {
		printDetail("%s", row)
	}
	printKeyValue("Footprint", info.Footprint.String())

	if w := info.Warp; w != nil {
		state := "ignored"
		if w.Applied {
			state = "applied"
		}
		printKeyValue("Warp", fmt.Sprintf("%s %dx%d, max %.1fpx, %s", w.Style, w.Rows, w.Cols, w.MaxDisplacement, state))
	} else {
		printKeyValue("Warp", "none")
	}
}

// renderLayerTable renders the layer listing, indented by depth.
func renderLayerTable(entries []inspect.Entry) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			strings.Repeat("  ", e.Depth) + e.Name,
			e.Kind,
			e.Bounds.String(),
			yesNo(e.Effective),
			fmt.Sprintf("%.2f", e.Opacity),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Layer", "Kind", "Bounds", "Visible", "Opacity").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if row < 0 || row >= len(entries) {
				return base
			}
			e := entries[row]
			switch {
			case !e.Effective:
				return base.Foreground(colorDim)
			case e.Kind == document.KindPlaceholder.String():
				return base.Foreground(colorCyan).Bold(col == 0)
			}
			return base
		})

	return t.Render()
}

func formatQuad(q geom.Quad) string {
	parts := make([]string, len(q))
	for i, p := range q {
		parts[i] = fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
	}
	return strings.Join(parts, " ")
}

func formatHomography(h geom.Homography) []string {
	rows := make([]string, 3)
	for r := range 3 {
		rows[r] = fmt.Sprintf("[% 12.6f % 12.6f % 12.6f]", h[3*r], h[3*r+1], h[3*r+2])
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// emit writes data to path, or to stdout when path is empty.
func emit(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return writeOutput(path, data)
}
