package cli

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mockupkit/pkg/document"
	"github.com/matzehuels/mockupkit/pkg/encode"
	"github.com/matzehuels/mockupkit/pkg/inspect"
	"github.com/matzehuels/mockupkit/pkg/testpattern"
)

// patternOpts holds the command-line flags for the pattern command.
type patternOpts struct {
	testpattern.Options
	template string // size the pattern to this template's placeholder
	layer    string
	output   string
}

// patternCommand creates the pattern command for calibration images.
func (c *CLI) patternCommand() *cobra.Command {
	opts := patternOpts{
		Options: testpattern.Options{Width: 789, Height: 643, Grid: testpattern.DefaultGrid},
		output:  "pattern.png",
	}

	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Generate a labeled calibration grid",
		Long: `Pattern draws red crosses every --grid pixels, each labeled with its
coordinates. Rendering the pattern into a placeholder shows exactly where
every content pixel lands on the canvas.

With --template and --layer the pattern takes the placeholder's content size.`,
		Example: `  mockupkit pattern --width 789 --height 643 --grid 50 -o pattern.png
  mockupkit pattern --template shirt.mockup --layer front_surface`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.template != "" {
				if err := sizeFromPlaceholder(&opts); err != nil {
					return err
				}
			}
			return c.runPattern(&opts)
		},
	}

	cmd.Flags().IntVar(&opts.Width, "width", opts.Width, "pattern width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", opts.Height, "pattern height in pixels")
	cmd.Flags().IntVar(&opts.Grid, "grid", opts.Grid, "control point spacing in pixels")
	cmd.Flags().Float64Var(&opts.FontSize, "font-size", testpattern.DefaultFontSize, "label size in points")
	cmd.Flags().BoolVar(&opts.NoLabels, "no-labels", false, "draw crosses only")
	cmd.Flags().BoolVar(&opts.Lines, "lines", false, "draw grid lines through the control points")
	cmd.Flags().StringVar(&opts.template, "template", "", "take the size from this template's placeholder")
	cmd.Flags().StringVarP(&opts.layer, "layer", "l", "", "placeholder for --template")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output file (format from extension)")
	cmd.MarkFlagsRequiredTogether("template", "layer")

	return cmd
}

func (c *CLI) runPattern(opts *patternOpts) error {
	format, err := encode.ParseFormat(filepath.Ext(opts.output))
	if err != nil {
		return err
	}

	p, err := testpattern.Generate(opts.Options)
	if err != nil {
		return err
	}
	data, err := encode.EncodeBytes(p.Image, encode.Options{Format: format, Quality: encode.DefaultJPEGQuality})
	if err != nil {
		return err
	}
	if err := writeOutput(opts.output, data); err != nil {
		return err
	}

	c.Logger.Debug("pattern generated", "points", len(p.Points), "grid", opts.Grid)
	printSuccess("Generated %dx%d pattern with %d control points", opts.Width, opts.Height, len(p.Points))
	printFile(opts.output)
	if opts.template != "" {
		printNewline()
		printNextStep("Preview it in place", fmt.Sprintf("%s render %s %s -l %s", appName, opts.template, opts.output, opts.layer))
	}
	return nil
}

// sizeFromPlaceholder sets the pattern size to the placeholder's content
// size, falling back to its bounds.
func sizeFromPlaceholder(opts *patternOpts) error {
	doc, err := document.Open(opts.template)
	if err != nil {
		return err
	}
	info, err := inspect.Placeholder(doc, opts.layer)
	if err != nil {
		return err
	}
	w, h := info.Content.X, info.Content.Y
	if w <= 0 || h <= 0 {
		w = int(math.Round(info.Bounds.Width()))
		h = int(math.Round(info.Bounds.Height()))
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("placeholder %q has no usable size", opts.layer)
	}
	opts.Width, opts.Height = w, h
	return nil
}
