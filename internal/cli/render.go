package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mockupkit/pkg/encode"
	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	jobFlags
	layer  string // placeholder layer to replace
	output string // output file; result_<stem>.<ext> when empty
}

// renderCommand creates the render command: one image into one template.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <template> <image>",
		Short: "Replace a placeholder layer with an image",
		Long: `Render replaces the named placeholder in a layered template with the given
image, following the placeholder's perspective and warp, and writes the
flattened result.

The template is a .mockup bundle, a bare document.toml/document.json manifest,
or a directory holding a manifest and its assets.`,
		Example: `  mockupkit render shirt.mockup design.png --layer front_surface
  mockupkit render shirt.mockup design.png --layer front_surface -o out.jpg --quality 85`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], args[1], &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.layer, "layer", "l", "", "placeholder layer name (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default result_<image>.<ext>)")
	_ = cmd.MarkFlagRequired("layer")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, templatePath, imagePath string, opts *renderOpts) error {
	if err := errors.ValidateLayerName(opts.layer); err != nil {
		return err
	}
	// An output extension picks the format unless --format was given
	if ext := filepath.Ext(opts.output); ext != "" && opts.format == "" {
		if f, err := encode.ParseFormat(ext); err == nil {
			opts.format = string(f)
		}
	}

	tpl, err := loadTemplate(templatePath)
	if err != nil {
		return err
	}
	img, err := readInput(imagePath)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s into %s", filepath.Base(imagePath), filepath.Base(templatePath)))
	spinner.Start()
	res, err := runner.Execute(ctx, pipeline.Job{
		Template:     tpl,
		TemplateName: templatePath,
		Placeholder:  opts.layer,
		Replacement:  img,
		Options:      opts.options(c),
	})
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(imagePath), err)
	}

	out := opts.output
	if out == "" {
		out = outputPath(".", imagePath, res.Format)
	}
	if err := writeOutput(out, res.Output); err != nil {
		return err
	}

	if res.CacheHit {
		for _, w := range res.Warnings {
			printWarning("%s", w)
		}
	}
	printSuccess("Rendered %s", filepath.Base(imagePath))
	printFile(out)
	printStats(res.Width, res.Height, res.Stats.Layers, res.Stats.Total, res.CacheHit)
	return nil
}

// loadTemplate reads a template file. A directory is bundled in memory so
// it can travel through the pipeline like a .mockup file.
func loadTemplate(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "template %s not found", path)
		}
		return nil, fmt.Errorf("stat template: %w", err)
	}
	if !info.IsDir() {
		return readInput(path)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := zw.AddFS(os.DirFS(path)); err != nil {
		return nil, fmt.Errorf("bundle template %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("bundle template %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// isImage reports whether path has an extension batch mode picks up.
func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}
