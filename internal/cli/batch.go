package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mockupkit/pkg/errors"
	"github.com/matzehuels/mockupkit/pkg/pipeline"
)

// batchOpts holds the command-line flags for the batch command.
type batchOpts struct {
	jobFlags
	template string
	layer    string
	images   string
	out      string
	workers  int
	noTUI    bool
}

// batchCommand creates the batch command: every image in a directory into
// one template.
func (c *CLI) batchCommand() *cobra.Command {
	var opts batchOpts

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Render every image in a directory into a template",
		Long: `Batch renders each PNG, JPEG and WebP image found in --images into the
template's placeholder and writes result_<image>.<ext> files to --out.

A failing image never stops the others; a summary table lists every outcome.`,
		Example: `  mockupkit batch --template shirt.mockup --layer front_surface --images designs --out results`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBatch(cmd.Context(), &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "template file or directory (required)")
	cmd.Flags().StringVarP(&opts.layer, "layer", "l", "", "placeholder layer name (required)")
	cmd.Flags().StringVarP(&opts.images, "images", "i", ".", "directory of replacement images")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "results", "output directory")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "concurrent jobs (default from config, 0 = one per CPU)")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "print plain progress lines instead of the live view")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("layer")

	return cmd
}

func (c *CLI) runBatch(ctx context.Context, opts *batchOpts) error {
	if err := errors.ValidateLayerName(opts.layer); err != nil {
		return err
	}
	images, err := findImages(opts.images)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		printWarning("No images found in %s", opts.images)
		return nil
	}

	tpl, err := loadTemplate(opts.template)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	jobOpts := opts.options(c)
	jobs := make([]pipeline.Job, 0, len(images))
	for _, img := range images {
		data, err := readInput(img)
		if err != nil {
			return err
		}
		jobs = append(jobs, pipeline.Job{
			Template:     tpl,
			TemplateName: opts.template,
			Placeholder:  opts.layer,
			Replacement:  data,
			Options:      jobOpts,
		})
	}

	workers := opts.workers
	if workers == 0 {
		workers = c.Config.Render.Workers
	}

	c.Logger.Debug("batch starting", "images", len(images), "workers", workers, "out", opts.out)
	prog := newProgress(c.Logger)

	rows := make([]BatchRow, len(jobs))
	finish := func(i int, res *pipeline.Result) BatchRow {
		row := BatchRow{
			Input:    images[i],
			Status:   res.Status,
			Cached:   res.CacheHit,
			Duration: res.Stats.Total,
			Err:      res.Err,
		}
		if res.OK() {
			row.Output = outputPath(opts.out, images[i], res.Format)
			row.Err = writeOutput(row.Output, res.Output)
		}
		rows[i] = row
		return row
	}

	var runErr error
	if opts.noTUI || !isTerminal(os.Stderr) {
		c.runBatchPlain(ctx, runner, jobs, workers, finish)
	} else {
		runErr = c.runBatchTUI(ctx, runner, jobs, workers, finish)
		if runErr != nil && !stderrors.Is(runErr, context.Canceled) {
			return runErr
		}
	}

	failed := 0
	for _, r := range rows {
		if !r.ok() {
			failed++
		}
	}

	printNewline()
	fmt.Println(renderBatchSummary(rows))
	prog.done(fmt.Sprintf("Rendered %d of %d images", len(rows)-failed, len(rows)))
	if runErr != nil {
		return runErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(rows))
	}
	printFile(opts.out)
	return nil
}

// runBatchPlain prints one status line per finished image.
func (c *CLI) runBatchPlain(ctx context.Context, runner *pipeline.Runner, jobs []pipeline.Job, workers int, finish func(int, *pipeline.Result) BatchRow) {
	var mu sync.Mutex
	runner.BatchFunc(ctx, jobs, workers, func(i int, res *pipeline.Result) {
		row := finish(i, res)
		mu.Lock()
		defer mu.Unlock()
		switch row.icon() {
		case iconSuccess:
			printSuccess("%s", filepath.Base(row.Input))
		case iconWarning:
			printWarning("%s: %s", filepath.Base(row.Input), rowError(row))
		default:
			printError("%s: %s", filepath.Base(row.Input), rowError(row))
		}
	})
}

// runBatchTUI drives the live progress view while the batch runs.
func (c *CLI) runBatchTUI(ctx context.Context, runner *pipeline.Runner, jobs []pipeline.Job, workers int, finish func(int, *pipeline.Result) BatchRow) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	title := fmt.Sprintf("Rendering %d images", len(jobs))
	p := tea.NewProgram(NewBatchProgressModel(title, len(jobs), cancel), tea.WithContext(ctx), tea.WithOutput(os.Stderr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.BatchFunc(ctx, jobs, workers, func(i int, res *pipeline.Result) {
			p.Send(batchRowMsg{index: i, row: finish(i, res)})
		})
		p.Send(batchDoneMsg{})
	}()

	final, err := p.Run()
	// Quitting the view cancels ctx; wait so every row is filled in.
	<-done
	if m, ok := final.(BatchProgressModel); ok && m.Canceled {
		return context.Canceled
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("progress view: %w", err)
	}
	return nil
}

// findImages lists the batch inputs in dir, sorted by name.
func findImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "image directory %s not found", dir)
		}
		return nil, fmt.Errorf("read image directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// isTerminal reports whether f is an interactive terminal. Character devices
// such as /dev/null are not.
func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(f.Fd())
}
