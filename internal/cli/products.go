package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mockupkit/pkg/catalog"
	"github.com/matzehuels/mockupkit/pkg/pipeline"
)

// productsCommand creates the products command group.
func (c *CLI) productsCommand() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List and render catalog products",
		Long: `Products reads the product catalog: a TOML file (--catalog or catalog.path)
or a MongoDB database (catalog.mongo_uri). Each product lists the templates
a customer design is rendered into.`,
	}
	cmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog TOML file (overrides the config)")

	cmd.AddCommand(c.productsListCommand(&catalogPath))
	cmd.AddCommand(c.productsRenderCommand(&catalogPath))
	cmd.AddCommand(c.productsSyncCommand(&catalogPath))

	return cmd
}

// productsListCommand creates the "products list" subcommand.
func (c *CLI) productsListCommand(catalogPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openCatalog(ctx, *catalogPath)
			if err != nil {
				return err
			}
			defer store.Close()

			products, err := store.List(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(products, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			if len(products) == 0 {
				printInfo("Catalog is empty")
				return nil
			}
			fmt.Println(renderProductTable(products))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

// productsRenderCommand creates the "products render" subcommand.
func (c *CLI) productsRenderCommand(catalogPath *string) *cobra.Command {
	var (
		flags   jobFlags
		out     string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "render <product-id> <image>",
		Short: "Render an image into every template of a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runProductRender(cmd.Context(), *catalogPath, args[0], args[1], &flags, out, workers)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "results", "output directory")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent jobs (default from config)")

	return cmd
}

// productsSyncCommand creates the "products sync" subcommand.
func (c *CLI) productsSyncCommand(catalogPath *string) *cobra.Command {
	var uri, database string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy a catalog file and its templates into MongoDB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := *catalogPath
			if path == "" {
				path = c.Config.Catalog.Path
			}
			if path == "" {
				return fmt.Errorf("no source catalog: pass --catalog")
			}
			if uri == "" {
				uri = c.Config.Catalog.MongoURI
			}
			if database == "" {
				database = c.Config.Catalog.Database
			}

			src, err := catalog.LoadFile(path)
			if err != nil {
				return err
			}
			spinner := newSpinnerWithContext(ctx, "Connecting to MongoDB...")
			spinner.Start()
			dst, err := catalog.NewMongoStore(ctx, catalog.MongoOptions{URI: uri, Database: database})
			spinner.Stop()
			if err != nil {
				return err
			}
			defer dst.Close()

			n, err := catalog.Sync(ctx, dst, src)
			if err != nil {
				return fmt.Errorf("synced %d products before failing: %w", n, err)
			}
			printSuccess("Synced %d products", n)
			printDetail("Database: %s", database)
			return nil
		},
	}
	cmd.Flags().StringVar(&uri, "mongo-uri", "", "MongoDB URI (default catalog.mongo_uri)")
	cmd.Flags().StringVar(&database, "database", "", "MongoDB database (default catalog.database)")

	return cmd
}

func (c *CLI) runProductRender(ctx context.Context, catalogPath, id, imagePath string, flags *jobFlags, out string, workers int) error {
	store, err := c.openCatalog(ctx, catalogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	product, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	img, err := readInput(imagePath)
	if err != nil {
		return err
	}

	jobs := make([]pipeline.Job, len(product.Templates))
	names := make([]string, len(product.Templates))
	for i, t := range product.Templates {
		tpl, err := store.Template(ctx, t)
		if err != nil {
			return err
		}
		opts := flags.options(c)
		if t.Fit != "" && flags.fit == "" {
			opts.Fit = t.Fit
		}
		names[i] = catalog.TemplateName(t, i)
		jobs[i] = pipeline.Job{
			Template:     tpl,
			TemplateName: product.ID + "/" + names[i],
			Placeholder:  t.Placeholder,
			Replacement:  img,
			Options:      opts,
		}
	}

	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	if workers == 0 {
		workers = c.Config.Render.Workers
	}
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s into %d templates", filepath.Base(imagePath), len(jobs)))
	spinner.Start()
	results := runner.Batch(ctx, jobs, workers)
	spinner.Stop()

	rows := make([]BatchRow, len(results))
	failed := 0
	for i, res := range results {
		rows[i] = BatchRow{
			Input:    names[i],
			Status:   res.Status,
			Cached:   res.CacheHit,
			Duration: res.Stats.Total,
			Err:      res.Err,
		}
		if res.OK() {
			rows[i].Output = filepath.Join(out, product.ID+"_"+names[i]+"."+res.Format.Extension())
			rows[i].Err = writeOutput(rows[i].Output, res.Output)
		}
		if !rows[i].ok() {
			failed++
		}
	}

	printInfo("%s %s", StyleHighlight.Render(product.Name), StyleDim.Render(product.ID))
	fmt.Println(renderBatchSummary(rows))
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(rows))
	}
	printFile(out)
	return nil
}

// renderProductTable renders the product listing.
func renderProductTable(products []catalog.Product) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, len(products))
	for i, p := range products {
		size := "-"
		if p.Width > 0 && p.Height > 0 {
			size = fmt.Sprintf("%dx%d", p.Width, p.Height)
		}
		rows[i] = []string{p.ID, p.Name, size, strconv.Itoa(len(p.Templates))}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Name", "Size", "Templates").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col == 0 {
				return base.Foreground(colorCyan)
			}
			if col == 2 || col == 3 {
				return base.Foreground(colorGray)
			}
			return base
		})

	return t.Render()
}
