package cli

import (
	"context"
	stderrors "errors"
	"net"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mockupkit/internal/server"
	"github.com/matzehuels/mockupkit/pkg/errors"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	jobFlags
	addr     string
	template string
	layer    string
	catalog  string
}

// serveCommand creates the serve command that runs the HTTP server.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload endpoint over HTTP",
		Long: `Serve starts an HTTP server:

  GET  /healthz         liveness check
  GET  /products        catalog listing
  POST /process         multipart upload (file, product, template, layer, format)

Uploads that name no product render into --template/--layer.`,
		Example: `  mockupkit serve --addr :8080 --template mug.mockup --layer front_surface`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "default template (default server.template)")
	cmd.Flags().StringVarP(&opts.layer, "layer", "l", "", "default placeholder (default server.layer)")
	cmd.Flags().StringVar(&opts.catalog, "catalog", "", "catalog TOML file (overrides the config)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	cfg := c.Config.Server
	addr := firstNonEmpty(opts.addr, cfg.Addr)
	tplPath := firstNonEmpty(opts.template, cfg.Template)
	layer := firstNonEmpty(opts.layer, cfg.Layer)

	var tpl []byte
	if tplPath != "" {
		if layer == "" {
			return errors.New(errors.ErrCodeInvalidInput, "a default template needs --layer")
		}
		var err error
		if tpl, err = loadTemplate(tplPath); err != nil {
			return err
		}
	}

	store, err := c.openCatalog(ctx, opts.catalog)
	if err != nil {
		if !errors.Is(err, errors.ErrCodeInvalidInput) {
			return err
		}
		c.Logger.Warn("serving without a catalog", "reason", errors.UserMessage(err))
		store = nil
	}
	if store != nil {
		defer store.Close()
	}
	if store == nil && tpl == nil {
		return errors.New(errors.ErrCodeInvalidInput, "nothing to serve: configure a catalog or pass --template and --layer")
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv, err := server.New(server.Options{
		Runner:       runner,
		Catalog:      store,
		Logger:       loggerFromContext(ctx),
		Template:     tpl,
		TemplateName: filepath.Base(tplPath),
		Layer:        layer,
		Defaults:     opts.options(c),
		MaxUpload:    cfg.MaxUploadMB << 20,
	})
	if err != nil {
		return err
	}

	printInfo("Listening on %s", StyleLink.Render(listenURL(addr)))
	if err := srv.ListenAndServe(ctx, addr); err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	printSuccess("Server stopped")
	return nil
}

// listenURL turns a listen address into a clickable URL.
func listenURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
