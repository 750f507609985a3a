package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fetchq/internal/fixture"
)

// serveOptions holds the flags of the serve command.
type serveOptions struct {
	Addr      string
	Fixtures  string
	FailFirst int
	Delay     time.Duration
	Metrics   bool
}

// serveCommand creates the command that runs the local fixture API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local JSON API for trying out fetches",
		Long: `Serve starts a small JSON API with list, item and create routes for every
resource in the fixture file (posts by default).

--fail-first makes the first N requests of every path fail with 503, which
exercises retries. --delay slows every response down, which leaves time to
abort. GET /errors/app answers 200 with an application error payload.`,
		Example: `  fetchq serve
  fetchq serve --fail-first 2 --delay 1s
  fetchq serve --fixtures fixtures.toml --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default: server.addr from the config)")
	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "TOML file with the served resources")
	cmd.Flags().IntVar(&opts.FailFirst, "fail-first", 0, "fail the first N requests of every path with 503")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 0, "delay every response")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "expose Prometheus metrics on /metrics")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts serveOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	cfg := c.config().Server

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Addr
	}
	if opts.FailFirst < 0 {
		return fmt.Errorf("--fail-first cannot be negative")
	}

	path := opts.Fixtures
	if path == "" {
		path = cfg.Fixtures
	}
	resources := fixture.Default()
	if path != "" {
		var err error
		if resources, err = fixture.Load(path); err != nil {
			return err
		}
	}

	var metrics http.Handler
	if opts.Metrics {
		metrics = newMetricsHandler()
	}

	srv := fixture.New(fixture.Options{
		Resources: resources,
		FailFirst: opts.FailFirst,
		Delay:     opts.Delay,
		Metrics:   metrics,
		Logger:    logger,
	})

	base := "http://" + addr
	printSuccess("Serving %s resources", StyleNumber.Render(fmt.Sprint(len(resources))))
	printKeyValue("Address", StyleLink.Render(base))
	names := srv.Names()
	for _, name := range names {
		printDetail("%s/%s (%d)", base, name, len(resources[name]))
	}
	if opts.FailFirst > 0 {
		printDetail("first %d requests per path fail", opts.FailFirst)
	}
	if metrics != nil {
		printDetail("metrics on %s/metrics", base)
	}
	if len(names) > 0 {
		printNewline()
		printNextStep("Try", fmt.Sprintf("%s get %s/%s/1", appName, base, names[0]))
	}

	return fixture.ListenAndServe(ctx, addr, srv, logger)
}
