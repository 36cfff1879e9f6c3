package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/use-agent/authscout/config"
	"github.com/use-agent/authscout/engine"
	"github.com/use-agent/authscout/models"
	"github.com/use-agent/authscout/scraper"
)

// cliOptions holds the flags shared by every subcommand.
type cliOptions struct {
	noBrowser     bool
	headful       bool
	staticTimeout time.Duration
	renderTimeout time.Duration
	compact       bool
	verbose       bool
}

func newCmdRoot() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "authscout-cli <command> [flags]",
		Short: "Locate login forms from the command line",
		Long: heredoc.Doc(`
			Fetch pages statically, fall back to a headless browser when the
			static HTML looks blocked or empty, and print the login form found
			on each page as JSON.
		`),
		SilenceUsage: true,
		Annotations: map[string]string{
			"versionInfo": "0.1.0",
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.noBrowser, "no-browser", false, "Static fetch only, never launch Chrome")
	cmd.PersistentFlags().BoolVar(&opts.headful, "headful", false, "Show the browser window")
	cmd.PersistentFlags().DurationVar(&opts.staticTimeout, "static-timeout", 0, "Static fetch timeout (default from AUTHSCOUT_STATIC_TIMEOUT)")
	cmd.PersistentFlags().DurationVar(&opts.renderTimeout, "render-timeout", 0, "Rendered fetch timeout (default from AUTHSCOUT_RENDER_TIMEOUT)")
	cmd.PersistentFlags().BoolVar(&opts.compact, "compact", false, "Print one JSON document per line")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")

	cmd.AddCommand(newCmdScrape(opts), newCmdPredefined(opts))
	return cmd
}

func newCmdScrape(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>...",
		Short: "Locate the login form on one or more pages",
		Example: heredoc.Doc(`
			$ authscout-cli scrape https://github.com/login
			$ authscout-cli scrape --no-browser news.ycombinator.com/login example.com
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return run(c.Context(), opts, args, c.OutOrStdout())
		},
	}
}

func newCmdPredefined(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "predefined",
		Short: "Run against the built-in list of well-known login pages",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return run(c.Context(), opts, scraper.Predefined(), c.OutOrStdout())
		},
	}
}

// run scrapes urls and writes a single result, or a BatchResponse when
// more than one URL is given.
func run(parent context.Context, opts *cliOptions, urls []string, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.Load()
	opts.apply(cfg)

	sc, closeFn := buildScraper(cfg)
	defer closeFn()

	enc := json.NewEncoder(out)
	if !opts.compact {
		enc.SetIndent("", "  ")
	}

	if len(urls) == 1 {
		return enc.Encode(sc.Scrape(ctx, urls[0]))
	}
	return enc.Encode(models.BatchResponse{Results: sc.ScrapeBatch(ctx, urls)})
}

func (o *cliOptions) apply(cfg *config.Config) {
	if o.noBrowser {
		cfg.Browser.Enabled = false
	}
	if o.headful {
		cfg.Browser.Headless = false
	}
	if o.staticTimeout > 0 {
		cfg.Fetch.StaticTimeout = o.staticTimeout
	}
	if o.renderTimeout > 0 {
		cfg.Navigation.RenderTimeout = o.renderTimeout
	}
}

// buildScraper wires the engines the same way the server does, without
// metrics. The returned func closes the browser.
func buildScraper(cfg *config.Config) (*scraper.Scraper, func()) {
	static := engine.NewHTTPEngine(cfg.Fetch)
	if !cfg.Browser.Enabled {
		return scraper.New(static, nil, nil), func() {}
	}

	browser := scraper.NewBrowser(cfg.Browser, cfg.Navigation, nil)
	return scraper.New(static, engine.NewRodEngine(browser.Fetch), nil), browser.Close
}
