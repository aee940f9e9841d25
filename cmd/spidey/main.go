package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/deidaraiorek/spidey/internal/config"
	"github.com/deidaraiorek/spidey/internal/engine"
	"github.com/deidaraiorek/spidey/internal/fetcher"
	"github.com/deidaraiorek/spidey/internal/report"
	"github.com/deidaraiorek/spidey/internal/search"
	"github.com/deidaraiorek/spidey/internal/server"
	"github.com/deidaraiorek/spidey/internal/storage"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "spidey",
		Usage: "Crawl a site breadth-first, index it and search it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"SPIDEY_LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the SQLite database",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the crawl and search HTTP API",
				Action: serveCommand,
				Flags: append(fetchFlags(),
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
					},
				),
			},
			{
				Name:   "crawl",
				Usage:  "Replace the index with a fresh crawl",
				Action: crawlCommand,
				Flags: append(fetchFlags(),
					&cli.StringFlag{
						Name:     "seed",
						Aliases:  []string{"s"},
						Usage:    "Seed URL",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "target",
						Aliases: []string{"n"},
						Usage:   "Number of pages to visit",
						Value:   30,
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Rank indexed pages against a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "n",
						Usage: "Maximum number of results",
						Value: search.DefaultResults,
					},
				},
			},
			{
				Name:   "report",
				Usage:  "Write every stored page to a text report",
				Action: reportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file",
						Value:   report.DefaultFile,
					},
				},
			},
		},
	}
}

func fetchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "fetcher",
			Usage: "Page fetcher (http, browser)",
		},
		&cli.StringFlag{
			Name:  "user-agent",
			Usage: "User-Agent sent with every request",
		},
		&cli.DurationFlag{
			Name:  "fetch-timeout",
			Usage: "Timeout of a single page fetch",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Indexing workers",
		},
	}
}

func setupLogger(c *cli.Context) error {
	level, err := config.ParseLevel(strings.ToLower(c.String("log-level")))
	if err != nil {
		return fmt.Errorf("invalid log level: must be one of debug, info, warn, error: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig merges the environment with the flags that were set.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.DBPath = c.String("db")
	}
	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("fetcher") {
		cfg.Fetcher = strings.ToLower(c.String("fetcher"))
	}
	if c.IsSet("user-agent") {
		cfg.UserAgent = c.String("user-agent")
	}
	if c.IsSet("fetch-timeout") {
		cfg.FetchTimeout = c.Duration("fetch-timeout")
	}
	if c.IsSet("workers") {
		cfg.IndexWorkers = c.Int("workers")
	}
	cfg.LogLevel = strings.ToLower(c.String("log-level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFetcher(cfg *config.Config) (fetcher.PageFetcher, func() error) {
	if cfg.Fetcher == config.FetcherBrowser {
		bf := fetcher.NewBrowserFetcher(cfg.UserAgent, cfg.FetchTimeout)
		return bf, bf.Close
	}
	return fetcher.New(cfg.UserAgent, cfg.FetchTimeout), func() error { return nil }
}

// open returns the database and an engine over it. The caller runs the
// returned cleanup.
func open(cfg *config.Config) (*engine.Engine, *storage.Database, func(), error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	f, closeFetcher := newFetcher(cfg)
	e := engine.New(db, f,
		engine.WithLogger(slog.Default()),
		engine.WithIndexWorkers(cfg.IndexWorkers),
		engine.WithFetchTimeout(cfg.FetchTimeout))

	cleanup := func() {
		if err := closeFetcher(); err != nil {
			slog.Warn("failed to close fetcher", "err", err)
		}
		db.Close()
	}
	return e, db, cleanup, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	e, _, cleanup, err := open(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	srv := server.New(e, server.WithLogger(slog.Default()))
	return srv.ListenAndServe(ctx, cfg.Addr)
}

func crawlCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	e, _, cleanup, err := open(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	summary, err := e.Crawl(ctx, c.String("seed"), c.Int("target"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Run:           %s\n", summary.RunID)
	fmt.Fprintf(w, "Seed:          %s\n", summary.Seed)
	fmt.Fprintf(w, "State:         %s\n", summary.State)
	fmt.Fprintf(w, "Pages visited: %d (%d failed fetches)\n", summary.PagesVisited, summary.Failures)
	fmt.Fprintf(w, "Terms:         %d\n", summary.TermCount)
	fmt.Fprintf(w, "Bigrams:       %d\n", summary.BigramCount)
	fmt.Fprintf(w, "Trigrams:      %d\n", summary.TrigramCount)
	fmt.Fprintf(w, "Took:          %s\n", summary.Duration.Round(time.Millisecond))
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	e, _, cleanup, err := open(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := e.Search(c.Context, query, c.Int("n"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	for i, r := range results {
		keywords := make([]string, len(r.TopKeywords))
		for j, k := range r.TopKeywords {
			keywords[j] = fmt.Sprintf("%s %d", k.Term, k.Frequency)
		}
		fmt.Fprintf(w, "%2d. %.4f  %s\n", i+1, r.Score, r.Title)
		fmt.Fprintf(w, "    %s\n", r.URL)
		fmt.Fprintf(w, "    Last modified: %s\n", r.LastModified)
		fmt.Fprintf(w, "    Keywords: %s\n", strings.Join(keywords, "; "))
	}
	return nil
}

func reportCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	_, db, cleanup, err := open(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	out := c.String("out")
	if err := report.WriteFile(c.Context, db, out); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Report written to %s\n", out)
	return nil
}
