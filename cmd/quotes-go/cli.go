package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/GeorgiosLymperis/quotefancy/internal/config"
	"github.com/GeorgiosLymperis/quotefancy/internal/scraper"
	"github.com/GeorgiosLymperis/quotefancy/internal/store"
	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
)

// CLI is the command structure of quotes-go.
type CLI struct {
	Verbose bool   `short:"v" help:"Enable debug logging"`
	Config  string `help:"Path to a YAML config file (defaults to ./quotefancy.yaml when present)"`

	Scrape  ScrapeCmd  `cmd:"" help:"Scrape quotefancy listings into a CSV or JSONL file"`
	Authors AuthorsCmd `cmd:"" help:"Print the distinct authors of an exported CSV file"`
}

// ScrapeCmd paginates every given listing and exports the quotes.
type ScrapeCmd struct {
	URLs    []string `arg:"" name:"url" sep:"none" help:"quotefancy listing URLs; comma separated lists are accepted"`
	Out     string   `short:"o" help:"Output file" default:"quotes.csv"`
	Format  string   `short:"f" enum:"csv,jsonl" default:"csv" help:"Output format (csv|jsonl)"`
	DB      string   `help:"SQLite file to archive the run in (overrides config)"`
	Workers int      `short:"w" help:"Listings paginated at once (overrides config)"`
	Pages   int      `short:"p" help:"Maximum pages per listing (overrides config)"`
	Preview bool     `help:"Print the scraped quotes as a table"`
}

// AuthorsCmd lists the authors of a previous export.
type AuthorsCmd struct {
	File string `arg:"" type:"existingfile" help:"CSV file written by the scrape command"`
}

// runContext carries what every command needs besides its own flags.
type runContext struct {
	ctx        context.Context
	configPath string
	stdout     io.Writer
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("quotes-go"),
		kong.Description("Scrape quotefancy.com listings into a tabular export."),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	initLogging(cli.Verbose)
	return kctx.Run(&runContext{ctx: ctx, configPath: cli.Config, stdout: stdout})
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func (s *ScrapeCmd) Run(rc *runContext) error {
	var urls []string
	for _, arg := range s.URLs {
		urls = append(urls, scraper.SplitURLList(arg)...)
	}
	if len(urls) == 0 {
		return scraper.ErrNoSources
	}
	if strings.TrimSpace(s.Out) == "" {
		return scraper.ErrNoOutput
	}

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return err
	}
	if s.Workers > 0 {
		cfg.Workers = s.Workers
	}
	if s.Pages > 0 {
		cfg.PageCap = s.Pages
	}
	if s.DB != "" {
		cfg.Database = s.DB
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	controller, err := cfg.NewController()
	if err != nil {
		return err
	}

	ids := scraper.SourceIDs(urls)
	for _, id := range ids {
		slog.Info("Scraping", "source", id)
	}
	result, err := controller.Run(rc.ctx, ids)
	if err != nil {
		return err
	}
	if result.Interrupted {
		slog.Warn("Run interrupted, exporting partial results", "records", len(result.Records))
	}

	if cfg.Database != "" {
		if err := archiveRun(cfg.Database, result); err != nil {
			return err
		}
	}

	if len(result.Records) == 0 {
		slog.Warn("No quotes scraped")
		return nil
	}

	switch s.Format {
	case "jsonl":
		err = scraper.WriteJSONL(s.Out, result.Records)
	default:
		err = scraper.WriteCSVFile(s.Out, result.Records)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.Out, err)
	}
	slog.Info("Saved", "path", s.Out, "records", len(result.Records))

	if s.Preview {
		renderRecords(rc.stdout, result.Records)
	}
	renderSources(rc.stdout, result.Sources)
	fmt.Fprintln(rc.stdout, "Distinct authors:", scraper.JoinAuthors(result.Authors()))
	return nil
}

func archiveRun(path string, result *scraper.Run) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	// The run is archived even when the caller canceled it.
	if err := db.SaveRun(context.Background(), result); err != nil {
		return err
	}
	slog.Info("Archived run", "run", result.ID, "db", db.Path())
	return nil
}

func (a *AuthorsCmd) Run(rc *runContext) error {
	f, err := os.Open(a.File)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := scraper.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", a.File, err)
	}
	fmt.Fprintln(rc.stdout, scraper.JoinAuthors(scraper.DistinctAuthors(records)))
	return nil
}
