package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/digestpool/pkg/config"
	"github.com/umputun/digestpool/pkg/curation"
	"github.com/umputun/digestpool/pkg/domain"
	"github.com/umputun/digestpool/pkg/repository"
)

// Opts with all CLI options
type Opts struct {
	Config     string        `short:"c" long:"config" env:"CONFIG" default:"digestpool.yml" description:"configuration file"`
	Tenant     string        `short:"t" long:"tenant" env:"TENANT" required:"true" description:"tenant to run the pipeline for"`
	Candidates string        `short:"f" long:"candidates" description:"JSON file with raw candidates, \"-\" for stdin"`
	Extract    bool          `long:"extract" description:"recompute the preference profile after ingestion"`
	Analytics  bool          `long:"analytics" description:"print the analytics summary"`
	TopN       int           `long:"top" default:"20" description:"number of ranked items to print"`
	Timeout    time.Duration `long:"timeout" default:"5m" description:"overall pipeline timeout"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug)

	log.Printf("[INFO] starting digestpool version %s", revision)

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		log.Printf("[ERROR] pipeline failed: %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] done")
}

// run executes one pipeline pass: ingest, rank, optional extraction and analytics
func run(ctx context.Context, opts Opts) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repos.Close()

	engine := curation.NewEngine(cfg.GetCurationConfig(), curation.Stores{
		Items:       repos.Item,
		Feedback:    repos.Feedback,
		Quality:     repos.Quality,
		Preferences: repos.Preference,
	})

	if opts.Candidates != "" {
		batch, err := readCandidates(opts.Candidates)
		if err != nil {
			return fmt.Errorf("read candidates: %w", err)
		}
		result, err := engine.Ingest(ctx, opts.Tenant, batch)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		log.Printf("[INFO] ingest result: accepted=%d merged=%d rejected=%d", result.Accepted, result.MergedCount, len(result.Rejected))
	}

	if opts.Extract {
		prefs, err := engine.ExtractPreferences(ctx, opts.Tenant)
		if err != nil {
			return fmt.Errorf("extract preferences: %w", err)
		}
		log.Printf("[INFO] preferences: sources=%v topics=%v confidence=%.2f", prefs.PreferredSources, prefs.PreferredTopics, prefs.Confidence)
	}

	if err := printRanked(ctx, engine, repos, opts); err != nil {
		return err
	}

	if opts.Analytics {
		summary, err := engine.AnalyticsSummary(ctx, opts.Tenant)
		if err != nil {
			return fmt.Errorf("analytics: %w", err)
		}
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal analytics: %w", err)
		}
		fmt.Println(string(data))
	}

	return nil
}

// printRanked ranks the tenant's pool and prints the top entries
func printRanked(ctx context.Context, engine *curation.Engine, repos *repository.Repositories, opts Opts) error {
	items, err := repos.Item.ListItems(ctx, &domain.ItemFilter{Tenant: opts.Tenant})
	if err != nil {
		return fmt.Errorf("list pool: %w", err)
	}
	if len(items) == 0 {
		log.Printf("[INFO] pool for %s is empty", opts.Tenant)
		return nil
	}

	byID := make(map[int64]*domain.ContentItem, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
		byID[it.ID] = it
	}

	ranked, err := engine.Rank(ctx, opts.Tenant, ids)
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}

	limit := opts.TopN
	if limit > len(ranked.Ranked) {
		limit = len(ranked.Ranked)
	}
	for i := 0; i < limit; i++ {
		r := ranked.Ranked[i]
		fmt.Printf("%3d. %8.1f  [%s] %s\n", i+1, r.FinalScore, byID[r.ItemID].Source, byID[r.ItemID].Title)
	}
	return nil
}

// loadConfig reads the config file, falling back to defaults when missing
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("[WARN] config file %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

// readCandidates parses a JSON array of raw candidates from a file or stdin
func readCandidates(path string) ([]domain.RawCandidate, error) {
	var reader io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // file path comes from CLI flag
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		reader = f
	}

	var batch []domain.RawCandidate
	if err := json.NewDecoder(reader).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return batch, nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
