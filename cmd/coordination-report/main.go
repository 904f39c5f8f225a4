// Command coordination-report runs one cross-venue coordination analysis:
// it loads per-venue bar CSVs (and optional order-book depth and
// order-placement CSVs), aligns them onto a shared second grid, computes
// the similarity, spread, lead-lag and synchronous-move analyses, and
// writes the record, episode and edge reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coordcli/internal/alignment"
	"coordcli/internal/config"
	"coordcli/internal/coordination"
	"coordcli/internal/infrastructure"
	"coordcli/internal/validation"
	"coordcli/pkg/contracts"
	"coordcli/pkg/contracts/domain"
)

func main() {
	dataDir := flag.String("data", "data/venues", "directory holding one bar CSV per venue")
	depthDir := flag.String("depth", "", "optional directory holding one order-book depth CSV per venue")
	ordersDir := flag.String("orders", "", "optional directory holding one order-placement CSV per venue")
	outputDir := flag.String("out", "data/reports", "output directory for the coordination report")
	venueList := flag.String("venues", "", "comma-separated venue subset (default: every CSV in -data)")
	fillPolicy := flag.String("fill", "", "fill policy override: inner or ffill")
	granularity := flag.Duration("granularity", time.Minute, "granularity of the input bars")
	seed := flag.Int64("seed", 0, "run seed override (0: use configured seed)")
	enableMetrics := flag.Bool("metrics", false, "expose OpenTelemetry metrics while the run executes")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if *fillPolicy != "" {
		cfg.Alignment.FillPolicy = *fillPolicy
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("configuration invalid after flag overrides", "error", err)
		os.Exit(1)
	}

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()
	ctx := infrastructure.EnsureTraceID(context.Background())

	validator := validation.NewPathValidator(logger)
	if err := validator.ValidateVenueDirectory(*dataDir, cfg.Alignment.MinVenues); err != nil {
		logger.Error("venue data directory rejected", "error", err)
		os.Exit(1)
	}
	if err := validator.ValidateOutputDirectory(*outputDir); err != nil {
		logger.Error("output directory rejected", "error", err)
		os.Exit(1)
	}

	var metrics *infrastructure.EngineMetrics
	if *enableMetrics {
		providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
		if err != nil {
			logger.Error("telemetry initialization failed", "error", err)
			os.Exit(1)
		}
		defer providers.Shutdown(ctx)
		metrics, err = infrastructure.CreateEngineMetrics(providers.Meter)
		if err != nil {
			logger.Error("metric instrument creation failed", "error", err)
			os.Exit(1)
		}
	}

	var venues []string
	if *venueList != "" {
		venues = strings.Split(*venueList, ",")
	}

	logger.InfoContext(ctx, "loading venue bar data",
		"data_dir", *dataDir,
		"granularity", granularity.String(),
		"venues", venues,
	)
	series, err := alignment.AssembleVenues(ctx, *dataDir, *granularity, venues)
	if err != nil {
		logger.ErrorContext(ctx, "venue data loading failed", "error", err)
		os.Exit(1)
	}

	// Per-second alignment: minute venues get synthetic second bars,
	// flagged as such on every downstream record.
	for i, s := range series {
		upgraded, err := alignment.EnsureSecondData(s, cfg.Run.Seed, cfg.Alignment.MaxSynthNoise)
		if err != nil {
			logger.ErrorContext(ctx, "second-level synthesis failed", "venue", s.Venue, "error", err)
			os.Exit(1)
		}
		series[i] = upgraded
	}

	grid, err := alignment.Align(ctx, series, alignment.FillPolicy(cfg.Alignment.FillPolicy), cfg.Alignment.MinVenues)
	if err != nil {
		logger.ErrorContext(ctx, "time alignment failed", "error", err)
		os.Exit(1)
	}
	logger.InfoContext(ctx, "aligned venue grid",
		"venues", grid.Venues,
		"observations", grid.NumRows(),
		"fill_policy", string(grid.Policy),
		"synthetic", grid.Synthetic,
	)

	input := coordination.AnalysisInput{Grid: grid}
	if *depthDir != "" {
		input.Depth = loadDepthByVenue(ctx, logger, *depthDir, grid.Venues)
	}
	if *ordersDir != "" {
		input.Orders = loadOrdersByVenue(ctx, logger, *ordersDir, grid.Venues)
	}

	calc, err := coordination.NewCalculator(cfg, logger, metrics)
	if err != nil {
		logger.ErrorContext(ctx, "calculator construction failed", "error", err)
		os.Exit(1)
	}
	result, err := calc.Calculate(ctx, input)
	if err != nil {
		logger.ErrorContext(ctx, "coordination analysis failed", "error", err)
		os.Exit(1)
	}

	stamp := result.WindowEnd.Format("20060102_150405")
	recordsPath := filepath.Join(*outputDir, fmt.Sprintf("coordination_records_%s.csv", stamp))
	episodesPath := filepath.Join(*outputDir, fmt.Sprintf("compression_episodes_%s.csv", stamp))
	edgesPath := filepath.Join(*outputDir, fmt.Sprintf("leadlag_edges_%s.csv", stamp))
	runPath := filepath.Join(*outputDir, fmt.Sprintf("coordination_run_%s.json", stamp))

	if err := coordination.SaveRecordsCSV(result, recordsPath); err != nil {
		logger.ErrorContext(ctx, "record report write failed", "error", err)
		os.Exit(1)
	}
	if result.Spread != nil {
		if err := coordination.SaveEpisodesCSV(result, episodesPath); err != nil {
			logger.ErrorContext(ctx, "episode report write failed", "error", err)
			os.Exit(1)
		}
	}
	if result.LeadLag != nil {
		if err := coordination.SaveEdgesCSV(result, edgesPath); err != nil {
			logger.ErrorContext(ctx, "edge report write failed", "error", err)
			os.Exit(1)
		}
	}
	if err := coordination.SaveRunJSON(result, runPath); err != nil {
		logger.ErrorContext(ctx, "run report write failed", "error", err)
		os.Exit(1)
	}

	summary, findings := coordination.Summarize(result, cfg.Similarity)
	logger.InfoContext(ctx, "coordination report generated",
		"run_id", summary.RunID,
		"records", summary.Records,
		"failed_records", summary.FailedRecords,
		"strong_pairs", summary.StrongPairs,
		"episodes", summary.Episodes,
		"significant_edges", summary.SignificantEdges,
		"report", recordsPath,
	)
	printFindings(findings)
}

// loadDepthByVenue loads <venue>.csv depth snapshots for every aligned
// venue. Missing files only mean the depth-cosine metric degrades to a
// failed record, so they are logged and skipped.
func loadDepthByVenue(ctx context.Context, logger *slog.Logger, dir string, venues []string) map[string]coordination.DepthSnapshot {
	depth := make(map[string]coordination.DepthSnapshot, len(venues))
	for _, venue := range venues {
		path := filepath.Join(dir, venue+".csv")
		snap, err := coordination.LoadDepthSnapshot(path, venue)
		if err != nil {
			logger.WarnContext(ctx, "order-book depth unavailable for venue",
				"venue", venue,
				"path", path,
				"error", err,
			)
			continue
		}
		depth[venue] = snap
	}
	return depth
}

// loadOrdersByVenue loads <venue>.csv order files for every aligned
// venue. Missing files only mean the placement metric degrades to a
// failed record, so they are logged and skipped.
func loadOrdersByVenue(ctx context.Context, logger *slog.Logger, dir string, venues []string) map[string][]alignment.Order {
	orders := make(map[string][]alignment.Order, len(venues))
	for _, venue := range venues {
		path := filepath.Join(dir, venue+".csv")
		loaded, err := alignment.LoadOrders(path)
		if err != nil {
			logger.WarnContext(ctx, "order placements unavailable for venue",
				"venue", venue,
				"path", path,
				"error", err,
			)
			continue
		}
		orders[venue] = loaded
	}
	return orders
}

func printFindings(findings []domain.PairFinding) {
	if len(findings) == 0 {
		return
	}

	fmt.Println("\n=== VENUE PAIR COMPOSITE SCORES ===")
	fmt.Println("Venue A | Venue B | Composite | 95% CI          | Evidence")
	fmt.Println("--------|---------|-----------|-----------------|---------")
	for _, f := range findings {
		fmt.Printf("%-7s | %-7s | %9.3f | [%.3f, %.3f] | %s\n",
			f.VenueA, f.VenueB, f.Composite, f.CILow, f.CIHigh, f.Evidence)
	}
}
