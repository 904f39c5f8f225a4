package coordination

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"coordcli/internal/config"
	engerr "coordcli/internal/errors"
	"coordcli/internal/infrastructure"
	"coordcli/internal/stats"
)

// DefaultCalculationTimeout bounds one full analysis run.
const DefaultCalculationTimeout = 5 * time.Minute

// Calculator orchestrates one coordination analysis run: pairwise
// similarity metrics, spread convergence, lead-lag and synchronous moves,
// fanned out over a bounded worker pool. Safe for concurrent use; all
// mutable state lives in the per-run scope.
type Calculator struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *infrastructure.EngineMetrics

	calculationTimeout time.Duration
}

// NewCalculator builds a calculator. Metrics may be nil when telemetry is
// not wired (library use, tests).
func NewCalculator(cfg *config.Config, logger *slog.Logger, metrics *infrastructure.EngineMetrics) (*Calculator, error) {
	if cfg == nil {
		return nil, engerr.Configuration("calculator needs a configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, engerr.Wrap(engerr.CodeConfiguration, "invalid calculator configuration", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		cfg:                cfg,
		logger:             logger,
		metrics:            metrics,
		calculationTimeout: DefaultCalculationTimeout,
	}, nil
}

// SetCalculationTimeout overrides the per-run timeout.
func (c *Calculator) SetCalculationTimeout(d time.Duration) {
	if d > 0 {
		c.calculationTimeout = d
	}
}

// Calculate runs the full analysis over one aligned window. Metric-level
// failures degrade to failed records; only run-level problems (bad input,
// timeout) return an error. Output is deterministic for a fixed seed:
// records are sorted and every random stream derives from the run seed.
func (c *Calculator) Calculate(ctx context.Context, input AnalysisInput) (*RunResult, error) {
	start := time.Now()

	if input.Grid == nil || input.Grid.NumRows() == 0 {
		return nil, engerr.InsufficientData("analysis needs a populated aligned grid")
	}
	grid := input.Grid
	if len(grid.Venues) < c.cfg.Alignment.MinVenues {
		return nil, engerr.InsufficientData("analysis needs >= %d venues, have %d", c.cfg.Alignment.MinVenues, len(grid.Venues))
	}
	if grid.NumRows() < c.cfg.Alignment.MinObservations {
		return nil, engerr.InsufficientData("analysis needs >= %d aligned observations, have %d",
			c.cfg.Alignment.MinObservations, grid.NumRows())
	}

	runID := uuid.New().String()
	seed := c.cfg.Run.Seed
	ctx = infrastructure.EnsureTraceID(ctx)
	logger := c.logger.With("run_id", runID)
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}

	logger.InfoContext(ctx, "starting coordination analysis",
		"venues", grid.Venues,
		"observations", grid.NumRows(),
		"fill_policy", string(grid.Policy),
		"synthetic", grid.Synthetic,
		"seed", seed,
	)

	calcCtx, cancel := context.WithTimeout(ctx, c.calculationTimeout)
	defer cancel()

	if c.metrics != nil {
		c.metrics.ActiveRuns.Add(ctx, 1)
		defer c.metrics.ActiveRuns.Add(ctx, -1)
	}

	returns := grid.LogReturns()

	result := &RunResult{
		RunID:       runID,
		Seed:        seed,
		Venues:      grid.Venues,
		WindowStart: grid.Times[0],
		WindowEnd:   grid.Times[len(grid.Times)-1],
		FillPolicy:  string(grid.Policy),
		Synthetic:   grid.Synthetic,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(calcCtx)
	g.SetLimit(c.cfg.Run.MaxConcurrency)

	for i := 0; i < len(grid.Venues); i++ {
		for j := i + 1; j < len(grid.Venues); j++ {
			venueA, venueB := grid.Venues[i], grid.Venues[j]
			g.Go(func() error {
				records := c.analyzePair(gctx, logger, input, result, venueA, venueB)
				mu.Lock()
				result.Records = append(result.Records, records...)
				mu.Unlock()
				return gctx.Err()
			})
		}
	}

	g.Go(func() error {
		spread, err := AnalyzeSpread(gctx, grid, c.cfg.Spread, stats.SubSeed(seed, "spread"))
		if err != nil {
			logger.WarnContext(gctx, "spread analysis skipped", "error", err)
			return gctx.Err()
		}
		mu.Lock()
		result.Spread = spread
		mu.Unlock()
		if c.metrics != nil {
			c.metrics.EpisodesDetected.Add(gctx, int64(len(spread.Episodes)))
		}
		return nil
	})

	g.Go(func() error {
		leadLag, err := AnalyzeLeadLag(gctx, returns, c.cfg.LeadLag)
		if err != nil {
			logger.WarnContext(gctx, "lead-lag analysis skipped", "error", err)
			return gctx.Err()
		}
		mu.Lock()
		result.LeadLag = leadLag
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		syncMoves, err := AnalyzeSyncMoves(gctx, returns, c.cfg.SyncMove, stats.SubSeed(seed, "syncmove"))
		if err != nil {
			logger.WarnContext(gctx, "synchronous move analysis skipped", "error", err)
			return gctx.Err()
		}
		mu.Lock()
		result.SyncMoves = syncMoves
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "analysis run aborted", "error", err)
		return nil, fmt.Errorf("coordination analysis: %w", err)
	}

	// Worker completion order is scheduling-dependent; sort so equal
	// inputs produce byte-equal outputs.
	sort.Slice(result.Records, func(a, b int) bool {
		ra, rb := result.Records[a], result.Records[b]
		if ra.VenueA != rb.VenueA {
			return ra.VenueA < rb.VenueA
		}
		if ra.VenueB != rb.VenueB {
			return ra.VenueB < rb.VenueB
		}
		return ra.Metric < rb.Metric
	})

	result.Elapsed = time.Since(start)

	failed := len(result.FailedRecords())
	if c.metrics != nil {
		c.metrics.RunsTotal.Add(ctx, 1)
		c.metrics.RunDuration.Record(ctx, result.Elapsed.Seconds())
		c.metrics.MetricRecordsTotal.Add(ctx, int64(len(result.Records)))
		c.metrics.MetricFailuresTotal.Add(ctx, int64(failed))
		c.metrics.BootstrapIterations.Add(ctx,
			int64(c.cfg.Similarity.BootstrapIters*len(result.Records)/4),
			metric.WithAttributes(attribute.String("analysis", "composite")))
	}

	logger.InfoContext(ctx, "coordination analysis complete",
		"records", len(result.Records),
		"failed_records", failed,
		"episodes", episodeCount(result.Spread),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// analyzePair computes the four similarity records for one venue pair.
// Every record is emitted: a metric that cannot be computed becomes a
// failed record carrying its audit reason and the neutral value.
func (c *Calculator) analyzePair(ctx context.Context, logger *slog.Logger, input AnalysisInput, run *RunResult, venueA, venueB string) []MetricRecord {
	grid := input.Grid
	pricesA := grid.MustColumn(venueA)
	pricesB := grid.MustColumn(venueB)
	pairSeed := stats.SubSeed(c.cfg.Run.Seed, "pair:"+venueA+"|"+venueB)

	base := MetricRecord{
		RunID:       run.RunID,
		VenueA:      venueA,
		VenueB:      venueB,
		SampleSize:  grid.NumRows(),
		Synthetic:   run.Synthetic,
		FillPolicy:  run.FillPolicy,
		WindowStart: run.WindowStart,
		WindowEnd:   run.WindowEnd,
	}

	depthCos := 0.0
	depthRec := base
	depthRec.Metric = MetricDepthCosine
	depthA, okA := input.Depth[venueA]
	depthB, okB := input.Depth[venueB]
	if !okA || !okB {
		depthRec.FailureReason = engerr.InsufficientData("missing depth snapshot for %s/%s", venueA, venueB).Error()
	} else {
		v, err := DepthWeightedCosine(depthA, depthB, c.cfg.Similarity)
		depthCos = v
		depthRec.Value = v
		if err != nil {
			depthRec.FailureReason = err.Error()
			c.logMetricFailure(ctx, logger, MetricDepthCosine, venueA, venueB, err)
		}
	}

	jaccard := 0.0
	jaccardRec := base
	jaccardRec.Metric = MetricJaccard
	ordersA, ordersB := input.Orders[venueA], input.Orders[venueB]
	if len(ordersA) == 0 && len(ordersB) == 0 {
		jaccardRec.FailureReason = engerr.InsufficientData("no order placements for %s/%s", venueA, venueB).Error()
	} else {
		v, err := JaccardIndex(ordersA, ordersB, c.cfg.Similarity)
		jaccard = v
		jaccardRec.Value = v
		if err != nil {
			jaccardRec.FailureReason = err.Error()
			c.logMetricFailure(ctx, logger, MetricJaccard, venueA, venueB, err)
		}
	}

	corrRec := base
	corrRec.Metric = MetricPriceCorrelation
	corr, err := PriceCorrelation(pricesA, pricesB)
	corrRec.Value = corr
	if err != nil {
		corrRec.FailureReason = err.Error()
		c.logMetricFailure(ctx, logger, MetricPriceCorrelation, venueA, venueB, err)
	}

	compositeRec := base
	compositeRec.Metric = MetricComposite
	composite, err := CompositeScore(depthCos, jaccard, corr, c.cfg.Similarity)
	compositeRec.Value = composite
	if err != nil {
		compositeRec.FailureReason = err.Error()
		c.logMetricFailure(ctx, logger, MetricComposite, venueA, venueB, err)
	} else {
		dist := CompositeDistribution(pricesA, pricesB, depthCos, jaccard, c.cfg.Similarity, pairSeed)
		compositeRec.CILow, compositeRec.CIHigh = CompositeCI(dist)
		compositeRec.PValue = compositeNullFraction(dist, c.cfg.Similarity.WeakBand)
		compositeRec.Interpretation = ExplainComposite(composite, c.cfg.Similarity)
	}

	return []MetricRecord{depthRec, jaccardRec, corrRec, compositeRec}
}

func (c *Calculator) logMetricFailure(ctx context.Context, logger *slog.Logger, metricName, venueA, venueB string, err error) {
	level := slog.LevelWarn
	if engerr.CodeOf(err) == engerr.CodeNumericalInstability {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "metric failed, recording neutral value",
		"metric", metricName,
		"venue_a", venueA,
		"venue_b", venueB,
		"code", string(engerr.CodeOf(err)),
		"error", err,
	)
}

// compositeNullFraction reports the fraction of the bootstrap distribution
// at or below the no-evidence band, an empirical probability that the
// observed similarity is indistinguishable from uncoordinated behavior.
func compositeNullFraction(sortedScores []float64, weakBand float64) float64 {
	if len(sortedScores) == 0 {
		return 1
	}
	atOrBelow := sort.SearchFloat64s(sortedScores, weakBand)
	for atOrBelow < len(sortedScores) && sortedScores[atOrBelow] == weakBand {
		atOrBelow++
	}
	return float64(atOrBelow) / float64(len(sortedScores))
}

func episodeCount(s *SpreadResult) int {
	if s == nil {
		return 0
	}
	return len(s.Episodes)
}
