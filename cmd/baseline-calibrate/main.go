// Command baseline-calibrate recomputes the coordination baseline from a
// historical composite-score series: structural break detection, baseline
// recomputation over the most recent stable segment, drift detector
// replay, detection power figures, and (when volatilities are supplied) a
// false-positive backtest by volatility regime.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"coordcli/internal/calibration"
	"coordcli/internal/config"
	"coordcli/internal/infrastructure"
	"coordcli/internal/validation"
	"coordcli/pkg/contracts"
)

func main() {
	scoreFile := flag.String("scores", "data/scores.csv", "historical score CSV (time,score[,vol])")
	outputDir := flag.String("out", "data/calibration", "output directory for the calibration files")
	seed := flag.Int64("seed", 0, "seed override (0: use configured seed)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration invalid:", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()
	ctx := infrastructure.EnsureTraceID(context.Background())

	validator := validation.NewPathValidator(logger)
	if err := validator.ValidateScoreFile(*scoreFile); err != nil {
		logger.Error("score file rejected", "error", err)
		os.Exit(1)
	}
	if err := validator.ValidateOutputDirectory(*outputDir); err != nil {
		logger.Error("output directory rejected", "error", err)
		os.Exit(1)
	}

	scores, vols, err := loadScores(*scoreFile)
	if err != nil {
		logger.ErrorContext(ctx, "score loading failed", "error", err)
		os.Exit(1)
	}
	logger.InfoContext(ctx, "loaded historical scores",
		"path", *scoreFile,
		"observations", len(scores),
		"volatilities", len(vols),
	)

	cal, err := calibration.Calibrate(ctx, scores, cfg.Calibration, cfg.Run.Seed)
	if err != nil {
		logger.ErrorContext(ctx, "baseline calibration failed", "error", err)
		os.Exit(1)
	}

	// Drift replay is advisory: alarms between the detected breaks point
	// at slow decay the segmentation may have been too coarse to split on.
	if alarms, err := calibration.CUSUM(scores, cfg.Calibration); err == nil && len(alarms) > 0 {
		logger.WarnContext(ctx, "cusum drift alarms over history", "alarms", len(alarms), "first_index", alarms[0].Index)
	}
	if alarms, err := calibration.PageHinkley(scores, cfg.Calibration); err == nil && len(alarms) > 0 {
		logger.WarnContext(ctx, "page-hinkley drift alarms over history", "alarms", len(alarms), "first_index", alarms[0].Index)
	}

	segStdDev := cal.SegmentStdDev
	power, err := calibration.Power(cfg.Power, segStdDev, cal.SegmentLength)
	if err != nil {
		logger.WarnContext(ctx, "power analysis skipped", "error", err)
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	calPath := filepath.Join(*outputDir, fmt.Sprintf("baseline_calibration_%s.json", stamp))
	if err := calibration.SaveCalibrationJSON(cal, calPath); err != nil {
		logger.ErrorContext(ctx, "calibration write failed", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(ctx, "baseline calibration complete",
		"baseline", cal.Baseline,
		"ci_low", cal.CILow,
		"ci_high", cal.CIHigh,
		"regime", string(cal.Regime),
		"breaks", len(cal.Breaks.Breaks),
		"output", calPath,
	)

	printCalibration(cal, power)

	if len(vols) == len(scores) && len(vols) > 0 {
		report, err := calibration.FalsePositiveBacktest(scores, vols, cfg.Calibration, cfg.Power)
		if err != nil {
			logger.WarnContext(ctx, "false-positive backtest skipped", "error", err)
			return
		}
		printBacktest(report)
	}
}

// loadScores reads a score CSV with columns time,score and an optional
// third vol column. Rows failing to parse are skipped; a baseline built
// on misparsed scores is worse than one built on fewer.
func loadScores(path string) (scores, vols []float64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open score file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read score file: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		if first {
			first = false
			if _, convErr := strconv.ParseFloat(row[1], 64); convErr != nil {
				continue // header row
			}
		}
		score, convErr := strconv.ParseFloat(row[1], 64)
		if convErr != nil {
			continue
		}
		scores = append(scores, score)
		if len(row) > 2 {
			if vol, convErr := strconv.ParseFloat(row[2], 64); convErr == nil {
				vols = append(vols, vol)
			}
		}
	}
	if len(scores) == 0 {
		return nil, nil, fmt.Errorf("no score rows in %s", path)
	}
	if len(vols) != 0 && len(vols) != len(scores) {
		// Partial vol columns cannot be paired with scores reliably.
		vols = nil
	}
	return scores, vols, nil
}

func printCalibration(cal *calibration.BaselineCalibration, power *calibration.PowerResult) {
	fmt.Println("\n=== BASELINE CALIBRATION ===")
	fmt.Printf("Baseline:        %.4f  [%.4f, %.4f]\n", cal.Baseline, cal.CILow, cal.CIHigh)
	fmt.Printf("Segment:         observations %d..%d (%d used, %d outliers removed)\n",
		cal.SegmentStart, cal.SegmentStart+cal.SegmentLength, cal.SegmentLength-cal.OutliersRemoved, cal.OutliersRemoved)
	fmt.Printf("Volatility:      %s regime (segment std dev %.4f)\n", cal.Regime, cal.SegmentStdDev)
	fmt.Printf("Breaks detected: %d\n", len(cal.Breaks.Breaks))
	for _, bp := range cal.Breaks.Breaks {
		fmt.Printf("  index %d  F=%.2f  p=%.4g\n", bp.Index, bp.FStat, bp.PValue)
	}

	if power != nil {
		fmt.Println("\n=== DETECTION POWER ===")
		fmt.Printf("Minimum detectable effect: %.4f at alpha %.2f, power %.2f\n", power.MDE, power.Alpha, power.TargetPower)
		fmt.Printf("Power against effect %.2f:  %.3f\n", power.Effect, power.AchievedPower)
		fmt.Printf("Required sample size:      %d (have %d)\n", power.RequiredN, power.SampleSize)
	}
}

func printBacktest(report *calibration.FalsePositiveReport) {
	fmt.Println("\n=== FALSE-POSITIVE BACKTEST ===")
	fmt.Printf("Detection threshold: %.2f\n", report.Threshold)
	fmt.Println("Regime | Obs | FP | Rate    | 95% CI")
	fmt.Println("-------|-----|----|---------|------------------")
	for _, r := range report.Regimes {
		fmt.Printf("%-6s | %3d | %2d | %.4f | [%.4f, %.4f]\n",
			r.Regime, r.Observations, r.FalsePositives, r.Rate, r.CILow, r.CIHigh)
	}
	fmt.Printf("Rate sensitivity to volatility: %.3f per vol unit\n", report.VolSensitivitySlope)
}
