package coordination

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SaveRecordsCSV writes the metric records of a run to a CSV file. Records
// are already sorted by the calculator, so equal runs produce byte-equal
// files.
func SaveRecordsCSV(result *RunResult, outputPath string) error {
	if result == nil || len(result.Records) == 0 {
		return fmt.Errorf("no records to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Run_ID",
		"Metric",
		"Venue_A",
		"Venue_B",
		"Value",
		"CI_Low",
		"CI_High",
		"P_Value",
		"Sample_Size",
		"Interpretation",
		"Failure_Reason",
		"Synthetic",
		"Fill_Policy",
		"Window_Start",
		"Window_End",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, rec := range result.Records {
		row := []string{
			rec.RunID,
			rec.Metric,
			rec.VenueA,
			rec.VenueB,
			formatFloat(rec.Value, 6),
			formatFloat(rec.CILow, 6),
			formatFloat(rec.CIHigh, 6),
			formatFloat(rec.PValue, 6),
			strconv.Itoa(rec.SampleSize),
			rec.Interpretation,
			rec.FailureReason,
			strconv.FormatBool(rec.Synthetic),
			rec.FillPolicy,
			rec.WindowStart.Format(time.RFC3339),
			rec.WindowEnd.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write CSV record %s/%s-%s: %w", rec.Metric, rec.VenueA, rec.VenueB, err)
		}
	}
	return nil
}

// SaveEpisodesCSV writes detected compression episodes to a CSV file.
func SaveEpisodesCSV(result *RunResult, outputPath string) error {
	if result == nil || result.Spread == nil {
		return fmt.Errorf("no spread analysis to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Run_ID",
		"Start",
		"End",
		"Duration",
		"Start_Dispersion_BPS",
		"End_Dispersion_BPS",
		"Leader",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	for _, ep := range result.Spread.Episodes {
		row := []string{
			result.RunID,
			ep.Start.Format(time.RFC3339),
			ep.End.Format(time.RFC3339),
			ep.Duration.String(),
			formatFloat(ep.StartDispersion, 4),
			formatFloat(ep.EndDispersion, 4),
			ep.Leader,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write episode starting %s: %w", ep.Start.Format(time.RFC3339), err)
		}
	}
	return nil
}

// SaveEdgesCSV writes the lead-lag edge matrix to a CSV file.
func SaveEdgesCSV(result *RunResult, outputPath string) error {
	if result == nil || result.LeadLag == nil {
		return fmt.Errorf("no lead-lag analysis to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Run_ID",
		"Source",
		"Dest",
		"Horizon",
		"Score",
		"P_Value",
		"R2",
		"Observations",
		"Valid",
		"Significant",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	alpha := result.LeadLag.Significance
	for _, edge := range result.LeadLag.Edges {
		row := []string{
			result.RunID,
			edge.Source,
			edge.Dest,
			edge.Horizon.String(),
			formatFloat(edge.Score, 4),
			formatFloat(edge.PValue, 6),
			formatFloat(edge.R2, 6),
			strconv.Itoa(edge.Observations),
			strconv.FormatBool(edge.Valid),
			strconv.FormatBool(edge.Significant(alpha)),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write edge %s->%s: %w", edge.Source, edge.Dest, err)
		}
	}
	return nil
}

// SaveRunJSON writes the full run result to a JSON file with a metadata
// envelope for downstream report tooling.
func SaveRunJSON(result *RunResult, outputPath string) error {
	if result == nil {
		return fmt.Errorf("no run result to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	output := map[string]interface{}{
		"metadata": map[string]interface{}{
			"generated_at":   time.Now().Format(time.RFC3339),
			"run_id":         result.RunID,
			"seed":           result.Seed,
			"venues":         strings.Join(result.Venues, ","),
			"total_records":  len(result.Records),
			"failed_records": len(result.FailedRecords()),
		},
		"result": result,
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func formatFloat(value float64, precision int) string {
	return strconv.FormatFloat(value, 'f', precision, 64)
}
