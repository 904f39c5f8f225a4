package alignment

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	engerr "coordcli/internal/errors"
)

// AssembleVenues loads one bar CSV per venue from csvDir. The venue name is
// the file name without extension (e.g. "alpha.csv" holds venue "alpha").
// Files that fail to parse are skipped with a warning; the caller decides
// whether the surviving venue count is sufficient.
//
// Expected columns: time,open,high,low,close,volume with time as RFC3339 or
// Unix seconds.
func AssembleVenues(ctx context.Context, csvDir string, granularity time.Duration, venues []string) ([]VenueSeries, error) {
	logger := slog.Default()

	if _, err := os.Stat(csvDir); os.IsNotExist(err) {
		return nil, engerr.IO(fmt.Sprintf("CSV directory does not exist: %s", csvDir), err)
	}

	pattern := filepath.Join(csvDir, "*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, engerr.IO("find CSV files", err)
	}
	if len(files) == 0 {
		return nil, engerr.InsufficientData("no CSV files found in directory: %s", csvDir)
	}
	sort.Strings(files)

	var out []VenueSeries
	for _, file := range files {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during data loading: %w", ctx.Err())
		default:
		}

		venue := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		if len(venues) > 0 && !contains(venues, venue) {
			continue
		}

		series, err := LoadVenueBars(file, venue, granularity)
		if err != nil {
			logger.WarnContext(ctx, "failed to load venue CSV",
				"file", file,
				"error", err,
			)
			continue
		}
		out = append(out, series)
	}

	if len(out) == 0 {
		return nil, engerr.InsufficientData("no valid venue data loaded from %s", csvDir)
	}

	logger.InfoContext(ctx, "assembled venue series",
		"venues", len(out),
		"dir", csvDir,
	)
	return out, nil
}

// LoadVenueBars loads and validates one venue's bar CSV.
func LoadVenueBars(path, venue string, granularity time.Duration) (VenueSeries, error) {
	file, err := os.Open(path)
	if err != nil {
		return VenueSeries{}, engerr.IO("open bar CSV", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return VenueSeries{}, engerr.IO("read bar CSV", err)
	}
	if len(rows) == 0 {
		return VenueSeries{}, engerr.InsufficientData("empty CSV: %s", path)
	}

	start := 0
	if isHeaderRow(rows[0]) {
		start = 1
	}

	series := VenueSeries{Venue: venue, Granularity: granularity}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 6 {
			return VenueSeries{}, engerr.Newf(engerr.CodeIO, "%s: row %d has %d columns, want 6", path, i+1, len(row))
		}
		ts, err := parseTime(row[0])
		if err != nil {
			return VenueSeries{}, engerr.Newf(engerr.CodeIO, "%s: row %d: bad time %q", path, i+1, row[0])
		}
		vals := make([]float64, 5)
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j+1]), 64)
			if err != nil {
				return VenueSeries{}, engerr.Newf(engerr.CodeIO, "%s: row %d col %d: bad number %q", path, i+1, j+2, row[j+1])
			}
			vals[j] = v
		}
		series.Bars = append(series.Bars, Bar{
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}

	if len(series.Bars) == 0 {
		return VenueSeries{}, engerr.InsufficientData("no bar rows in %s", path)
	}
	sort.Slice(series.Bars, func(i, j int) bool {
		return series.Bars[i].Time.Before(series.Bars[j].Time)
	})
	if err := series.Validate(); err != nil {
		return VenueSeries{}, err
	}
	return series, nil
}

// LoadOrders loads an order-placement CSV with columns
// time,venue,price,size,side. Invalid rows fail the whole file: a silently
// thinned order set would bias the overlap metrics.
func LoadOrders(path string) ([]Order, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, engerr.IO("open order CSV", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, engerr.IO("read order CSV", err)
	}

	start := 0
	if len(rows) > 0 && isHeaderRow(rows[0]) {
		start = 1
	}

	var orders []Order
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 5 {
			return nil, engerr.Newf(engerr.CodeIO, "%s: row %d has %d columns, want 5", path, i+1, len(row))
		}
		ts, err := parseTime(row[0])
		if err != nil {
			return nil, engerr.Newf(engerr.CodeIO, "%s: row %d: bad time %q", path, i+1, row[0])
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, engerr.Newf(engerr.CodeIO, "%s: row %d: bad price %q", path, i+1, row[2])
		}
		size, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, engerr.Newf(engerr.CodeIO, "%s: row %d: bad size %q", path, i+1, row[3])
		}
		o := Order{
			Time:  ts,
			Venue: strings.TrimSpace(row[1]),
			Price: price,
			Size:  size,
			Side:  strings.ToLower(strings.TrimSpace(row[4])),
		}
		if !o.IsValid() {
			return nil, engerr.Newf(engerr.CodeIO, "%s: row %d: invalid order", path, i+1)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", raw)
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(row[len(row)-1]), 64)
	return err != nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
