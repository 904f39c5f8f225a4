package coordination

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"time"

	engerr "coordcli/internal/errors"
)

// LoadDepthSnapshot loads one venue's order-book depth CSV. Columns are
// time,price,size with levels ordered best-first; the snapshot instant is
// the first row's time. Invalid rows fail the whole file: a silently
// thinned book would bias the depth-cosine metric.
func LoadDepthSnapshot(path, venue string) (DepthSnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return DepthSnapshot{}, engerr.IO("open depth CSV", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return DepthSnapshot{}, engerr.IO("read depth CSV", err)
	}

	start := 0
	if len(rows) > 0 && depthHeaderRow(rows[0]) {
		start = 1
	}

	snap := DepthSnapshot{Venue: venue}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 3 {
			return DepthSnapshot{}, engerr.Newf(engerr.CodeIO, "%s: row %d has %d columns, want 3", path, i+1, len(row))
		}
		ts, err := parseDepthTime(row[0])
		if err != nil {
			return DepthSnapshot{}, engerr.Newf(engerr.CodeIO, "%s: row %d: bad time %q", path, i+1, row[0])
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return DepthSnapshot{}, engerr.Newf(engerr.CodeIO, "%s: row %d: bad price %q", path, i+1, row[1])
		}
		size, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return DepthSnapshot{}, engerr.Newf(engerr.CodeIO, "%s: row %d: bad size %q", path, i+1, row[2])
		}
		if price <= 0 || size < 0 {
			return DepthSnapshot{}, engerr.Newf(engerr.CodeIO, "%s: row %d: invalid level %g@%g", path, i+1, size, price)
		}
		if snap.Time.IsZero() {
			snap.Time = ts
		}
		snap.Levels = append(snap.Levels, BookLevel{Price: price, Size: size})
	}

	if len(snap.Levels) == 0 {
		return DepthSnapshot{}, engerr.InsufficientData("no depth rows in %s", path)
	}
	return snap, nil
}

func parseDepthTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

func depthHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(row[len(row)-1]), 64)
	return err != nil
}
