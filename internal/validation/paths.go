// Package validation holds the filesystem checks shared by the command
// line binaries: venue data directories, output targets and score files
// are validated before any computation starts, so a misconfigured path
// fails fast instead of surfacing as a half-written report.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator validates input and output locations for the engine
// binaries.
type PathValidator struct {
	logger *slog.Logger
}

// NewPathValidator creates a validator. A nil logger falls back to the
// process default.
func NewPathValidator(logger *slog.Logger) *PathValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PathValidator{logger: logger}
}

// ValidateVenueDirectory checks that the venue data directory exists and
// holds at least minVenues CSV files (one per venue).
func (v *PathValidator) ValidateVenueDirectory(dir string, minVenues int) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("venue data directory %s does not exist", dir)
	}
	if err != nil {
		return fmt.Errorf("stat venue data directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	count, err := v.countCSVFiles(dir)
	if err != nil {
		return err
	}
	if count < minVenues {
		return fmt.Errorf("venue data directory %s holds %d venue file(s), need at least %d", dir, count, minVenues)
	}

	v.logger.Info("venue data directory validated",
		"directory", dir,
		"venue_files", count,
	)
	return nil
}

// ValidateOutputDirectory creates the output directory when missing and
// verifies it is writable.
func (v *PathValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".write_probe")
	file, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(probe)

	v.logger.Info("output directory validated", "directory", dir)
	return nil
}

// ValidateScoreFile checks that a historical score CSV exists, is a
// regular file and carries the expected extension.
func (v *PathValidator) ValidateScoreFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("score file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("stat score file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a score file", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		return fmt.Errorf("score file %s is not a CSV file (extension %q)", path, ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("score file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("score file validated", "file", path, "size", info.Size())
	return nil
}

func (v *PathValidator) countCSVFiles(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, fmt.Errorf("scan %s for venue files: %w", dir, err)
	}
	count := 0
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			count++
		}
	}
	return count, nil
}
