package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveCalibrationJSON writes a baseline calibration to a JSON file.
// Downstream runs load this to score against the recalibrated baseline.
func SaveCalibrationJSON(cal *BaselineCalibration, outputPath string) error {
	if cal == nil {
		return fmt.Errorf("no calibration to save")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cal); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// LoadCalibrationJSON reads a previously saved baseline calibration.
func LoadCalibrationJSON(path string) (*BaselineCalibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}
	var cal BaselineCalibration
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("decode calibration file: %w", err)
	}
	return &cal, nil
}
