// Package config loads and validates the engine configuration from
// environment variables (COORD_* prefix) merged with an optional YAML file.
// Environment values take precedence. Validation runs before any analysis:
// a bad parameter set aborts the process, since results computed with wrong
// parameters are worse than no results.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete engine configuration.
type Config struct {
	Alignment   AlignmentConfig   `yaml:"alignment" envconfig:"ALIGNMENT"`
	Similarity  SimilarityConfig  `yaml:"similarity" envconfig:"SIMILARITY"`
	Spread      SpreadConfig      `yaml:"spread" envconfig:"SPREAD"`
	LeadLag     LeadLagConfig     `yaml:"lead_lag" envconfig:"LEAD_LAG"`
	SyncMove    SyncMoveConfig    `yaml:"sync_move" envconfig:"SYNC_MOVE"`
	Calibration CalibrationConfig `yaml:"calibration" envconfig:"CALIBRATION"`
	Power       PowerConfig       `yaml:"power" envconfig:"POWER"`
	Run         RunConfig         `yaml:"run" envconfig:"RUN"`
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
}

// AlignmentConfig controls the time-alignment layer.
type AlignmentConfig struct {
	MinVenues       int           `yaml:"min_venues" envconfig:"MIN_VENUES" default:"2" validate:"gte=1"`
	FillPolicy      string        `yaml:"fill_policy" envconfig:"FILL_POLICY" default:"inner" validate:"oneof=inner ffill"`
	MaxSynthNoise   float64       `yaml:"max_synth_noise" envconfig:"MAX_SYNTH_NOISE" default:"0.1" validate:"gte=0,lte=0.5"`
	MinObservations int           `yaml:"min_observations" envconfig:"MIN_OBSERVATIONS" default:"30" validate:"gte=2"`
	Granularity     time.Duration `yaml:"granularity" envconfig:"GRANULARITY" default:"1s" validate:"gt=0"`
}

// SimilarityConfig controls the similarity metric calculators.
type SimilarityConfig struct {
	DepthLevels      int     `yaml:"depth_levels" envconfig:"DEPTH_LEVELS" default:"50" validate:"gte=1"`
	DepthDecayAlpha  float64 `yaml:"depth_decay_alpha" envconfig:"DEPTH_DECAY_ALPHA" default:"0.1" validate:"gt=0"`
	TimeBucketMillis int64   `yaml:"time_bucket_millis" envconfig:"TIME_BUCKET_MILLIS" default:"100" validate:"gt=0"`
	PriceBucket      float64 `yaml:"price_bucket" envconfig:"PRICE_BUCKET" default:"0.01" validate:"gt=0"`
	SizeBucket       float64 `yaml:"size_bucket" envconfig:"SIZE_BUCKET" default:"0.001" validate:"gt=0"`
	DepthWeight      float64 `yaml:"depth_weight" envconfig:"DEPTH_WEIGHT" default:"0.5" validate:"gte=0"`
	JaccardWeight    float64 `yaml:"jaccard_weight" envconfig:"JACCARD_WEIGHT" default:"0.3" validate:"gte=0"`
	CorrWeight       float64 `yaml:"corr_weight" envconfig:"CORR_WEIGHT" default:"0.2" validate:"gte=0"`
	BootstrapIters   int     `yaml:"bootstrap_iters" envconfig:"BOOTSTRAP_ITERS" default:"1000" validate:"gte=1"`

	// Interpretation bands for the composite score. Configuration, not
	// business logic: they are preserved as documented defaults.
	StrongBand   float64 `yaml:"strong_band" envconfig:"STRONG_BAND" default:"0.8" validate:"gt=0,lte=1"`
	ModerateBand float64 `yaml:"moderate_band" envconfig:"MODERATE_BAND" default:"0.6" validate:"gt=0,lte=1"`
	WeakBand     float64 `yaml:"weak_band" envconfig:"WEAK_BAND" default:"0.4" validate:"gt=0,lte=1"`
}

// SpreadConfig controls the spread-convergence analyzer.
type SpreadConfig struct {
	CompressionPctile float64       `yaml:"compression_pctile" envconfig:"COMPRESSION_PCTILE" default:"0.10" validate:"gt=0,lt=1"`
	Lookback          time.Duration `yaml:"lookback" envconfig:"LOOKBACK" default:"10s" validate:"gt=0"`
	MinDuration       time.Duration `yaml:"min_duration" envconfig:"MIN_DURATION" default:"3s" validate:"gt=0"`
	Permutations      int           `yaml:"permutations" envconfig:"PERMUTATIONS" default:"1000" validate:"gte=1"`
}

// LeadLagConfig controls the lead-lag matrix analyzer.
type LeadLagConfig struct {
	Horizons     []time.Duration `yaml:"horizons" envconfig:"HORIZONS" default:"1s,5s,30s" validate:"min=1,dive,gt=0"`
	Significance float64         `yaml:"significance" envconfig:"SIGNIFICANCE" default:"0.05" validate:"gt=0,lt=1"`
}

// SyncMoveConfig controls the synchronous move detector.
type SyncMoveConfig struct {
	JumpPctile      float64       `yaml:"jump_pctile" envconfig:"JUMP_PCTILE" default:"0.90" validate:"gt=0,lt=1"`
	Window          time.Duration `yaml:"window" envconfig:"WINDOW" default:"2s" validate:"gt=0"`
	MinVenues       int           `yaml:"min_venues" envconfig:"MIN_VENUES" default:"3" validate:"gte=2"`
	BootstrapTrials int           `yaml:"bootstrap_trials" envconfig:"BOOTSTRAP_TRIALS" default:"1000" validate:"gte=1"`
}

// CalibrationConfig controls structural-break detection and baseline
// recomputation.
type CalibrationConfig struct {
	MinSegment        int     `yaml:"min_segment" envconfig:"MIN_SEGMENT" default:"20" validate:"gte=5"`
	MaxBreaks         int     `yaml:"max_breaks" envconfig:"MAX_BREAKS" default:"3" validate:"gte=1"`
	Significance      float64 `yaml:"significance" envconfig:"SIGNIFICANCE" default:"0.05" validate:"gt=0,lt=1"`
	CUSUMThreshold    float64 `yaml:"cusum_threshold" envconfig:"CUSUM_THRESHOLD" default:"5.0" validate:"gt=0"`
	PageHinkley       float64 `yaml:"page_hinkley" envconfig:"PAGE_HINKLEY" default:"10.0" validate:"gt=0"`
	PageHinkleyMinRun int     `yaml:"page_hinkley_min_run" envconfig:"PAGE_HINKLEY_MIN_RUN" default:"10" validate:"gte=1"`
	BootstrapResample int     `yaml:"bootstrap_resamples" envconfig:"BOOTSTRAP_RESAMPLES" default:"1000" validate:"gte=1"`

	// Volatility regime bands on sample standard deviation.
	LowVolBand  float64 `yaml:"low_vol_band" envconfig:"LOW_VOL_BAND" default:"0.05" validate:"gt=0"`
	HighVolBand float64 `yaml:"high_vol_band" envconfig:"HIGH_VOL_BAND" default:"0.15" validate:"gt=0"`
}

// PowerConfig controls the power-analysis framework.
type PowerConfig struct {
	Alpha              float64 `yaml:"alpha" envconfig:"ALPHA" default:"0.05" validate:"gt=0,lt=1"`
	TargetPower        float64 `yaml:"target_power" envconfig:"TARGET_POWER" default:"0.80" validate:"gt=0,lt=1"`
	DetectionThreshold float64 `yaml:"detection_threshold" envconfig:"DETECTION_THRESHOLD" default:"0.6" validate:"gt=0,lte=1"`
	NullSimilarityCap  float64 `yaml:"null_similarity_cap" envconfig:"NULL_SIMILARITY_CAP" default:"0.3" validate:"gt=0,lt=1"`
}

// RunConfig controls run-level behavior.
type RunConfig struct {
	Seed           int64 `yaml:"seed" envconfig:"SEED" default:"42"`
	MaxConcurrency int   `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" default:"4" validate:"gte=1"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/coordcli.log"`
}

// Load builds the configuration from environment variables and, when
// present, the YAML file named by COORD_CONFIG_FILE (default
// "coordcli.yaml"). File values fill in anything the environment left at
// its zero value; the merged result is validated before being returned.
func Load() (*Config, error) {
	configFile := os.Getenv("COORD_CONFIG_FILE")
	if configFile == "" {
		configFile = "coordcli.yaml"
	}

	var cfg Config
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
		cfg = *fileCfg
	}

	// Environment overrides anything the file set; envconfig also applies
	// struct-tag defaults for fields neither source provided.
	if err := envconfig.Process("COORD", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with every field at its struct-tag
// default. Library consumers start from this and override what they need.
func Default() *Config {
	var cfg Config
	// envconfig applies defaults even when no COORD_* variables are set;
	// an unknown prefix keeps real environment values out of the result.
	if err := envconfig.Process("COORDCLI_DEFAULTS_ONLY", &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// Validate checks structural validity plus the cross-field rules the tag
// language cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	wsum := c.Similarity.DepthWeight + c.Similarity.JaccardWeight + c.Similarity.CorrWeight
	if wsum <= 0 {
		return fmt.Errorf("similarity weights sum to %.4f; at least one must be positive", wsum)
	}
	if !(c.Similarity.WeakBand < c.Similarity.ModerateBand && c.Similarity.ModerateBand < c.Similarity.StrongBand) {
		return fmt.Errorf("interpretation bands must be strictly increasing: weak=%.2f moderate=%.2f strong=%.2f",
			c.Similarity.WeakBand, c.Similarity.ModerateBand, c.Similarity.StrongBand)
	}
	if c.Spread.MinDuration > c.Spread.Lookback {
		return fmt.Errorf("spread min_duration %s exceeds lookback %s", c.Spread.MinDuration, c.Spread.Lookback)
	}
	if c.Calibration.LowVolBand >= c.Calibration.HighVolBand {
		return fmt.Errorf("volatility bands must satisfy low < high: low=%.4f high=%.4f",
			c.Calibration.LowVolBand, c.Calibration.HighVolBand)
	}
	if c.Power.NullSimilarityCap >= c.Power.DetectionThreshold {
		return fmt.Errorf("null similarity cap %.2f must sit below the detection threshold %.2f",
			c.Power.NullSimilarityCap, c.Power.DetectionThreshold)
	}
	return nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
