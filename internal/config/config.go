package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"gorevsig/internal/errors"
)

// EnvPrefix prefixes every environment variable, e.g. REVSIG_RANKING_SEED
const EnvPrefix = "REVSIG"

// Config represents the complete application configuration
type Config struct {
	Ranking  RankingConfig  `envconfig:"RANKING" validate:"required"`
	Database DatabaseConfig `envconfig:"DATABASE"`
	Server   ServerConfig   `envconfig:"SERVER" validate:"required"`
	Log      LogConfig      `envconfig:"LOG" validate:"required"`
}

// RankingConfig holds every tunable of a ranking run
type RankingConfig struct {
	ScoringMode        string  `envconfig:"SCORING_MODE" default:"coherence" validate:"oneof=coherence continuous legacy"`
	FDRThreshold       float64 `envconfig:"FDR_THRESHOLD" default:"0.05" validate:"gt=0,lte=1"`
	PartialAttenuation float64 `envconfig:"PARTIAL_ATTENUATION" default:"0.1" validate:"gte=0,lte=1"`
	MaxAbsValue        float64 `envconfig:"MAX_ABS_VALUE" default:"1e6" validate:"gt=0"`
	SignificanceCap    float64 `envconfig:"SIGNIFICANCE_CAP" default:"3" validate:"gt=0"`

	Normalization     string    `envconfig:"NORMALIZATION" default:"global" validate:"oneof=none global per_context"`
	ReferenceMode     string    `envconfig:"REFERENCE_MODE" default:"bootstrap" validate:"oneof=bootstrap leave_one_out external"`
	ReferenceSize     int       `envconfig:"REFERENCE_SIZE" default:"1000" validate:"gt=0"`
	ExternalReference []float64 `envconfig:"EXTERNAL_REFERENCE"`

	ScoreField         string             `envconfig:"SCORE_FIELD" default:"weighted" validate:"oneof=weighted normalized percentile"`
	FilterSignificance bool               `envconfig:"FILTER_SIGNIFICANCE" default:"true"`
	MinSignatures      int                `envconfig:"MIN_SIGNATURES" default:"1" validate:"gte=1"`
	MinReversers       int                `envconfig:"MIN_REVERSERS" default:"1" validate:"gte=1"`
	SaturationMode     string             `envconfig:"SATURATION_MODE" default:"soft_log" validate:"oneof=soft_log hard_sqrt"`
	SaturationCap      float64            `envconfig:"SATURATION_CAP" default:"8" validate:"gt=0"`
	BonusRate          float64            `envconfig:"BONUS_RATE" default:"0.1" validate:"gte=0"`
	ContextWeights     map[string]float64 `envconfig:"CONTEXT_WEIGHTS" validate:"dive,gte=0"`
	DurationWeights    map[string]float64 `envconfig:"DURATION_WEIGHTS" validate:"dive,gte=0"`

	RunValidation    bool    `envconfig:"RUN_VALIDATION" default:"true"`
	Permutations     int     `envconfig:"PERMUTATIONS" default:"1000" validate:"gt=0"`
	BootstrapSamples int     `envconfig:"BOOTSTRAP_SAMPLES" default:"1000" validate:"gt=0"`
	ConfidenceLevel  float64 `envconfig:"CONFIDENCE_LEVEL" default:"0.95" validate:"gt=0,lt=1"`
	Seed             int64   `envconfig:"SEED" default:"42"`
	Workers          int     `envconfig:"WORKERS" default:"4" validate:"gt=0"`
}

// DatabaseConfig holds database connection settings. An empty URL disables
// run persistence.
type DatabaseConfig struct {
	URL          string `envconfig:"URL"`
	Driver       string `envconfig:"DRIVER" default:"postgres" validate:"oneof=postgres sqlite3"`
	MaxOpenConns int    `envconfig:"MAX_OPEN_CONNS" default:"10" validate:"gt=0"`
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080" validate:"required"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"5m"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxBodyBytes    int64         `envconfig:"MAX_BODY_BYTES" default:"33554432" validate:"gt=0"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info" validate:"oneof=error warn info debug trace"`
	Format string `envconfig:"FORMAT" default:"json" validate:"oneof=json pretty"`
}

var validate = validator.New()

// Load reads configuration from REVSIG_* environment variables and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.ConfigInvalidf(err, "failed to read environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return &cfg, nil
}

// Default returns the configuration Load produces from an empty environment
func Default() *Config {
	return &Config{
		Ranking: DefaultRanking(),
		Database: DatabaseConfig{
			Driver:       "postgres",
			MaxOpenConns: 10,
		},
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    32 << 20,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// DefaultRanking returns the default ranking configuration
func DefaultRanking() RankingConfig {
	return RankingConfig{
		ScoringMode:        "coherence",
		FDRThreshold:       0.05,
		PartialAttenuation: 0.1,
		MaxAbsValue:        1e6,
		SignificanceCap:    3,
		Normalization:      "global",
		ReferenceMode:      "bootstrap",
		ReferenceSize:      1000,
		ScoreField:         "weighted",
		FilterSignificance: true,
		MinSignatures:      1,
		MinReversers:       1,
		SaturationMode:     "soft_log",
		SaturationCap:      8,
		BonusRate:          0.1,
		RunValidation:      true,
		Permutations:       1000,
		BootstrapSamples:   1000,
		ConfidenceLevel:    0.95,
		Seed:               42,
		Workers:            4,
	}
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.ConfigInvalidf(err, "invalid configuration")
	}
	return c.Ranking.validateSemantics()
}

// Validate checks a ranking configuration on its own, e.g. one decoded
// from an API request
func (r RankingConfig) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.ConfigInvalidf(err, "invalid ranking configuration")
	}
	return r.validateSemantics()
}

func (r RankingConfig) validateSemantics() error {
	if r.ReferenceMode == "external" && len(r.ExternalReference) == 0 {
		return errors.ConfigInvalid("external reference mode requires EXTERNAL_REFERENCE values")
	}
	return nil
}
