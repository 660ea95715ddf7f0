package experiment

import "time"

// Config holds the engine's statistical and persistence knobs.
type Config struct {
	// ConfidenceLevel is the significance threshold: a difference counts as
	// significant when p_value < 1 - ConfidenceLevel.
	ConfidenceLevel float64 `env:"EXPERIMENT_CONFIDENCE_LEVEL" envDefault:"0.95"`

	// MinSampleSize guards against small-sample false positives: below it,
	// analysis reports insufficient data rather than a verdict.
	MinSampleSize int64 `env:"EXPERIMENT_MIN_SAMPLE_SIZE" envDefault:"30"`

	// AssignmentTTL bounds how long sticky assignments outlive the
	// experiment. Long by design: re-bucketing a returning visitor breaks
	// stickiness.
	AssignmentTTL time.Duration `env:"EXPERIMENT_ASSIGNMENT_TTL" envDefault:"2160h"`

	// DefinitionCacheSize bounds the in-process definition cache.
	DefinitionCacheSize int `env:"EXPERIMENT_DEFINITION_CACHE_SIZE" envDefault:"256"`

	// StoreTimeout bounds each store call during assignment and analysis.
	StoreTimeout time.Duration `env:"EXPERIMENT_STORE_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceLevel:     0.95,
		MinSampleSize:       30,
		AssignmentTTL:       90 * 24 * time.Hour,
		DefinitionCacheSize: 256,
		StoreTimeout:        5 * time.Second,
	}
}
