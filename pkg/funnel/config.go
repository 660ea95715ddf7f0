package funnel

import "time"

// Config holds the engine's operational knobs. Analytical windows live on
// each Definition, not here.
type Config struct {
	// StoreTimeout bounds each columnar or key-value store call.
	StoreTimeout time.Duration `env:"FUNNEL_STORE_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		StoreTimeout: 30 * time.Second,
	}
}
