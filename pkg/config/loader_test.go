package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackkit/trackkit/pkg/config"
)

type sampleConfig struct {
	Interval time.Duration `env:"SAMPLE_INTERVAL" envDefault:"5s"`
	Rate     float64       `env:"SAMPLE_RATE" envDefault:"1.0"`
	Name     string        `env:"SAMPLE_NAME" envDefault:"tracker"`
}

type overriddenConfig struct {
	Depth int `env:"SAMPLE_DEPTH" envDefault:"100"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		var cfg sampleConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, 5*time.Second, cfg.Interval)
		assert.Equal(t, 1.0, cfg.Rate)
		assert.Equal(t, "tracker", cfg.Name)
	})

	t.Run("environment overrides default", func(t *testing.T) {
		t.Setenv("SAMPLE_DEPTH", "250")

		var cfg overriddenConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, 250, cfg.Depth)
	})

	t.Run("second load served from cache", func(t *testing.T) {
		var first sampleConfig
		require.NoError(t, config.Load(&first))

		// Changing the environment after the first parse has no effect.
		t.Setenv("SAMPLE_NAME", "changed")

		var second sampleConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first.Name, second.Name)
	})

	t.Run("nil pointer rejected", func(t *testing.T) {
		var cfg *sampleConfig
		err := config.Load(cfg)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}
