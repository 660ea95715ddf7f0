package session

import "time"

// Config holds session lifecycle configuration.
type Config struct {
	// IdleTimeout ends a session once no activity has been recorded for
	// this long. Also the TTL on the stored session document, extended on
	// every activity update.
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// CleanupInterval is the sweep tick that ends idle sessions
	// (0 disables the sweep).
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`

	// EndedRetention keeps an ended session document around so late events
	// are rejected as ended rather than resurrecting the session.
	EndedRetention time.Duration `env:"SESSION_ENDED_RETENTION" envDefault:"1h"`
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		EndedRetention:  time.Hour,
	}
}
