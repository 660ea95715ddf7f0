package columnar

import "time"

type Config struct {
	ConnectionString  string        `env:"COLUMNAR_CONN_URL,required"`                  // ConnectionString is the connection string to the store.
	MaxOpenConns      int32         `env:"COLUMNAR_MAX_OPEN_CONNS" envDefault:"10"`     // MaxOpenConns is the maximum number of open connections.
	MaxIdleConns      int32         `env:"COLUMNAR_MAX_IDLE_CONNS" envDefault:"5"`      // MaxIdleConns is the maximum number of idle connections.
	HealthCheckPeriod time.Duration `env:"COLUMNAR_HEALTHCHECK_PERIOD" envDefault:"1m"` // HealthCheckPeriod is the period between pool health checks.
	MaxConnIdleTime   time.Duration `env:"COLUMNAR_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"COLUMNAR_MAX_CONN_LIFETIME" envDefault:"30m"`

	RetryAttempts int           `env:"COLUMNAR_RETRY_ATTEMPTS" envDefault:"3"` // RetryAttempts is the number of retry attempts to connect to the store.
	RetryInterval time.Duration `env:"COLUMNAR_RETRY_INTERVAL" envDefault:"5s"`

	RetentionTTL time.Duration `env:"COLUMNAR_RETENTION_TTL" envDefault:"2160h"` // RetentionTTL is the retention period advertised in the schema (90 days).
}
