package kv

import "time"

type Config struct {
	ConnectionURL  string        `env:"KV_REDIS_URL,required" envDefault:"redis://localhost:6379/0"` // ConnectionURL is the URL of the store. It should be in the format "redis://:password@localhost:6379/0"
	RetryAttempts  int           `env:"KV_RETRY_ATTEMPTS" envDefault:"3"`                            // RetryAttempts is the number of retry attempts to connect to the store.
	RetryInterval  time.Duration `env:"KV_RETRY_INTERVAL" envDefault:"5s"`                           // RetryInterval is the interval between retry attempts.
	ConnectTimeout time.Duration `env:"KV_CONNECT_TIMEOUT" envDefault:"30s"`                         // ConnectTimeout is the timeout for connecting to the store.
}
