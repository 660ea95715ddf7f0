package ingest

import "time"

// Config holds the pipeline's batching, sampling and privacy knobs.
type Config struct {
	// FlushBatchSize flushes the queue as soon as this many events are
	// buffered.
	FlushBatchSize int `env:"INGEST_FLUSH_BATCH_SIZE" envDefault:"100"`

	// FlushInterval flushes whatever is buffered on this cadence, bounding
	// staleness when traffic is slow.
	FlushInterval time.Duration `env:"INGEST_FLUSH_INTERVAL" envDefault:"10s"`

	// MaxQueueDepth bounds memory during backend outages. Beyond it, the
	// oldest buffered events are shed and counted. The bound applies to
	// the event queue and the conversion queue independently. The right
	// value trades memory for durability; size it to cover the longest
	// outage worth riding out.
	MaxQueueDepth int `env:"INGEST_MAX_QUEUE_DEPTH" envDefault:"10000"`

	// SampleRate keeps this fraction of events (1.0 keeps everything).
	// Dropped events are acknowledged but never persisted. Conversion
	// events are exempt so the conversions table always agrees with the
	// session aggregates.
	SampleRate float64 `env:"INGEST_SAMPLE_RATE" envDefault:"1.0"`

	// StoreTimeout bounds each flush write; a timeout is retryable.
	StoreTimeout time.Duration `env:"INGEST_STORE_TIMEOUT" envDefault:"5s"`

	// AnonymizeIP stores a salted hash of the client IP instead of nothing;
	// the cleartext IP is never stored either way.
	AnonymizeIP bool `env:"INGEST_ANONYMIZE_IP" envDefault:"true"`

	// IPHashSalt perturbs the IP hash so it cannot be reversed by hashing
	// the IPv4 space.
	IPHashSalt string `env:"INGEST_IP_HASH_SALT"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		FlushBatchSize: 100,
		FlushInterval:  10 * time.Second,
		MaxQueueDepth:  10000,
		SampleRate:     1.0,
		StoreTimeout:   5 * time.Second,
		AnonymizeIP:    true,
	}
}
