// Package config loads typed configuration structs from environment
// variables. Struct fields are tagged with `env` and `envDefault`; a .env
// file in the working directory is loaded once, if present, before the first
// parse.
//
// Each configuration type is parsed at most once per process and cached, so
// packages can load their own Config independently without re-reading the
// environment.
//
// # Usage
//
//	type Config struct {
//	    FlushInterval time.Duration `env:"INGEST_FLUSH_INTERVAL" envDefault:"5s"`
//	    SampleRate    float64       `env:"INGEST_SAMPLE_RATE" envDefault:"1.0"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
package config
