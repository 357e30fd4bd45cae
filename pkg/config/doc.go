// Package config loads typed configuration structs.
//
// Process settings come from environment variables (and an optional .env
// file) decoded with caarlos0/env struct tags:
//
//	type PoolConfig struct {
//		Workers      int           `env:"DISPATCH_WORKERS" envDefault:"4"`
//		PullInterval time.Duration `env:"DISPATCH_PULL_INTERVAL" envDefault:"5s"`
//	}
//
//	var cfg PoolConfig
//	config.MustLoad(&cfg)
//
// Load caches one value per type. Parse skips the cache for values that are
// re-read at runtime. LoadYAML overlays a YAML file on top of a struct that
// already carries defaults, which is how the admin-editable queue policy is
// stored.
package config
