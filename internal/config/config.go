// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - All functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CORSOrigin is echoed in Access-Control-Allow-Origin.
	CORSOrigin string `koanf:"cors_origin"`

	// StorageDriver selects the backing store: memory, postgres or sqlite.
	StorageDriver string `koanf:"storage_driver"`

	// DatabaseURL is the postgres DSN.
	DatabaseURL string `koanf:"database_url"`

	// SQLitePath is the sqlite database file.
	SQLitePath string `koanf:"sqlite_path"`

	// KFactor is the maximum rating swing per vote.
	KFactor int `koanf:"k_factor"`

	// DefaultRankingsLimit applies when GET /api/rankings omits limit.
	DefaultRankingsLimit int `koanf:"default_rankings_limit"`

	// RankingsAllThreshold is the limit at or above which every entity is returned.
	RankingsAllThreshold int `koanf:"rankings_all_threshold"`

	// DefaultRecentLimit and MaxRecentLimit bound GET /api/votes/recent.
	DefaultRecentLimit int `koanf:"default_recent_limit"`
	MaxRecentLimit     int `koanf:"max_recent_limit"`

	// RosterSize is the number of catalogue entries seeded.
	RosterSize int `koanf:"roster_size"`

	// EnrichCount is how many leading entries get real types from the seed source.
	EnrichCount int `koanf:"enrich_count"`

	// SeedWorkers is the number of enrichment workers.
	SeedWorkers int `koanf:"seed_workers"`

	// SeedOnStart seeds an empty store when the server boots.
	SeedOnStart bool `koanf:"seed_on_start"`

	// PokeAPIBaseURL and SpriteBaseURL locate the seed source.
	PokeAPIBaseURL string `koanf:"pokeapi_base_url"`
	SpriteBaseURL  string `koanf:"sprite_base_url"`

	// PokeAPITimeoutMS bounds a single seed source request.
	PokeAPITimeoutMS int `koanf:"pokeapi_timeout_ms"`

	// PokeAPIRPS throttles outbound seed source requests.
	PokeAPIRPS float64 `koanf:"pokeapi_rps"`

	// DedupeSize bounds the vote idempotency-key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// AllowReset enables GET /api/init?reset=true.
	AllowReset bool `koanf:"allow_reset"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		CORSOrigin:           "*",
		StorageDriver:        DriverMemory,
		SQLitePath:           "pokerank.db",
		KFactor:              32,
		DefaultRankingsLimit: 10,
		RankingsAllThreshold: 1000,
		DefaultRecentLimit:   5,
		MaxRecentLimit:       100,
		RosterSize:           1025,
		EnrichCount:          20,
		SeedWorkers:          runtime.NumCPU(),
		SeedOnStart:          true,
		PokeAPIBaseURL:       "https://pokeapi.co/api/v2",
		SpriteBaseURL:        "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon",
		PokeAPITimeoutMS:     5000,
		PokeAPIRPS:           10,
		DedupeSize:           100_000,
		AllowReset:           true,
	}
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)
