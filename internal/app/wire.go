package service

import (
	"time"

	"github.com/okian/pokerank/internal/adapters/pokeapi"
	"github.com/okian/pokerank/internal/adapters/repository"
	"github.com/okian/pokerank/internal/config"
	"github.com/okian/pokerank/internal/domain/seed"
	"github.com/okian/pokerank/pkg/logger"
)

// FromConfig wires a Service over store with the catalogue client and
// seeder described by cfg.
func FromConfig(cfg *config.Config, store repository.Store, log logger.Logger) *Service {
	client := pokeapi.New(
		pokeapi.WithBaseURL(cfg.PokeAPIBaseURL),
		pokeapi.WithTimeout(time.Duration(cfg.PokeAPITimeoutMS)*time.Millisecond),
		pokeapi.WithRateLimit(cfg.PokeAPIRPS, max(cfg.SeedWorkers, 1)),
		pokeapi.WithLogger(log.Named("pokeapi")),
	)
	seeder := seed.New(client,
		seed.WithRosterSize(cfg.RosterSize),
		seed.WithEnrichCount(cfg.EnrichCount),
		seed.WithWorkers(cfg.SeedWorkers),
		seed.WithSpriteBaseURL(cfg.SpriteBaseURL),
		seed.WithLogger(log.Named("seed")),
	)
	return New(store, seeder,
		WithLogger(log.Named("service")),
		WithKFactor(cfg.KFactor),
		WithDedupeSize(cfg.DedupeSize),
		WithAllowReset(cfg.AllowReset),
		WithRankingsAllThreshold(cfg.RankingsAllThreshold),
		WithMaxRecentLimit(cfg.MaxRecentLimit),
	)
}
