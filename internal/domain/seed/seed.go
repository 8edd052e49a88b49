// Package seed builds the Pokémon roster from the external catalogue and
// loads it into the store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pokerank/internal/adapters/mq/queue"
	"github.com/okian/pokerank/internal/adapters/mq/worker"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/types"
	"github.com/okian/pokerank/pkg/logger"
)

// Default roster parameters.
const (
	DefaultRosterSize    = 1025
	DefaultEnrichCount   = 20
	DefaultSpriteBaseURL = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon"
)

// Catalogue is the external roster source.
type Catalogue interface {
	// Entries lists the first limit entries in dex order.
	Entries(ctx context.Context, limit int) ([]model.CatalogueEntry, error)
	// Types returns raw type names for one entry.
	Types(ctx context.Context, n int) ([]string, error)
}

// Upserter is the store surface seeding writes through.
type Upserter interface {
	Upsert(ctx context.Context, seed model.EntitySeed) (model.Entity, error)
}

// Report summarises one seeding run.
type Report struct {
	RunID    string
	Upserted int
	Fallback bool
	Enriched int
	Duration time.Duration
}

// Seeder builds rosters.
type Seeder struct {
	catalogue   Catalogue
	rosterSize  int
	enrichCount int
	workers     int
	spriteBase  string
	logger      logger.Logger
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithRosterSize sets how many catalogue entries are listed.
func WithRosterSize(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.rosterSize = n
		}
	}
}

// WithEnrichCount sets how many leading entries get their real types
// fetched. Zero disables enrichment.
func WithEnrichCount(n int) Option {
	return func(s *Seeder) {
		if n >= 0 {
			s.enrichCount = n
		}
	}
}

// WithWorkers sets the enrichment pool size.
func WithWorkers(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSpriteBaseURL sets the image root; images are <base>/<n>.png.
func WithSpriteBaseURL(u string) Option {
	return func(s *Seeder) {
		if u != "" {
			s.spriteBase = strings.TrimRight(u, "/")
		}
	}
}

// WithLogger sets the seeder logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Seeder) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Seeder reading from c.
func New(c Catalogue, opts ...Option) *Seeder {
	s := &Seeder{
		catalogue:   c,
		rosterSize:  DefaultRosterSize,
		enrichCount: DefaultEnrichCount,
		workers:     4,
		spriteBase:  DefaultSpriteBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("seed")
	}
	return s
}

// DisplayName turns a catalogue slug like "mr-mime" or "deoxys-normal"
// into a display name by keeping the part before the first dash and
// capitalising it.
func DisplayName(slug string) string {
	base, _, _ := strings.Cut(strings.TrimSpace(slug), "-")
	if base == "" {
		return ""
	}
	return strings.ToUpper(base[:1]) + base[1:]
}

// ImageURL returns the sprite for dex number n.
func (s *Seeder) ImageURL(n int) string {
	return fmt.Sprintf("%s/%d.png", s.spriteBase, n)
}

// Build produces the full roster. It fails with model.ErrUpstreamSeed when
// the catalogue cannot be listed; failures to enrich single entries leave
// their placeholder types.
func (s *Seeder) Build(ctx context.Context) ([]model.EntitySeed, int, error) {
	entries, err := s.catalogue.Entries(ctx, s.rosterSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list catalogue: %w", model.ErrUpstreamSeed, err)
	}
	if len(entries) == 0 {
		return nil, 0, fmt.Errorf("%w: empty catalogue", model.ErrUpstreamSeed)
	}

	seeds := make([]model.EntitySeed, 0, len(entries))
	index := make(map[int]int, len(entries))
	for _, e := range entries {
		if _, dup := index[e.PokedexNumber]; dup || e.PokedexNumber <= 0 {
			continue
		}
		name := DisplayName(e.Name)
		if name == "" {
			name = fmt.Sprintf("Pokémon #%d", e.PokedexNumber)
		}
		index[e.PokedexNumber] = len(seeds)
		seeds = append(seeds, model.EntitySeed{
			PokedexNumber: e.PokedexNumber,
			Name:          name,
			ImageURL:      s.ImageURL(e.PokedexNumber),
			Types:         []types.Category{types.Normal},
		})
	}

	enriched, err := s.enrich(ctx, seeds)
	if err != nil {
		return nil, 0, err
	}
	for n, ts := range enriched {
		seeds[index[n]].Types = types.FromStrings(ts)
	}

	for i := range seeds {
		applyCorrection(&seeds[i])
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].PokedexNumber < seeds[j].PokedexNumber })
	return seeds, len(enriched), nil
}

// enrich fetches types for the first enrichCount seeds through a bounded
// queue and worker pool.
func (s *Seeder) enrich(ctx context.Context, seeds []model.EntitySeed) (map[int][]string, error) {
	n := min(s.enrichCount, len(seeds))
	out := make(map[int][]string, n)
	if n == 0 {
		return out, nil
	}

	var mu sync.Mutex
	handler := worker.HandlerFunc(func(ctx context.Context, job queue.Job) error {
		ts, err := s.catalogue.Types(ctx, job.PokedexNumber)
		if err != nil {
			return err
		}
		mu.Lock()
		out[job.PokedexNumber] = ts
		mu.Unlock()
		return nil
	})

	q := queue.NewInMemoryQueue(queue.WithCapacity(n))
	pool := worker.NewPool(min(s.workers, n), q, handler, worker.WithLogger(s.logger.Named("enrich")))
	pool.Start(ctx)
	for _, sd := range seeds[:n] {
		if !q.Enqueue(ctx, queue.Job{PokedexNumber: sd.PokedexNumber}) {
			_ = pool.Shutdown(ctx)
			return nil, fmt.Errorf("enqueue #%d: %w", sd.PokedexNumber, queue.ErrFull)
		}
	}
	if err := q.Close(); err != nil {
		return nil, err
	}
	if err := pool.Wait(ctx); err != nil {
		_ = pool.Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return out, nil
}

func applyCorrection(sd *model.EntitySeed) {
	if c, ok := corrections[sd.PokedexNumber]; ok {
		sd.Name = c.name
		sd.Types = append([]types.Category(nil), c.types...)
	}
	sd.Types = types.Sanitize(sd.Types)
}

// Fallback returns the fixed starter roster.
func (s *Seeder) Fallback() []model.EntitySeed {
	out := make([]model.EntitySeed, 0, len(fallbackRoster))
	for _, n := range fallbackRoster {
		sd := model.EntitySeed{PokedexNumber: n, ImageURL: s.ImageURL(n)}
		applyCorrection(&sd)
		out = append(out, sd)
	}
	return out
}

// Roster builds the roster, substituting the fallback when the catalogue is
// unavailable. Other errors, such as cancellation, are returned.
func (s *Seeder) Roster(ctx context.Context) ([]model.EntitySeed, Report, error) {
	rep := Report{RunID: uuid.NewString()}
	start := time.Now()
	log := s.logger.With(logger.String("run", rep.RunID))

	seeds, enriched, err := s.Build(ctx)
	switch {
	case err == nil:
		rep.Enriched = enriched
	case errors.Is(err, model.ErrUpstreamSeed) && ctx.Err() == nil:
		log.Warn(ctx, "catalogue unavailable, using fallback roster", logger.Error(err))
		seeds = s.Fallback()
		rep.Fallback = true
	default:
		return nil, rep, err
	}
	rep.Duration = time.Since(start)
	log.Info(ctx, "roster built",
		logger.Int("entities", len(seeds)),
		logger.Int("enriched", rep.Enriched),
		logger.Bool("fallback", rep.Fallback),
		logger.Duration("elapsed", rep.Duration))
	return seeds, rep, nil
}

// Load upserts seeds through u and returns how many were written.
func Load(ctx context.Context, u Upserter, seeds []model.EntitySeed) (int, error) {
	for i, sd := range seeds {
		if _, err := u.Upsert(ctx, sd); err != nil {
			return i, fmt.Errorf("upsert #%d: %w", sd.PokedexNumber, err)
		}
	}
	return len(seeds), nil
}
