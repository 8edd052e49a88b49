// Package service composes the domain components over a store and
// implements the operations the HTTP API and the admin CLI need.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pokerank/internal/adapters/repository"
	"github.com/okian/pokerank/internal/domain/dedupe"
	"github.com/okian/pokerank/internal/domain/ledger"
	"github.com/okian/pokerank/internal/domain/matchup"
	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/ranking"
	"github.com/okian/pokerank/internal/domain/rating"
	"github.com/okian/pokerank/internal/domain/seed"
	"github.com/okian/pokerank/internal/domain/stats"
	"github.com/okian/pokerank/pkg/logger"
	"github.com/okian/pokerank/pkg/metrics"
)

// ErrResetDisabled is returned by Init(reset=true) when resets are off.
var ErrResetDisabled = fmt.Errorf("%w: reset is disabled", model.ErrInvalidArgument)

// RosterSource produces the roster to seed.
type RosterSource interface {
	Roster(ctx context.Context) ([]model.EntitySeed, seed.Report, error)
}

// Service implements the ranking operations.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	roster   RosterSource
	engine   *rating.Engine
	selector *matchup.Selector
	ranker   *ranking.Materializer
	ledger   *ledger.Reader
	stats    *stats.Aggregator
	deduper  dedupe.Deduper

	// seedMu serializes seeding and resets.
	seedMu sync.Mutex

	// Configuration
	kFactor        int
	dedupeSize     int
	allowReset     bool
	allThreshold   int
	maxRecent      int
	gaugeInterval  time.Duration
	now            func() time.Time
	location       *time.Location
	selectorOption []matchup.Option

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithKFactor sets the rating K factor.
func WithKFactor(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.kFactor = k
		}
	}
}

// WithDedupeSize sets the size of the idempotency-key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithAllowReset enables Init(reset=true).
func WithAllowReset(allow bool) Option {
	return func(s *Service) {
		s.allowReset = allow
	}
}

// WithRankingsAllThreshold sets the limit that means "every entity".
func WithRankingsAllThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.allThreshold = n
		}
	}
}

// WithMaxRecentLimit caps RecentVotes.
func WithMaxRecentLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRecent = n
		}
	}
}

// WithGaugeInterval sets how often entity and vote gauges are refreshed.
func WithGaugeInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.gaugeInterval = d
		}
	}
}

// WithClock sets the clock for relative times and "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone whose midnight starts "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithSelectorSeed makes matchup draws reproducible.
func WithSelectorSeed(a, b uint64) Option {
	return func(s *Service) {
		s.selectorOption = append(s.selectorOption, matchup.WithSeed(a, b))
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over store, seeding from roster.
func New(store repository.Store, roster RosterSource, opts ...Option) *Service {
	s := &Service{
		store:         store,
		roster:        roster,
		kFactor:       rating.DefaultK,
		dedupeSize:    dedupe.DefaultMaxSize,
		allowReset:    true,
		allThreshold:  ranking.DefaultAllThreshold,
		maxRecent:     100,
		gaugeInterval: 5 * time.Second,
		now:           time.Now,
		location:      time.Local,
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.engine = rating.New(rating.WithKFactor(s.kFactor))
	s.selector = matchup.New(s.selectorOption...)
	s.ranker = ranking.New(ranking.WithAllThreshold(s.allThreshold))
	s.ledger = ledger.NewReader(ledger.WithClock(s.now))
	s.stats = stats.New(stats.WithClock(s.now), stats.WithLocation(s.location))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start launches the background refresher for the entity and vote gauges.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.wg.Add(1)
	go s.refreshGauges(ctx)
	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.String("storage", s.store.Driver()),
		logger.Int("kFactor", s.engine.K()),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop stops background work and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		_ = s.store.Close()
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "error closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "ranking service stopped")
}

func (s *Service) refreshGauges(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.gaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if entities, votes, err := s.Counts(ctx); err == nil {
				metrics.UpdateEntitiesTotal(entities)
				metrics.UpdateVotesTotal(votes)
			}
		}
	}
}

// Init seeds an empty store. With reset it first wipes the ledger and the
// entities, then reseeds.
func (s *Service) Init(ctx context.Context, reset bool) (model.InitResult, error) {
	if reset && !s.allowReset {
		return model.InitResult{}, ErrResetDisabled
	}

	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	if reset {
		if err := s.wipe(ctx); err != nil {
			return model.InitResult{}, err
		}
	}

	n, err := s.store.Count(ctx)
	if err != nil {
		return model.InitResult{}, err
	}
	if n > 0 {
		return model.InitResult{Message: fmt.Sprintf("Database already contains %d Pokémon", n), Count: n}, nil
	}
	return s.seedLocked(ctx)
}

// seedLocked builds the roster and upserts it in one transaction.
// Callers hold seedMu.
func (s *Service) seedLocked(ctx context.Context) (model.InitResult, error) {
	start := time.Now()
	seeds, rep, err := s.roster.Roster(ctx)
	if err != nil {
		metrics.RecordSeedRun("error", float64(time.Since(start).Milliseconds()), 0)
		return model.InitResult{}, fmt.Errorf("build roster: %w", err)
	}

	var upserted int
	err = s.store.InTx(context.WithoutCancel(ctx), func(ctx context.Context, tx repository.Tx) error {
		var lerr error
		upserted, lerr = seed.Load(ctx, tx, seeds)
		return lerr
	})
	outcome := "ok"
	if rep.Fallback {
		outcome = "fallback"
	}
	if err != nil {
		outcome = "error"
	}
	metrics.RecordSeedRun(outcome, float64(time.Since(start).Milliseconds()), upserted)
	if err != nil {
		return model.InitResult{}, fmt.Errorf("load roster: %w", err)
	}

	s.logger.Info(ctx, "store seeded",
		logger.String("run", rep.RunID),
		logger.Int("upserted", upserted),
		logger.Bool("fallback", rep.Fallback),
	)
	return model.InitResult{
		Message:  fmt.Sprintf("Initialized %d Pokémon", upserted),
		Count:    upserted,
		Seeded:   true,
		Fallback: rep.Fallback,
	}, nil
}

// ensurePopulation seeds when fewer than two entities exist.
func (s *Service) ensurePopulation(ctx context.Context) error {
	n, err := s.store.Count(ctx)
	if err != nil || n >= 2 {
		return err
	}
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	if n, err = s.store.Count(ctx); err != nil || n >= 2 {
		return err
	}
	_, err = s.seedLocked(ctx)
	return err
}

// Matchup draws a random pair, seeding first if the store is too small.
func (s *Service) Matchup(ctx context.Context) (model.Matchup, error) {
	if err := s.ensurePopulation(ctx); err != nil {
		return model.Matchup{}, err
	}
	m, err := s.selector.Select(ctx, s.store)
	if err != nil {
		return model.Matchup{}, err
	}
	metrics.RecordMatchupServed()
	return m, nil
}

// Vote resolves one comparison. Reading both ratings, applying the new
// ratings and appending the ledger entry happen in one transaction that
// runs to completion even if the caller goes away. A non-empty idemKey is
// accepted once; repeats fail with model.ErrDuplicateVote.
func (s *Service) Vote(ctx context.Context, in model.VoteInput, idemKey string) (model.VoteResult, error) {
	if err := in.Validate(); err != nil {
		metrics.RecordVoteRejected("invalid")
		return model.VoteResult{}, err
	}
	if idemKey != "" && s.deduper.SeenAndRecord(ctx, idemKey) {
		metrics.RecordVoteRejected("duplicate")
		return model.VoteResult{}, fmt.Errorf("%w: idempotency key %q", model.ErrDuplicateVote, idemKey)
	}

	var res model.VoteResult
	err := s.store.InTx(context.WithoutCancel(ctx), func(ctx context.Context, tx repository.Tx) error {
		w, l, err := tx.GetPairForUpdate(ctx, in.WinnerID, in.LoserID)
		if err != nil {
			return err
		}
		r := s.engine.Rate(w.Rating, l.Rating)
		w, l, err = tx.ApplyMatchResult(ctx, w.ID, l.ID, r.NewWinnerRating, r.NewLoserRating)
		if err != nil {
			return err
		}
		v, err := tx.AppendVote(ctx, w.ID, l.ID, r.WinnerRatingDelta, r.LoserRatingDelta)
		if err != nil {
			return err
		}
		res = model.VoteResult{Vote: v, Winner: w, Loser: l}
		return nil
	})
	if err != nil {
		if idemKey != "" {
			s.deduper.Unrecord(ctx, idemKey)
		}
		metrics.RecordVoteRejected(rejectReason(err))
		return model.VoteResult{}, err
	}

	metrics.RecordVote(res.Vote.WinnerRatingDelta)
	s.logger.Debug(ctx, "vote recorded",
		logger.Int64("vote", res.Vote.ID),
		logger.Int64("winner", res.Winner.ID),
		logger.Int64("loser", res.Loser.ID),
		logger.Int("delta", res.Vote.WinnerRatingDelta),
	)

	if m, err := s.selector.Select(ctx, s.store); err == nil {
		metrics.RecordMatchupServed()
		res.NewMatchup = &m
	} else {
		s.logger.Warn(ctx, "no follow-up matchup", logger.Error(err))
	}
	return res, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}

// Rankings returns the ranked head of the population. limit <= 0 or at
// the all threshold returns everything.
func (s *Service) Rankings(ctx context.Context, limit int) ([]model.RankedEntity, error) {
	ranked, err := s.ranker.TopRanked(ctx, s.store, limit)
	if err != nil {
		return nil, err
	}
	metrics.RecordRankingServed()
	return ranked, nil
}

// RecentVotes returns up to limit enriched votes, newest first.
func (s *Service) RecentVotes(ctx context.Context, limit int) ([]model.RecentVote, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", model.ErrInvalidArgument)
	}
	return s.ledger.Recent(ctx, s.store, min(limit, s.maxRecent))
}

// Stats computes the aggregate statistics.
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	return s.stats.Compute(ctx, s.store)
}

// ResetVotes empties the ledger and restores default ratings and tallies.
func (s *Service) ResetVotes(ctx context.Context) error {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	err := s.store.InTx(context.WithoutCancel(ctx), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.ClearVotes(ctx); err != nil {
			return err
		}
		return tx.ResetTallies(ctx)
	})
	if err != nil {
		return err
	}
	s.logger.Warn(ctx, "votes reset")
	return nil
}

// Wipe removes every vote and entity.
func (s *Service) Wipe(ctx context.Context) error {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	return s.wipe(ctx)
}

func (s *Service) wipe(ctx context.Context) error {
	err := s.store.InTx(context.WithoutCancel(ctx), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.ClearVotes(ctx); err != nil {
			return err
		}
		return tx.ClearEntities(ctx)
	})
	if err != nil {
		return err
	}
	s.logger.Warn(ctx, "store wiped")
	return nil
}

// Counts returns the entity and vote totals.
func (s *Service) Counts(ctx context.Context) (entities, votes int, err error) {
	if entities, err = s.store.Count(ctx); err != nil {
		return 0, 0, err
	}
	if votes, err = s.store.CountVotes(ctx); err != nil {
		return 0, 0, err
	}
	return entities, votes, nil
}

// GetStats returns service state for the health endpoint.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	out := map[string]interface{}{
		"started":    started,
		"storage":    s.store.Driver(),
		"kFactor":    s.engine.K(),
		"dedupeKeys": s.deduper.Size(),
	}
	if entities, votes, err := s.Counts(ctx); err == nil {
		out["entities"] = entities
		out["votes"] = votes
	}
	return out
}
