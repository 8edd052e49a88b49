// Package stats aggregates totals and per-category win rates on demand.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/okian/pokerank/internal/domain/model"
	"github.com/okian/pokerank/internal/domain/types"
)

// Source is the slice of the store the aggregator reads.
type Source interface {
	All(ctx context.Context) ([]model.Entity, error)
	Count(ctx context.Context) (int, error)
	CountVotes(ctx context.Context) (int, error)
	CountVotesSince(ctx context.Context, t time.Time) (int, error)
	ScanVotes(ctx context.Context, fn func(model.Vote) error) error
}

// Aggregator computes Stats. Win rates replay the whole ledger, so the cost
// grows with vote volume.
type Aggregator struct {
	now func() time.Time
	loc *time.Location
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the reference time for "today".
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLocation sets the zone whose midnight starts "today".
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// New returns an Aggregator on the wall clock in the local zone.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StartOfDay is local midnight of the aggregator's current day.
func (a *Aggregator) StartOfDay() time.Time {
	now := a.now().In(a.loc)
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.loc)
}

// Compute returns totals, today's vote count and category win rates.
func (a *Aggregator) Compute(ctx context.Context, src Source) (model.Stats, error) {
	totalEntities, err := src.Count(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	totalVotes, err := src.CountVotes(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	today, err := src.CountVotesSince(ctx, a.StartOfDay())
	if err != nil {
		return model.Stats{}, err
	}
	rates, err := a.WinRates(ctx, src)
	if err != nil {
		return model.Stats{}, err
	}
	return model.Stats{
		TotalVotes:         totalVotes,
		TotalEntities:      totalEntities,
		VotesToday:         today,
		PerCategoryWinRate: rates,
	}, nil
}

type tally struct {
	wins, total int
}

// WinRates replays every vote against the current categories of its
// winner and loser. Votes naming a missing entity are skipped and
// categories that never appeared are left out. The
// result is ordered by rate descending, then category name.
func (a *Aggregator) WinRates(ctx context.Context, src Source) ([]model.CategoryWinRate, error) {
	entities, err := src.All(ctx)
	if err != nil {
		return nil, err
	}
	cats := make(map[int64][]types.Category, len(entities))
	for _, e := range entities {
		cats[e.ID] = e.Types
	}

	tallies := make(map[types.Category]*tally)
	bump := func(c types.Category, won bool) {
		t, ok := tallies[c]
		if !ok {
			t = &tally{}
			tallies[c] = t
		}
		t.total++
		if won {
			t.wins++
		}
	}
	err = src.ScanVotes(ctx, func(v model.Vote) error {
		winner, okW := cats[v.WinnerID]
		loser, okL := cats[v.LoserID]
		if !okW || !okL {
			return nil
		}
		for _, c := range winner {
			bump(c, true)
		}
		for _, c := range loser {
			bump(c, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.CategoryWinRate, 0, len(tallies))
	for c, t := range tallies {
		if t.total == 0 {
			continue
		}
		out = append(out, model.CategoryWinRate{
			Type:    c,
			WinRate: float64(t.wins) / float64(t.total),
			Wins:    t.wins,
			Total:   t.total,
			Color:   c.Color(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WinRate != out[j].WinRate {
			return out[i].WinRate > out[j].WinRate
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}
