// Package matchup draws uniformly random pairs of distinct entities.
package matchup

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/pokerank/internal/domain/model"
)

// Population is the positional view of the entity collection the selector
// draws from. Nth must not depend on ratings.
type Population interface {
	Count(ctx context.Context) (int, error)
	Nth(ctx context.Context, i int) (model.Entity, error)
}

// Selector picks matchups. It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithSeed makes the draw sequence reproducible.
func WithSeed(a, b uint64) Option {
	return func(s *Selector) {
		s.rng = rand.New(rand.NewPCG(a, b))
	}
}

// New returns a Selector seeded from the clock unless WithSeed is given.
func New(opts ...Option) *Selector {
	now := uint64(time.Now().UnixNano())
	s := &Selector{rng: rand.New(rand.NewPCG(now, now>>7|1))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Indices draws two distinct positions in [0, n). The second draw covers
// n-1 slots and skips over the first, which keeps every unordered pair
// equally likely.
func (s *Selector) Indices(n int) (int, int, error) {
	if n < 2 {
		return 0, 0, model.ErrInsufficientData
	}
	s.mu.Lock()
	i := s.rng.IntN(n)
	j := s.rng.IntN(n - 1)
	s.mu.Unlock()
	if j >= i {
		j++
	}
	return i, j, nil
}

// Select returns two distinct entities from p.
func (s *Selector) Select(ctx context.Context, p Population) (model.Matchup, error) {
	n, err := p.Count(ctx)
	if err != nil {
		return model.Matchup{}, err
	}
	i, j, err := s.Indices(n)
	if err != nil {
		return model.Matchup{}, err
	}
	a, err := p.Nth(ctx, i)
	if err != nil {
		return model.Matchup{}, err
	}
	b, err := p.Nth(ctx, j)
	if err != nil {
		return model.Matchup{}, err
	}
	if a.ID == b.ID {
		// Only reachable if the population shrank between Count and Nth.
		return model.Matchup{}, model.ErrInsufficientData
	}
	return model.Matchup{EntityA: a, EntityB: b}, nil
}
