// Package ranking turns the rating order of the store into a ranked view.
package ranking

import (
	"context"

	"github.com/okian/pokerank/internal/domain/model"
)

// DefaultAllThreshold is the limit at or above which every entity is returned.
const DefaultAllThreshold = 1000

// Source yields entities by rating descending, id ascending.
type Source interface {
	TopByRating(ctx context.Context, limit int) ([]model.Entity, error)
}

// Materializer assigns dense positional ranks. It never mutates the source.
type Materializer struct {
	allThreshold int
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithAllThreshold sets the "everything" sentinel.
func WithAllThreshold(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.allThreshold = n
		}
	}
}

// New returns a Materializer.
func New(opts ...Option) *Materializer {
	m := &Materializer{allThreshold: DefaultAllThreshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Unbounded reports whether limit asks for the full ranking.
func (m *Materializer) Unbounded(limit int) bool {
	return limit <= 0 || limit >= m.allThreshold
}

// TopRanked returns the first limit entities with ranks 1..n. A limit <= 0
// or at the threshold returns all of them.
func (m *Materializer) TopRanked(ctx context.Context, src Source, limit int) ([]model.RankedEntity, error) {
	if m.Unbounded(limit) {
		limit = 0
	}
	entities, err := src.TopByRating(ctx, limit)
	if err != nil {
		return nil, err
	}
	return Assign(entities), nil
}

// Assign ranks an already sorted slice by position.
func Assign(sorted []model.Entity) []model.RankedEntity {
	out := make([]model.RankedEntity, len(sorted))
	for i, e := range sorted {
		out[i] = model.RankedEntity{Entity: e, Rank: i + 1}
	}
	return out
}
