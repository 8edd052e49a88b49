// Package ledger reads the vote log back as enriched recent activity.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pokerank/internal/domain/model"
)

// Source is the slice of the store the ledger reader needs.
type Source interface {
	RecentVotes(ctx context.Context, limit int) ([]model.Vote, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]model.Entity, error)
}

// Reader enriches votes with entity snapshots and relative times.
type Reader struct {
	now func() time.Time
}

// Option configures a Reader.
type Option func(*Reader)

// WithClock sets the reference time for labels.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReader returns a Reader on the wall clock.
func NewReader(opts ...Option) *Reader {
	r := &Reader{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recent returns up to limit votes, newest first. Votes whose winner or
// loser no longer exists are skipped.
func (r *Reader) Recent(ctx context.Context, src Source, limit int) ([]model.RecentVote, error) {
	votes, err := src.RecentVotes(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return []model.RecentVote{}, nil
	}

	ids := make([]int64, 0, 2*len(votes))
	for _, v := range votes {
		ids = append(ids, v.WinnerID, v.LoserID)
	}
	entities, err := src.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := r.now()
	out := make([]model.RecentVote, 0, len(votes))
	for _, v := range votes {
		w, ok := entities[v.WinnerID]
		if !ok {
			continue
		}
		l, ok := entities[v.LoserID]
		if !ok {
			continue
		}
		out = append(out, model.RecentVote{
			Vote:    v,
			Winner:  w,
			Loser:   l,
			TimeAgo: TimeAgo(now.Sub(v.Timestamp)),
		})
	}
	return out, nil
}

// TimeAgo renders an elapsed duration in whole minutes, hours or days.
// Negative durations read as "just now".
func TimeAgo(d time.Duration) string {
	minutes := int(d / time.Minute)
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return plural(minutes, "min")
	case minutes < 1440:
		return plural(minutes/60, "hour")
	default:
		return plural(minutes/1440, "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
