package model

import (
	"fmt"
	"time"
)

// Vote is an immutable ledger record of one resolved comparison.
type Vote struct {
	ID                int64     `json:"id"`
	WinnerID          int64     `json:"winnerId"`
	LoserID           int64     `json:"loserId"`
	WinnerRatingDelta int       `json:"winnerRatingDelta"`
	LoserRatingDelta  int       `json:"loserRatingDelta"`
	Timestamp         time.Time `json:"timestamp"`
}

// VoteInput is a client's vote intent.
type VoteInput struct {
	WinnerID int64
	LoserID  int64
}

// Validate rejects malformed intents before any store access.
func (v VoteInput) Validate() error {
	switch {
	case v.WinnerID <= 0 || v.LoserID <= 0:
		return fmt.Errorf("%w: ids must be positive", ErrInvalidArgument)
	case v.WinnerID == v.LoserID:
		return fmt.Errorf("%w: winner and loser must differ", ErrInvalidArgument)
	}
	return nil
}

// RecentVote is a vote joined with entity snapshots and a relative-time label.
type RecentVote struct {
	Vote
	Winner  Entity `json:"winner"`
	Loser   Entity `json:"loser"`
	TimeAgo string `json:"timeAgo"`
}

// VoteResult is a committed vote plus the next pair to show. NewMatchup is
// nil when no pair could be drawn.
type VoteResult struct {
	Vote       Vote
	Winner     Entity
	Loser      Entity
	NewMatchup *Matchup
}
