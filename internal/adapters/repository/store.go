// Package repository defines the storage contract for entities and the vote
// ledger, with an in-memory adapter and a gorm-backed relational adapter.
package repository

import (
	"context"
	"time"

	"github.com/okian/pokerank/internal/domain/model"
)

// EntityReader is the read side of the entity store.
type EntityReader interface {
	// GetByID returns model.ErrNotFound when id is unknown.
	GetByID(ctx context.Context, id int64) (model.Entity, error)
	// GetByPokedexNumber looks an entity up by its natural key.
	GetByPokedexNumber(ctx context.Context, n int) (model.Entity, error)
	// GetMany returns the entities that exist among ids; missing ids are absent from the map.
	GetMany(ctx context.Context, ids []int64) (map[int64]model.Entity, error)
	// All returns every entity in no particular order.
	All(ctx context.Context) ([]model.Entity, error)
	// Count returns the number of entities.
	Count(ctx context.Context) (int, error)
	// Nth returns the i-th entity of a positional order that ratings do not affect.
	Nth(ctx context.Context, i int) (model.Entity, error)
	// TopByRating returns entities by rating desc, id asc. limit <= 0 means all.
	TopByRating(ctx context.Context, limit int) ([]model.Entity, error)
}

// EntityWriter mutates entities.
type EntityWriter interface {
	// Upsert inserts or updates by pokedex number, preserving id and, unless
	// the seed overrides them, rating and tallies.
	Upsert(ctx context.Context, seed model.EntitySeed) (model.Entity, error)
	// ApplyMatchResult sets both ratings, increments the winner's wins and the
	// loser's losses as one atomic change.
	ApplyMatchResult(ctx context.Context, winnerID, loserID int64, newWinnerRating, newLoserRating int) (winner, loser model.Entity, err error)
	// ClearEntities removes every entity. The ledger must be empty.
	ClearEntities(ctx context.Context) error
	// ResetTallies restores the default rating and zero tallies everywhere.
	ResetTallies(ctx context.Context) error
}

// VoteReader is the read side of the ledger.
type VoteReader interface {
	// RecentVotes returns up to limit votes, newest first; ties go to the later insertion.
	RecentVotes(ctx context.Context, limit int) ([]model.Vote, error)
	// ScanVotes calls fn for every vote in insertion order and stops at the first error.
	ScanVotes(ctx context.Context, fn func(model.Vote) error) error
	// CountVotes returns the ledger size.
	CountVotes(ctx context.Context) (int, error)
	// CountVotesSince counts votes with timestamp >= t.
	CountVotesSince(ctx context.Context, t time.Time) (int, error)
}

// VoteWriter appends to and clears the ledger.
type VoteWriter interface {
	// AppendVote stamps id and time and stores the vote.
	AppendVote(ctx context.Context, winnerID, loserID int64, winnerDelta, loserDelta int) (model.Vote, error)
	// ClearVotes empties the ledger.
	ClearVotes(ctx context.Context) error
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	EntityReader
	EntityWriter
	VoteReader
	VoteWriter

	// GetPairForUpdate reads both entities and holds them until the
	// transaction ends, so a concurrent vote on either one waits.
	GetPairForUpdate(ctx context.Context, a, b int64) (model.Entity, model.Entity, error)
}

// Store is the full storage contract.
type Store interface {
	Tx

	// InTx runs fn atomically: either every mutation made through tx is
	// visible to later readers or none is.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Driver names the adapter for logs and metrics.
	Driver() string

	Close() error
}
