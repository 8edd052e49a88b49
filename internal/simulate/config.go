// Package simulate drives a running server through the voting flow and
// checks the resulting ranking for consistency.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Votes      int           // Number of votes to submit
	Workers    int           // Number of concurrent voters
	Timeout    time.Duration // HTTP request timeout
	Reset      bool          // Reset and reseed before voting
	Seed       uint64        // Seed for the voters' choices; 0 picks one
	Bias       float64       // Probability the higher-rated side wins, in [0,1]; 0.5 is a coin flip
	OutputFile string        // Optional JSON log of accepted votes
	Verbose    bool          // Enable verbose logging
}

// Entity mirrors the entity shape served by the API.
type Entity struct {
	ID            int64    `json:"id"`
	PokedexNumber int      `json:"pokedexNumber"`
	Name          string   `json:"name"`
	Types         []string `json:"types"`
	Rating        int      `json:"rating"`
	Wins          int      `json:"wins"`
	Losses        int      `json:"losses"`
}

// RankedEntity is one row of /api/rankings.
type RankedEntity struct {
	Entity
	Rank int `json:"rank"`
}

// Matchup is the body of /api/matchup.
type Matchup struct {
	EntityA Entity `json:"entityA"`
	EntityB Entity `json:"entityB"`
}

// VoteRequest is the body of POST /api/vote.
type VoteRequest struct {
	WinnerID int64 `json:"winnerId"`
	LoserID  int64 `json:"loserId"`
}

// Vote is a committed ledger record.
type Vote struct {
	ID                int64     `json:"id"`
	WinnerID          int64     `json:"winnerId"`
	LoserID           int64     `json:"loserId"`
	WinnerRatingDelta int       `json:"winnerRatingDelta"`
	LoserRatingDelta  int       `json:"loserRatingDelta"`
	Timestamp         time.Time `json:"timestamp"`
}

// VoteResponse is the body of a successful vote.
type VoteResponse struct {
	Success    bool     `json:"success"`
	Vote       Vote     `json:"vote"`
	NewMatchup *Matchup `json:"newMatchup"`
}

// ServerStats is the body of /api/stats.
type ServerStats struct {
	TotalVotes    int `json:"totalVotes"`
	TotalEntities int `json:"totalEntities"`
	VotesToday    int `json:"votesToday"`
}

// Stats holds run statistics.
type Stats struct {
	VotesSubmitted  int
	VotesAccepted   int
	VotesDuplicate  int
	VotesRejected   int
	VotesFailed     int
	EntitiesRanked  int
	ServerVoteTotal int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
