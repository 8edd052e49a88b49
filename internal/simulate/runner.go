package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pokerank/pkg/logger"
)

const (
	directoryPermission = 0750
	progressInterval    = time.Second
	percentage          = 100
)

// ErrVerification marks a run whose final state is inconsistent.
var ErrVerification = errors.New("verification failed")

// Run executes the complete simulation and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	client := NewHTTPClient(config.BaseURL, config.Timeout)

	logger.Get().Info(ctx, "starting vote simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("votes", config.Votes),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("reset", config.Reset),
		logger.Float64("bias", config.Bias))

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Seed the catalogue
	msg, err := client.Init(ctx, config.Reset)
	if err != nil {
		return stats, fmt.Errorf("init failed: %w", err)
	}
	logger.Get().Info(ctx, "catalogue ready", logger.String("message", msg))

	// Step 3: Vote concurrently
	accepted := submitVotes(ctx, config, client, stats)

	// Step 4: Verify the materialized state
	rankings, err := client.Rankings(ctx)
	if err != nil {
		return stats, fmt.Errorf("ranking retrieval failed: %w", err)
	}
	stats.EntitiesRanked = len(rankings)
	if err := VerifyRankings(rankings); err != nil {
		return stats, err
	}

	server, err := client.Stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("stats retrieval failed: %w", err)
	}
	stats.ServerVoteTotal = server.TotalVotes
	if err := VerifyStats(server, len(rankings), stats.VotesAccepted); err != nil {
		return stats, err
	}

	if config.OutputFile != "" {
		if err := saveVotesToFile(ctx, config.OutputFile, accepted); err != nil {
			logger.Get().Warn(ctx, "failed to save votes to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats, rankings)
	return stats, nil
}

// submitVotes runs the voters and returns every accepted ledger record.
func submitVotes(ctx context.Context, config *Config, client *HTTPClient, stats *Stats) []Vote {
	var (
		submitted, acceptedN, duplicate, rejected, failed int64
		lastReport                                        atomic.Int64
		mu                                                sync.Mutex
		accepted                                          = make([]Vote, 0, config.Votes)
	)

	workers := max(config.Workers, 1)
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, uint64(workerID)))
			for range jobs {
				if ctx.Err() != nil {
					return
				}
				vote, outcome := castVote(ctx, client, rng, config.Bias)
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&acceptedN, 1)
					mu.Lock()
					accepted = append(accepted, vote)
					mu.Unlock()
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeRejected:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					logger.Get().Info(ctx, "progress",
						logger.Int64("submitted", atomic.LoadInt64(&submitted)),
						logger.Int("total", config.Votes),
						logger.Int64("accepted", atomic.LoadInt64(&acceptedN)),
						logger.Int64("failed", atomic.LoadInt64(&failed)))
				}
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for i := 0; i < config.Votes; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	stats.VotesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.VotesAccepted = int(atomic.LoadInt64(&acceptedN))
	stats.VotesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.VotesRejected = int(atomic.LoadInt64(&rejected))
	stats.VotesFailed = int(atomic.LoadInt64(&failed))
	return accepted
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeAccepted
	outcomeDuplicate
	outcomeRejected
)

// castVote draws a matchup and votes for one side.
func castVote(ctx context.Context, client *HTTPClient, rng *rand.Rand, bias float64) (Vote, outcome) {
	m, err := client.Matchup(ctx)
	if err != nil {
		logger.Get().Debug(ctx, "matchup failed", logger.Error(err))
		return Vote{}, outcomeFailed
	}
	winner, loser := pickWinner(m, rng, bias)
	res, err := client.Vote(ctx, VoteRequest{WinnerID: winner.ID, LoserID: loser.ID})
	if err != nil {
		logger.Get().Debug(ctx, "vote failed", logger.Error(err))
		var se *StatusError
		if errors.As(err, &se) {
			switch se.Code {
			case http.StatusConflict:
				return Vote{}, outcomeDuplicate
			case http.StatusBadRequest, http.StatusNotFound:
				return Vote{}, outcomeRejected
			}
		}
		return Vote{}, outcomeFailed
	}
	return res.Vote, outcomeAccepted
}

// pickWinner favours the higher-rated side with probability bias.
func pickWinner(m Matchup, rng *rand.Rand, bias float64) (Entity, Entity) {
	strong, weak := m.EntityA, m.EntityB
	if weak.Rating > strong.Rating {
		strong, weak = weak, strong
	}
	if rng.Float64() < bias {
		return strong, weak
	}
	return weak, strong
}

// saveVotesToFile writes the accepted votes as a JSON array.
func saveVotesToFile(ctx context.Context, filename string, votes []Vote) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(votes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal votes: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write votes: %w", err)
	}
	logger.Get().Info(ctx, "votes saved to file", logger.String("filename", filename), logger.Int("votes", len(votes)))
	return nil
}

// displayFinalStats logs the final run statistics and the podium.
func displayFinalStats(ctx context.Context, stats *Stats, rankings []RankedEntity) {
	var successRate, votesPerSecond float64
	if stats.VotesSubmitted > 0 {
		successRate = float64(stats.VotesAccepted) / float64(stats.VotesSubmitted) * percentage
	}
	if stats.Duration > 0 {
		votesPerSecond = float64(stats.VotesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("votesSubmitted", stats.VotesSubmitted),
		logger.Int("votesAccepted", stats.VotesAccepted),
		logger.Int("votesDuplicate", stats.VotesDuplicate),
		logger.Int("votesRejected", stats.VotesRejected),
		logger.Int("votesFailed", stats.VotesFailed),
		logger.Int("entitiesRanked", stats.EntitiesRanked),
		logger.Int("serverVoteTotal", stats.ServerVoteTotal),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("votesPerSecond", votesPerSecond))

	for _, r := range rankings[:min(3, len(rankings))] {
		logger.Get().Info(ctx, "podium",
			logger.Int("rank", r.Rank),
			logger.String("name", r.Name),
			logger.Int("rating", r.Rating),
			logger.Int("wins", r.Wins),
			logger.Int("losses", r.Losses))
	}
}
