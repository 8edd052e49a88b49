// Package rating computes ELO rating updates for a resolved comparison.
package rating

import "math"

// DefaultK is the maximum rating swing per comparison.
const DefaultK = 32

// Result holds post-match ratings and the deltas that produced them.
type Result struct {
	NewWinnerRating   int
	NewLoserRating    int
	WinnerRatingDelta int
	LoserRatingDelta  int
}

// Engine applies the ELO update with a fixed K-factor. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	k float64
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithKFactor overrides DefaultK. Non-positive values are ignored.
func WithKFactor(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.k = float64(k)
		}
	}
}

// New constructs an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{k: DefaultK}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// K returns the configured K-factor.
func (e *Engine) K() int { return int(e.k) }

// Rate computes the outcome of winner beating loser.
func (e *Engine) Rate(winnerRating, loserRating int) Result {
	return Rate(winnerRating, loserRating, e.k)
}

// Rate computes the outcome of winner beating loser with K-factor k.
// Both deltas are rounded independently, so |winnerDelta| and |loserDelta|
// may differ by one. Ratings are not clamped.
func Rate(winnerRating, loserRating int, k float64) Result {
	ew := Expected(winnerRating, loserRating)
	el := Expected(loserRating, winnerRating)

	dw := round(k * (1 - ew))
	dl := round(k * (0 - el))

	return Result{
		NewWinnerRating:   winnerRating + dw,
		NewLoserRating:    loserRating + dl,
		WinnerRatingDelta: dw,
		LoserRatingDelta:  dl,
	}
}

// Expected is the probability that a player rated a beats one rated b.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// round is half-up toward +Inf, so -0.5 becomes 0 rather than -1.
func round(f float64) int {
	return int(math.Floor(f + .5))
}
