package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/okian/pokerank/internal/domain/model"
)

// IdempotencyKeyHeader carries an optional client key that makes a vote
// submission safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxVoteBody = 1 << 10

// VoteDependencies defines the interface for resolving votes.
type VoteDependencies interface {
	Vote(ctx context.Context, in model.VoteInput, idemKey string) (model.VoteResult, error)
}

// VoteHandler handles vote submissions.
type VoteHandler struct {
	deps VoteDependencies
}

// NewVoteHandler creates a new vote handler.
func NewVoteHandler(deps VoteDependencies) *VoteHandler {
	return &VoteHandler{deps: deps}
}

// voteRequest mirrors the OpenAPI schema for POST /api/vote. Pointers
// tell a missing id apart from zero.
type voteRequest struct {
	WinnerID *int64 `json:"winnerId"`
	LoserID  *int64 `json:"loserId"`
}

func (v voteRequest) input() (model.VoteInput, error) {
	switch {
	case v.WinnerID == nil:
		return model.VoteInput{}, errors.New("missing winnerId")
	case v.LoserID == nil:
		return model.VoteInput{}, errors.New("missing loserId")
	}
	in := model.VoteInput{WinnerID: *v.WinnerID, LoserID: *v.LoserID}
	return in, in.Validate()
}

type voteResponse struct {
	Success    bool           `json:"success"`
	Vote       model.Vote     `json:"vote"`
	Winner     model.Entity   `json:"winner"`
	Loser      model.Entity   `json:"loser"`
	NewMatchup *model.Matchup `json:"newMatchup"`
}

// HandlePostVote handles POST /api/vote requests.
func (h *VoteHandler) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	if r.Method != http.MethodPost {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	var req voteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxVoteBody)).Decode(&req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Vote(r.Context(), in, strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, voteResponse{
		Success:    true,
		Vote:       res.Vote,
		Winner:     res.Winner,
		Loser:      res.Loser,
		NewMatchup: res.NewMatchup,
	})
}
