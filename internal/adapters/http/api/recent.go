package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/pokerank/internal/domain/model"
)

// RecentVotesDependencies defines the interface for the vote feed.
type RecentVotesDependencies interface {
	RecentVotes(ctx context.Context, limit int) ([]model.RecentVote, error)
}

// RecentVotesHandler handles recent vote requests.
type RecentVotesHandler struct {
	deps         RecentVotesDependencies
	defaultLimit int
	maxLimit     int
}

// NewRecentVotesHandler creates a new recent votes handler.
func NewRecentVotesHandler(deps RecentVotesDependencies, defaultLimit, maxLimit int) *RecentVotesHandler {
	return &RecentVotesHandler{
		deps:         deps,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// HandleGetRecentVotes handles GET /api/votes/recent?limit=N requests.
// Limits above the maximum are clamped.
func (h *RecentVotesHandler) HandleGetRecentVotes(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_recent_votes"
	if r.Method != http.MethodGet {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	n := h.defaultLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		var err error
		if n, err = parseLimit(raw); err != nil {
			writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if h.maxLimit > 0 && n > h.maxLimit {
		n = h.maxLimit
	}
	votes, err := h.deps.RecentVotes(r.Context(), n)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, votes)
}
