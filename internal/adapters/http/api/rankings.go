package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/pokerank/internal/domain/model"
)

// RankingsDependencies defines the interface for ranking operations.
type RankingsDependencies interface {
	Rankings(ctx context.Context, limit int) ([]model.RankedEntity, error)
}

// RankingsHandler handles ranking requests.
type RankingsHandler struct {
	deps         RankingsDependencies
	defaultLimit int
	allThreshold int
}

// NewRankingsHandler creates a new rankings handler. A limit of "all" or at
// least allThreshold returns every entity.
func NewRankingsHandler(deps RankingsDependencies, defaultLimit, allThreshold int) *RankingsHandler {
	return &RankingsHandler{
		deps:         deps,
		defaultLimit: defaultLimit,
		allThreshold: allThreshold,
	}
}

// HandleGetRankings handles GET /api/rankings?limit=N requests.
func (h *RankingsHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rankings"
	if r.Method != http.MethodGet {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	limit, err := h.limit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	ranked, err := h.deps.Rankings(r.Context(), limit)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

// limit returns 0 for "everything".
func (h *RankingsHandler) limit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return h.defaultLimit, nil
	case strings.EqualFold(raw, "all"):
		return 0, nil
	}
	n, err := parseLimit(raw)
	if err != nil {
		return 0, err
	}
	if h.allThreshold > 0 && n >= h.allThreshold {
		return 0, nil
	}
	return n, nil
}

// parseLimit accepts positive integers only.
func parseLimit(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer, got %q", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("limit must be positive, got %d", n)
	}
	return n, nil
}
