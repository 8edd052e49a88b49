package api

import (
	"context"
	"net/http"

	"github.com/okian/pokerank/internal/domain/model"
)

// MatchupDependencies defines the interface for drawing pairs.
type MatchupDependencies interface {
	Matchup(ctx context.Context) (model.Matchup, error)
}

// MatchupHandler handles matchup requests.
type MatchupHandler struct {
	deps MatchupDependencies
}

// NewMatchupHandler creates a new matchup handler.
func NewMatchupHandler(deps MatchupDependencies) *MatchupHandler {
	return &MatchupHandler{deps: deps}
}

// HandleGetMatchup handles GET /api/matchup requests.
func (h *MatchupHandler) HandleGetMatchup(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_matchup"
	if r.Method != http.MethodGet {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	m, err := h.deps.Matchup(r.Context())
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}
