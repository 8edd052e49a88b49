package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/pokerank/internal/domain/model"
)

// InitDependencies defines the interface for seeding.
type InitDependencies interface {
	Init(ctx context.Context, reset bool) (model.InitResult, error)
}

// InitHandler handles seeding requests.
type InitHandler struct {
	deps InitDependencies
}

// NewInitHandler creates a new init handler.
func NewInitHandler(deps InitDependencies) *InitHandler {
	return &InitHandler{deps: deps}
}

type initResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Count    int    `json:"count"`
	Fallback bool   `json:"fallback,omitempty"`
}

// HandleInit handles GET /api/init[?reset=true] requests.
func (h *InitHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	const op = "api.init"
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, r, NewKind(op, ErrMethodNotAllowed))
		return
	}
	var reset bool
	if v := r.URL.Query().Get("reset"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
		reset = b
	}

	res, err := h.deps.Init(r.Context(), reset)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, initResponse{
		Success:  true,
		Message:  res.Message,
		Count:    res.Count,
		Fallback: res.Fallback,
	})
}
