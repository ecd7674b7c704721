package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

type apiHandler struct {
	tracker interfaces.TrackerUseCase
}

type selectRepositoryRequest struct {
	Path string `json:"path"`
}

// selectRepository handles POST /api/repository
func (h *apiHandler) selectRepository(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req selectRepositoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxHookBodySize)).Decode(&req); err != nil {
		writeError(ctx, w, goerr.Wrap(err, "invalid JSON payload"), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		writeError(ctx, w, goerr.New("missing required field: path"), http.StatusBadRequest)
		return
	}

	if err := h.tracker.SelectRepository(ctx, req.Path); err != nil {
		ctxlog.From(ctx).Warn("Repository selection failed", "path", req.Path, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrNotAGitRepository) {
			status = http.StatusUnprocessableEntity
		}
		writeError(ctx, w, err, status)
		return
	}

	writeJSON(ctx, w, map[string]string{
		"status":     "success",
		"repository": h.tracker.ActiveRepository(),
	}, http.StatusOK)
}

// baseline handles GET /api/baseline
func (h *apiHandler) baseline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, err := h.tracker.Snapshot()
	if err != nil {
		if errors.Is(err, types.ErrNoActiveRepository) {
			writeError(ctx, w, err, http.StatusNotFound)
			return
		}
		writeError(ctx, w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, b, http.StatusOK)
}
