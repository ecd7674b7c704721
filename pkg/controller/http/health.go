package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/ctxlog"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

// healthHandler reports liveness. With a tracker it also reports the active
// repository, and with a dispatcher the standing degraded-channel notices.
func healthHandler(tracker interfaces.TrackerUseCase, dispatcher interfaces.DispatcherUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := &model.HealthStatus{
			Status:  "healthy",
			Service: "gitpulse",
			Version: types.Version,
		}
		if tracker != nil {
			status.Repository = tracker.ActiveRepository()
		}
		if dispatcher != nil {
			status.Notices = dispatcher.Notices()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			ctxlog.From(r.Context()).Error("Failed to encode health response", "error", err)
		}
	}
}
