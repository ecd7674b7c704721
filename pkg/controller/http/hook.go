package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

const maxHookBodySize = 1 << 20

// HookHandler is the push channel. Git hooks POST one payload per local
// repository change; each valid payload becomes one RawSignal.
type HookHandler struct {
	mu       sync.RWMutex
	handlers []interfaces.SignalHandler
}

// NewHookHandler creates a new HookHandler
func NewHookHandler() *HookHandler {
	return &HookHandler{}
}

// OnSignal registers a handler for produced signals
func (h *HookHandler) OnSignal(handler interfaces.SignalHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler)
}

// Handle processes a push channel request. Handlers run before the response
// is written, so a 200 means the signal was processed.
func (h *HookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	var payload model.HookPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxHookBodySize))
	if err := decoder.Decode(&payload); err != nil {
		logger.Warn("Failed to decode hook payload", "error", err)
		writeError(ctx, w, goerr.Wrap(err, "invalid JSON payload"), http.StatusBadRequest)
		return
	}
	if err := payload.Validate(); err != nil {
		logger.Warn("Rejected hook payload", "error", err)
		writeError(ctx, w, err, http.StatusBadRequest)
		return
	}

	sig := payload.ToSignal()
	logger.Debug("Push channel signal",
		"repo", sig.RepositoryPath,
		"kind", sig.Kind,
		"hash", sig.NewHash,
	)

	h.mu.RLock()
	handlers := make([]interfaces.SignalHandler, len(h.handlers))
	copy(handlers, h.handlers)
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(ctx, sig)
	}

	writeJSON(ctx, w, map[string]string{"status": "success"}, http.StatusOK)
}
