package interfaces

import (
	"context"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

// SignalHandler receives raw signals from a detection channel
type SignalHandler func(ctx context.Context, sig *model.RawSignal)

// SignalSource is a detection channel producing RawSignals at unpredictable times
type SignalSource interface {
	// OnSignal registers a handler called for every produced signal
	OnSignal(handler SignalHandler)
}

// LogTailWatcher is the reference log channel, started per repository
type LogTailWatcher interface {
	SignalSource

	// Start begins watching the repository's reference log
	Start(ctx context.Context, repoPath string) error

	// Stop cancels any pending re-read and releases the watch. Idempotent.
	Stop() error

	// Watching reports whether the watcher is currently active
	Watching() bool

	// LastSignal returns the most recent reference log entry, or nil
	LastSignal() *model.RawSignal
}
