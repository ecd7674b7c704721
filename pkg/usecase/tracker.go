package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

const (
	// DefaultLimit is the default baseline load cap
	DefaultLimit = 5000

	advisoryLogTailDegraded = "log-tail-degraded"
)

// Tracker owns the active repository session. It selects repositories, runs
// the log-tail watcher for the active one, and feeds signals from both
// detection channels through the normalizer to the dispatcher.
type Tracker struct {
	reader     interfaces.RepositoryReader
	dispatcher interfaces.DispatcherUseCase
	watcher    interfaces.LogTailWatcher
	normalizer *Normalizer
	limit      int

	// serializes repository switches
	selectMu sync.Mutex

	mu      sync.RWMutex
	session *model.Session
}

// TrackerOption is a functional option for Tracker configuration
type TrackerOption func(*Tracker)

// WithLimit sets the baseline load cap
func WithLimit(limit int) TrackerOption {
	return func(t *Tracker) {
		if limit > 0 {
			t.limit = limit
		}
	}
}

// WithLogTailWatcher sets the watcher started for each selected repository
func WithLogTailWatcher(w interfaces.LogTailWatcher) TrackerOption {
	return func(t *Tracker) {
		t.watcher = w
	}
}

// NewTracker creates a new Tracker with no active repository
func NewTracker(reader interfaces.RepositoryReader, dispatcher interfaces.DispatcherUseCase, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		reader:     reader,
		dispatcher: dispatcher,
		normalizer: NewNormalizer(reader),
		limit:      DefaultLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// canonicalPath returns an absolute, symlink-resolved, cleaned path
func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// ActiveRepository returns the active repository path, or "" if none
func (t *Tracker) ActiveRepository() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.session == nil {
		return ""
	}
	return t.session.RepositoryPath()
}

// SelectRepository validates path, loads its baseline and makes it the active
// session. On failure the previous session stays active and untouched.
func (t *Tracker) SelectRepository(ctx context.Context, path string) error {
	logger := ctxlog.From(ctx)
	repoPath := canonicalPath(path)

	if !t.reader.Validate(repoPath) {
		err := goerr.Wrap(types.ErrNotAGitRepository, "repository selection rejected", goerr.V("path", repoPath))
		t.dispatcher.EmitAdvisory(ctx, model.SeverityError, fmt.Sprintf("Not a git repository: %s", repoPath))
		return err
	}

	t.selectMu.Lock()
	defer t.selectMu.Unlock()

	commits, err := t.reader.LoadBaseline(ctx, repoPath, t.limit)
	if err != nil {
		t.dispatcher.EmitAdvisory(ctx, model.SeverityError, fmt.Sprintf("Failed to load repository %s", repoPath))
		return goerr.Wrap(err, "failed to load baseline", goerr.V("path", repoPath))
	}
	sess := model.NewSession(repoPath, commits, len(commits) >= t.limit)

	// the old watcher must be gone before the new one starts
	if t.watcher != nil {
		if err := t.watcher.Stop(); err != nil {
			logger.Warn("Failed to stop reference log watcher", "error", err)
		}
	}

	t.mu.Lock()
	t.session = sess
	if t.watcher != nil {
		if err := t.watcher.Start(ctx, repoPath); err != nil {
			logger.Error("Failed to start reference log watcher", "path", repoPath, "error", err)
			t.dispatcher.AdvisoryOnce(ctx, advisoryLogTailDegraded, model.SeverityWarning,
				"Reference log watching is unavailable; live updates rely on the push channel only")
		}
	}
	t.dispatcher.EmitBaseline(ctx, sess.Baseline())
	t.mu.Unlock()

	logger.Info("Repository selected",
		"path", repoPath,
		"commits", sess.Len(),
		"truncated", sess.Truncated(),
	)
	t.dispatcher.EmitAdvisory(ctx, model.SeverityInfo,
		fmt.Sprintf("Repository loaded: %s (%d commits)", repoPath, sess.Len()))
	if sess.Truncated() {
		t.dispatcher.EmitAdvisory(ctx, model.SeverityInfo,
			fmt.Sprintf("History truncated to the most recent %d commits", t.limit))
	}

	t.catchUp(ctx, sess)
	return nil
}

// catchUp replays the watcher's primed reference log entry. A commit made
// between loading the baseline and starting the watcher is only visible there.
func (t *Tracker) catchUp(ctx context.Context, sess *model.Session) {
	if t.watcher == nil {
		return
	}
	sig := t.watcher.LastSignal()
	if sig == nil || sig.NewHash == "" || sig.Kind == model.ChangeKindCheckout {
		return
	}
	if !sess.Owns(canonicalPath(sig.RepositoryPath)) || sess.Has(sig.NewHash) {
		return
	}
	ctxlog.From(ctx).Info("Catching up on reference log entry written during load",
		"hash", sig.NewHash,
		"action", sig.Action,
	)
	t.HandleSignal(ctx, sig)
}

// HandleSignal normalizes a signal from either detection channel against the
// active session and emits the resulting event. Signals for any other
// repository are ignored. It never fails; problems become advisories.
func (t *Tracker) HandleSignal(ctx context.Context, sig *model.RawSignal) {
	logger := ctxlog.From(ctx)

	t.mu.RLock()
	sess := t.session
	t.mu.RUnlock()

	if sess == nil {
		logger.Debug("No active repository, signal ignored", "source", sig.Source)
		return
	}
	if !sess.Owns(canonicalPath(sig.RepositoryPath)) {
		logger.Debug("Signal for inactive repository ignored",
			"source", sig.Source,
			"repository", sig.RepositoryPath,
			"active", sess.RepositoryPath(),
		)
		return
	}

	event, err := t.normalizer.Normalize(ctx, sess, sig)
	if err != nil {
		logger.Error("Failed to normalize signal", "source", sig.Source, "error", err)
		t.dispatcher.EmitAdvisory(ctx, model.SeverityError,
			fmt.Sprintf("Failed to read repository while processing %s", sig.Kind))
		return
	}
	if event == nil {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.session != sess {
		logger.Debug("Session switched during normalization, event dropped", "kind", event.Kind)
		return
	}

	t.dispatcher.EmitChange(ctx, event)
	t.dispatcher.EmitAdvisory(ctx, model.SeverityInfo, describe(event))
}

// Snapshot returns the active session's current baseline
func (t *Tracker) Snapshot() (*model.Baseline, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.session == nil {
		return nil, goerr.Wrap(types.ErrNoActiveRepository, "no baseline available")
	}
	return t.session.Baseline(), nil
}

// RequestBaseline sends a fresh baseline to one subscriber
func (t *Tracker) RequestBaseline(ctx context.Context, subscriberID string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.session == nil {
		return goerr.Wrap(types.ErrNoActiveRepository, "no baseline available")
	}
	return t.dispatcher.SendTo(ctx, subscriberID, &model.Message{
		Type:     model.MessageTypeBaseline,
		Baseline: t.session.Baseline(),
	})
}

// Close stops the log-tail watcher
func (t *Tracker) Close() error {
	if t.watcher == nil {
		return nil
	}
	return t.watcher.Stop()
}

func describe(e *model.ChangeEvent) string {
	switch e.Kind {
	case model.ChangeKindCommit, model.ChangeKindMerge:
		return fmt.Sprintf("Detected %s: %s", e.Kind, e.Commit.Subject)
	case model.ChangeKindCheckout:
		return fmt.Sprintf("Detected checkout: %s", e.Ref)
	case model.ChangeKindPush:
		if e.RemoteBranch.Remote == "" {
			return fmt.Sprintf("Detected push: %s", e.RemoteBranch.Branch)
		}
		return fmt.Sprintf("Detected push: %s/%s", e.RemoteBranch.Remote, e.RemoteBranch.Branch)
	default:
		return fmt.Sprintf("Detected %s", e.Kind)
	}
}
