package reflog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
	"github.com/m-mizutani/gitpulse/pkg/utils/async"
)

// DefaultDebounce is the quiet period after the last filesystem event before
// the reference log is re-read
const DefaultDebounce = 200 * time.Millisecond

// Watcher is the log-tail detection channel. It watches <repo>/.git/logs/HEAD
// and produces one signal per new final line.
//
// Only the final line is inspected after each debounce window, so several ref
// updates coalesced into one window (e.g. a fast rebase) surface as the last
// one only.
type Watcher struct {
	debounce time.Duration

	mu         sync.Mutex
	handlers   []interfaces.SignalHandler
	fsw        *fsnotify.Watcher
	done       chan struct{}
	ctx        context.Context
	repoPath   string
	logPath    string
	lastLine   string
	timer      *time.Timer
	generation uint64

	// serializes re-reads so signals leave in file order
	flushMu sync.Mutex
	flushWG sync.WaitGroup
	reads   atomic.Int64
}

// Option is a functional option for Watcher configuration
type Option func(*Watcher)

// WithDebounce sets the debounce window
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a stopped Watcher
func New(opts ...Option) *Watcher {
	w := &Watcher{
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// LogPath returns the reference log path of a repository
func LogPath(repoPath string) string {
	return filepath.Join(repoPath, ".git", "logs", "HEAD")
}

// OnSignal registers a handler for produced signals
func (w *Watcher) OnSignal(handler interfaces.SignalHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Watching reports whether the watcher is active
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsw != nil
}

// Reads returns how many times the reference log has been re-read
func (w *Watcher) Reads() int64 {
	return w.reads.Load()
}

// Start watches the reference log of repoPath. Starting again for the same
// path is a no-op; a different path requires Stop first. A missing reference
// log (no commit yet) leaves the watcher stopped without error.
func (w *Watcher) Start(ctx context.Context, repoPath string) error {
	logger := ctxlog.From(ctx)
	repoPath = filepath.Clean(repoPath)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil {
		if w.repoPath == repoPath {
			return nil
		}
		return goerr.Wrap(types.ErrWatcherBusy, "stop the watcher before switching repository",
			goerr.V("watching", w.repoPath),
			goerr.V("requested", repoPath),
		)
	}

	logPath := LogPath(repoPath)
	if _, err := os.Stat(logPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("Reference log not found, log-tail channel inactive", "path", logPath)
			return nil
		}
		return goerr.Wrap(err, "failed to stat reference log", goerr.V("path", logPath))
	}

	last, err := readLastLine(logPath)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return goerr.Wrap(err, "failed to create filesystem watcher")
	}
	// watch the directory so a rewritten (renamed) log is still seen
	if err := fsw.Add(filepath.Dir(logPath)); err != nil {
		_ = fsw.Close()
		return goerr.Wrap(err, "failed to watch reference log directory", goerr.V("path", logPath))
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.ctx = async.NewBackgroundContext(ctx)
	w.repoPath = repoPath
	w.logPath = logPath
	w.lastLine = last

	go w.loop(w.ctx, fsw, logPath, w.done)

	logger.Info("Watching reference log", "path", logPath, "debounce", w.debounce)
	return nil
}

// LastSignal returns the final reference log line seen so far as a signal,
// or nil when the watcher is stopped or the line is unparsable. Right after
// Start it is the line primed from disk, which may record a ref update made
// after the caller last read the repository.
func (w *Watcher) LastSignal() *model.RawSignal {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw == nil || w.lastLine == "" {
		return nil
	}
	sig, err := ParseLine(w.lastLine)
	if err != nil {
		return nil
	}
	sig.RepositoryPath = w.repoPath
	return sig
}

// Stop cancels any pending debounce timer, waits for an in-flight re-read and
// releases the filesystem watch. Stopping a stopped watcher is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return nil
	}
	fsw, done := w.fsw, w.done
	w.fsw = nil
	w.generation++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	err := fsw.Close()
	<-done
	w.flushWG.Wait()

	if err != nil {
		return goerr.Wrap(err, "failed to close filesystem watcher")
	}
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, logPath string, done chan struct{}) {
	defer close(done)
	logger := ctxlog.From(ctx)

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != logPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.schedule()
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			// non-fatal, keep watching
			logger.Warn("Reference log watch error", "path", logPath, "error", err)
		}
	}
}

// schedule (re)starts the debounce timer
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw == nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.generation++
	gen := w.generation
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(gen) })
}

// flush re-reads the final line and emits a signal when it changed
func (w *Watcher) flush(gen uint64) {
	w.mu.Lock()
	if w.fsw == nil || gen != w.generation {
		w.mu.Unlock()
		return
	}
	w.flushWG.Add(1)
	ctx, logPath := w.ctx, w.logPath
	w.mu.Unlock()
	defer w.flushWG.Done()

	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	logger := ctxlog.From(ctx)
	w.reads.Add(1)

	line, err := readLastLine(logPath)
	if err != nil {
		logger.Warn("Failed to read reference log", "error", err)
		return
	}

	w.mu.Lock()
	if line == "" || line == w.lastLine {
		w.mu.Unlock()
		logger.Debug("Reference log unchanged", "path", logPath)
		return
	}
	w.mu.Unlock()

	sig, err := ParseLine(line)
	if err != nil {
		logger.Warn("Skipping malformed reference log line", "error", err)
		return
	}

	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	w.lastLine = line
	sig.RepositoryPath = w.repoPath
	handlers := make([]interfaces.SignalHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	logger.Debug("Reference log changed",
		"kind", sig.Kind,
		"hash", sig.NewHash,
		"action", sig.Action,
	)
	for _, h := range handlers {
		h(ctx, sig)
	}
}
