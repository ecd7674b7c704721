package git

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

const (
	// DefaultLimit caps the baseline load. Repositories with more commits are
	// truncated to the most recent DefaultLimit commits across all refs, so
	// older history and refs only reachable through it are absent.
	DefaultLimit = 5000

	// DefaultTimeout bounds a single git query
	DefaultTimeout = 10 * time.Second
)

var hashPattern = regexp.MustCompile(`^[0-9a-fA-F]{4,64}$`)

// Reader reads commit records by shelling out to git
type Reader struct {
	runner  Runner
	timeout time.Duration
}

// Option is a functional option for Reader configuration
type Option func(*Reader)

// WithRunner replaces the git executor
func WithRunner(runner Runner) Option {
	return func(r *Reader) {
		r.runner = runner
	}
}

// WithTimeout sets the per-query timeout
func WithTimeout(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a new Reader
func New(opts ...Option) *Reader {
	r := &Reader{
		runner:  ExecRunner,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate reports whether path contains a .git directory
func (r *Reader) Validate(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

// LoadBaseline returns up to limit most recent commits reachable from any
// local branch, remote-tracking branch, tag or HEAD, newest first as reported
// by git. A non-positive limit falls back to DefaultLimit.
func (r *Reader) LoadBaseline(ctx context.Context, repoPath string, limit int) ([]*model.CommitRecord, error) {
	if !r.Validate(repoPath) {
		return nil, goerr.Wrap(types.ErrNotAGitRepository, "cannot load baseline", goerr.V("path", repoPath))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.runner(ctx, repoPath,
		"log",
		"--exclude=refs/stash",
		"--all",
		"--max-count="+strconv.Itoa(limit),
		"--format="+logFormat,
	)
	if err != nil {
		return nil, goerr.Wrap(types.ErrReadFailure, "git log failed",
			goerr.V("path", repoPath),
			goerr.V("error", err.Error()),
		)
	}

	commits := parseLog(out)
	if len(commits) > limit {
		commits = commits[:limit]
	}

	ctxlog.From(ctx).Debug("Loaded baseline",
		"path", repoPath,
		"count", len(commits),
		"limit", limit,
	)
	return commits, nil
}

// LoadOne returns the commit identified by hash
func (r *Reader) LoadOne(ctx context.Context, repoPath, hash string) (*model.CommitRecord, error) {
	if !r.Validate(repoPath) {
		return nil, goerr.Wrap(types.ErrNotAGitRepository, "cannot load commit", goerr.V("path", repoPath))
	}
	if !hashPattern.MatchString(hash) {
		return nil, goerr.Wrap(types.ErrCommitNotFound, "invalid commit hash", goerr.V("hash", hash))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.runner(ctx, repoPath, "log", "-1", "--format="+logFormat, hash, "--")
	if err != nil {
		if isExitCode128(err) {
			return nil, goerr.Wrap(types.ErrCommitNotFound, "hash did not resolve",
				goerr.V("path", repoPath),
				goerr.V("hash", hash),
			)
		}
		return nil, goerr.Wrap(types.ErrReadFailure, "git log failed",
			goerr.V("path", repoPath),
			goerr.V("hash", hash),
			goerr.V("error", err.Error()),
		)
	}

	commits := parseLog(out)
	if len(commits) == 0 {
		return nil, goerr.Wrap(types.ErrCommitNotFound, "no commit in git output",
			goerr.V("path", repoPath),
			goerr.V("hash", hash),
		)
	}
	return commits[0], nil
}
