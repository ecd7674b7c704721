package types

import "errors"

var (
	// ErrNotAGitRepository indicates the selected path has no .git directory.
	ErrNotAGitRepository = errors.New("not a git repository")

	// ErrReadFailure indicates a git log query failed (missing git, corrupted
	// repository, permission denied, timeout).
	ErrReadFailure = errors.New("repository read failure")

	// ErrCommitNotFound indicates a hash did not resolve to a commit.
	ErrCommitNotFound = errors.New("commit not found")

	// ErrMalformedLogLine indicates a reference log line did not match the
	// expected structure.
	ErrMalformedLogLine = errors.New("malformed reference log line")

	// ErrPortInUse indicates a listener could not bind its address.
	ErrPortInUse = errors.New("address already in use")

	// ErrWatcherBusy indicates a watcher is already watching another repository.
	ErrWatcherBusy = errors.New("watcher is busy with another repository")

	// ErrNoActiveRepository indicates no repository has been selected yet.
	ErrNoActiveRepository = errors.New("no active repository")
)
