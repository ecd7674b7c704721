package git

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Runner executes git with args inside dir and returns its standard output.
// It is swapped out in tests.
type Runner func(ctx context.Context, dir string, args ...string) (string, error)

// ExecRunner runs the git executable as a subprocess
func ExecRunner(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", goerr.Wrap(err, "git command failed",
			goerr.V("args", args),
			goerr.V("dir", dir),
			goerr.V("stderr", strings.TrimSpace(stderr.String())),
		)
	}
	return string(out), nil
}

// isExitCode128 reports whether err carries an *exec.ExitError with exit code
// 128, which git uses for unknown revisions.
func isExitCode128(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 128
	}
	return false
}
