package config

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/gitpulse/pkg/infra/git"
	"github.com/m-mizutani/gitpulse/pkg/infra/reflog"
)

// Tracking holds repository tracking configuration
type Tracking struct {
	Repo         string
	Limit        int
	Debounce     time.Duration
	QueryTimeout time.Duration
}

// Flags returns CLI flags for tracking configuration
func (c *Tracking) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repo",
			Aliases:     []string{"r"},
			Usage:       "Repository path to track",
			Destination: &c.Repo,
			Sources:     cli.EnvVars("GITPULSE_REPO"),
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of commits loaded into a baseline",
			Value:       git.DefaultLimit,
			Destination: &c.Limit,
			Sources:     cli.EnvVars("GITPULSE_LIMIT"),
		},
		&cli.DurationFlag{
			Name:        "debounce",
			Usage:       "Quiet period before the reference log is re-read",
			Value:       reflog.DefaultDebounce,
			Destination: &c.Debounce,
			Sources:     cli.EnvVars("GITPULSE_DEBOUNCE"),
		},
		&cli.DurationFlag{
			Name:        "query-timeout",
			Usage:       "Timeout of a single git query",
			Value:       git.DefaultTimeout,
			Destination: &c.QueryTimeout,
			Sources:     cli.EnvVars("GITPULSE_QUERY_TIMEOUT"),
		},
	}
}

// NewReader creates a repository reader honoring the query timeout
func (c *Tracking) NewReader() *git.Reader {
	return git.New(git.WithTimeout(c.QueryTimeout))
}

// NewWatcher creates a stopped reference log watcher
func (c *Tracking) NewWatcher() *reflog.Watcher {
	return reflog.New(reflog.WithDebounce(c.Debounce))
}
