package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/gitpulse/pkg/cli/config"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

func cmdLog(fileCfg *config.File) *cli.Command {
	var trackingCfg config.Tracking

	return &cli.Command{
		Name:      "log",
		Usage:     "Print the baseline of a repository",
		ArgsUsage: "[repository]",
		Flags:     trackingCfg.Flags(),
		Before:    applyFile(fileCfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			repo := c.Args().First()
			if repo == "" {
				repo = trackingCfg.Repo
			}
			if repo == "" {
				repo = "."
			}
			repo, err := filepath.Abs(repo)
			if err != nil {
				return goerr.Wrap(err, "failed to resolve repository path")
			}

			commits, err := trackingCfg.NewReader().LoadBaseline(ctx, repo, trackingCfg.Limit)
			if err != nil {
				return err
			}

			newPrinter(os.Stdout).baseline(&model.Baseline{
				RepositoryPath: repo,
				Commits:        commits,
				Truncated:      len(commits) >= trackingCfg.Limit,
			})
			return nil
		},
	}
}
