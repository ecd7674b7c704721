package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/gitpulse/pkg/cli/config"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var loggerCfg config.Logger
	var fileCfg config.File
	var logger *slog.Logger

	app := &cli.Command{
		Name:    "gitpulse",
		Usage:   "Stream live git repository changes to subscribers",
		Version: types.Version,
		Flags:   append(loggerCfg.Flags(), fileCfg.Flags()...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := fileCfg.Load(); err != nil {
				return nil, err
			}
			if err := fileCfg.Apply(c); err != nil {
				return nil, err
			}

			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdServe(&fileCfg),
			cmdLog(&fileCfg),
			cmdTail(&fileCfg),
			cmdNotify(&fileCfg),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		return err
	}

	return nil
}

// applyFile fills subcommand flags from the config file
func applyFile(fileCfg *config.File) cli.BeforeFunc {
	return func(ctx context.Context, c *cli.Command) (context.Context, error) {
		return ctx, fileCfg.Apply(c)
	}
}
