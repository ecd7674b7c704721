package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/gitpulse/pkg/cli/config"
	controller "github.com/m-mizutani/gitpulse/pkg/controller/http"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/infra/git"
)

func cmdNotify(fileCfg *config.File) *cli.Command {
	var (
		addr    string
		payload model.HookPayload
	)

	return &cli.Command{
		Name:  "notify",
		Usage: "Send one push channel event; intended to be called from git hooks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "hook-addr",
				Usage:       "Push channel address",
				Value:       controller.DefaultHookAddr,
				Destination: &addr,
				Sources:     cli.EnvVars("GITPULSE_HOOK_ADDR"),
			},
			&cli.StringFlag{
				Name:        "repo",
				Aliases:     []string{"r"},
				Usage:       "Repository path",
				Value:       ".",
				Destination: &payload.Repo,
			},
			&cli.StringFlag{
				Name:        "event",
				Aliases:     []string{"e"},
				Usage:       "Event kind (commit, merge, checkout, push)",
				Required:    true,
				Destination: &payload.Event,
			},
			&cli.StringFlag{Name: "hash", Usage: "Commit hash", Destination: &payload.Hash},
			&cli.StringFlag{Name: "ref", Usage: "Checked out ref", Destination: &payload.Ref},
			&cli.StringFlag{Name: "remote", Usage: "Pushed remote", Destination: &payload.Remote},
			&cli.StringFlag{Name: "branch", Usage: "Pushed branch", Destination: &payload.Branch},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Commit subject", Destination: &payload.Message},
		},
		Before: applyFile(fileCfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := filepath.Abs(payload.Repo)
			if err != nil {
				return goerr.Wrap(err, "failed to resolve repository path")
			}
			payload.Repo = repo
			if err := payload.Validate(); err != nil {
				return err
			}
			if err := resolveHead(ctx, &payload); err != nil {
				return err
			}
			return postHook(ctx, addr, &payload)
		},
	}
}

// resolveHead fills in the hash of a commit or merge event from HEAD. A
// post-commit hook has no other way to learn it.
func resolveHead(ctx context.Context, payload *model.HookPayload) error {
	if payload.Hash != "" {
		return nil
	}
	kind, _ := model.ParseChangeKind(payload.Event)
	if kind != model.ChangeKindCommit && kind != model.ChangeKindMerge {
		return nil
	}

	out, err := git.ExecRunner(ctx, payload.Repo, "rev-parse", "HEAD")
	if err != nil {
		return goerr.Wrap(err, "failed to resolve HEAD", goerr.V("repo", payload.Repo))
	}
	payload.Hash = strings.TrimSpace(out)
	ctxlog.From(ctx).Debug("Resolved HEAD", "hash", payload.Hash)
	return nil
}

func postHook(ctx context.Context, addr string, payload *model.HookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal payload")
	}

	u := url.URL{Scheme: "http", Host: addr, Path: "/hooks/git"}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to reach push channel", goerr.V("url", u.String()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return goerr.New("push channel rejected event",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)),
		)
	}

	ctxlog.From(ctx).Debug("Event sent", "event", payload.Event, "repo", payload.Repo)
	return nil
}
