package cli

import (
	"context"
	"errors"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/gitpulse/pkg/cli/config"
	controller "github.com/m-mizutani/gitpulse/pkg/controller/http"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

func cmdTail(fileCfg *config.File) *cli.Command {
	var (
		addr string
		repo string
	)

	return &cli.Command{
		Name:  "tail",
		Usage: "Follow change events from a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "subscriber-addr",
				Usage:       "Subscriber channel address",
				Value:       controller.DefaultSubscriberAddr,
				Destination: &addr,
				Sources:     cli.EnvVars("GITPULSE_SUBSCRIBER_ADDR"),
			},
			&cli.StringFlag{
				Name:        "repo",
				Aliases:     []string{"r"},
				Usage:       "Select this repository after connecting",
				Destination: &repo,
			},
		},
		Before: applyFile(fileCfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			first := model.ClientRequest{Type: model.RequestBaseline}
			if repo != "" {
				abs, err := filepath.Abs(repo)
				if err != nil {
					return goerr.Wrap(err, "failed to resolve repository path")
				}
				first = model.ClientRequest{Type: model.RequestSelectRepository, Path: abs}
			}
			return tail(ctx, addr, first, newPrinter(os.Stdout))
		},
	}
}

// tail streams subscriber messages until ctx is cancelled or the server
// closes the connection
func tail(ctx context.Context, addr string, first model.ClientRequest, p *printer) error {
	logger := ctxlog.From(ctx)
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return goerr.Wrap(err, "failed to connect to subscriber channel", goerr.V("url", u.String()))
	}
	defer conn.Close()

	if err := conn.WriteJSON(first); err != nil {
		return goerr.Wrap(err, "failed to send request")
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var msg model.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Subscriber channel closed")
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return goerr.Wrap(err, "connection closed by server", goerr.V("code", closeErr.Code))
			}
			return goerr.Wrap(err, "failed to read message")
		}
		p.message(&msg)
	}
}
