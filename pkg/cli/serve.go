package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/m-mizutani/gitpulse/pkg/cli/config"
	controller "github.com/m-mizutani/gitpulse/pkg/controller/http"
	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
	"github.com/m-mizutani/gitpulse/pkg/usecase"
)

const shutdownTimeout = 10 * time.Second

func cmdServe(fileCfg *config.File) *cli.Command {
	var (
		serverCfg   config.Server
		trackingCfg config.Tracking
		notifierCfg config.Notifier
	)

	flags := append(serverCfg.Flags(), trackingCfg.Flags()...)
	flags = append(flags, notifierCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the push channel and subscriber servers",
		Flags:   flags,
		Before:  applyFile(fileCfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			notifiers, flush, err := notifierCfg.Configure()
			if err != nil {
				return err
			}
			defer flush()

			var dispatcherOpts []usecase.DispatcherOption
			for _, n := range notifiers {
				dispatcherOpts = append(dispatcherOpts, usecase.WithNotifier(n))
			}
			dispatcher := usecase.NewDispatcher(dispatcherOpts...)
			defer dispatcher.Wait(5 * time.Second)

			watcher := trackingCfg.NewWatcher()
			tracker := usecase.NewTracker(
				trackingCfg.NewReader(),
				dispatcher,
				usecase.WithLimit(trackingCfg.Limit),
				usecase.WithLogTailWatcher(watcher),
			)
			defer func() {
				if err := tracker.Close(); err != nil {
					logger.Warn("Failed to stop tracker", "error", err)
				}
			}()

			hook := controller.NewHookHandler()
			hook.OnSignal(tracker.HandleSignal)
			watcher.OnSignal(tracker.HandleSignal)

			hookServer, err := controller.NewHookServer(ctx, hook, controller.WithAddr(serverCfg.HookAddr))
			if err != nil {
				return goerr.Wrap(err, "failed to create push channel server")
			}
			subServer, err := controller.NewSubscriberServer(ctx, tracker, dispatcher,
				controller.WithAddr(serverCfg.SubscriberAddr))
			if err != nil {
				return goerr.Wrap(err, "failed to create subscriber server")
			}

			subLn, err := subServer.Listen()
			if err != nil {
				return goerr.Wrap(err, "failed to bind subscriber channel")
			}

			hookLn, err := bindHook(ctx, hookServer, dispatcher)
			if err != nil {
				_ = subLn.Close()
				return err
			}

			if trackingCfg.Repo != "" {
				if err := tracker.SelectRepository(ctx, trackingCfg.Repo); err != nil {
					logger.Warn("Initial repository not loaded", "repo", trackingCfg.Repo, "error", err)
				}
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			eg, egCtx := errgroup.WithContext(ctx)
			serve := func(name string, srv *controller.Server, ln net.Listener) {
				eg.Go(func() error {
					logger.Info("Server starting", slog.String("server", name), slog.String("addr", ln.Addr().String()))
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return goerr.Wrap(err, "server failed", goerr.V("server", name))
					}
					return nil
				})
			}
			serve("subscriber", subServer, subLn)
			if hookLn != nil {
				serve("hook", hookServer, hookLn)
			}

			eg.Go(func() error {
				<-egCtx.Done()
				logger.Info("Shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				var errs []error
				if err := subServer.Stop(shutdownCtx); err != nil {
					errs = append(errs, err)
				}
				if hookLn != nil {
					if err := hookServer.Stop(shutdownCtx); err != nil {
						errs = append(errs, err)
					}
				}
				return errors.Join(errs...)
			})

			if err := eg.Wait(); err != nil {
				return err
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}

const advisoryPushChannelDegraded = "push-channel-degraded"

// bindHook binds the push channel. A busy port is not fatal: it returns a nil
// listener and records a standing advisory, leaving reference log watching as
// the only detection channel.
func bindHook(ctx context.Context, srv *controller.Server, dispatcher interfaces.DispatcherUseCase) (net.Listener, error) {
	ln, err := srv.Listen()
	if err == nil {
		return ln, nil
	}
	if !errors.Is(err, types.ErrPortInUse) {
		return nil, goerr.Wrap(err, "failed to bind push channel")
	}

	ctxlog.From(ctx).Warn("Push channel disabled", "addr", srv.Addr, "error", err)
	dispatcher.AdvisoryOnce(ctx, advisoryPushChannelDegraded, model.SeverityWarning,
		fmt.Sprintf("Push channel unavailable (%s in use); relying on reference log watching only", srv.Addr))
	return nil, nil
}
