package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

// Notifier reports advisories to Sentry as messages
type Notifier struct {
	hub *sentry.Hub
}

// New creates a Notifier. The DSN is required; extra client options such as
// BeforeSend may be supplied through configure.
func New(dsn, environment string, configure ...func(*sentry.ClientOptions)) (*Notifier, error) {
	opts := sentry.ClientOptions{
		Dsn:         dsn,
		Release:     "gitpulse@" + types.Version,
		Environment: environment,
	}
	for _, f := range configure {
		f(&opts)
	}

	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Sentry client")
	}
	return &Notifier{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Notify captures one advisory
func (n *Notifier) Notify(ctx context.Context, advisory *model.Advisory) error {
	n.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level(advisory.Severity))
		scope.SetTag("severity", string(advisory.Severity))
		n.hub.CaptureMessage(advisory.Message)
	})
	return nil
}

// Flush waits for buffered events to be sent
func (n *Notifier) Flush(timeout time.Duration) bool {
	return n.hub.Flush(timeout)
}

func level(s model.Severity) sentry.Level {
	switch s {
	case model.SeverityError:
		return sentry.LevelError
	case model.SeverityWarning:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
