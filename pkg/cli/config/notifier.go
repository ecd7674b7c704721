package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/infra/sentry"
	"github.com/m-mizutani/gitpulse/pkg/infra/slack"
)

// Notifier holds external advisory sink configuration
type Notifier struct {
	SlackWebhookURL string
	SentryDSN       string
	SentryEnv       string
}

// Flags returns CLI flags for notifier configuration
func (c *Notifier) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for warning and error advisories",
			Destination: &c.SlackWebhookURL,
			Sources:     cli.EnvVars("GITPULSE_SLACK_WEBHOOK_URL"),
		},
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for warning and error advisories",
			Destination: &c.SentryDSN,
			Sources:     cli.EnvVars("GITPULSE_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Value:       "local",
			Destination: &c.SentryEnv,
			Sources:     cli.EnvVars("GITPULSE_SENTRY_ENV"),
		},
	}
}

// Configure builds the enabled notifiers. The returned flush func waits for
// buffered notifications and is safe to call when nothing is enabled.
func (c *Notifier) Configure() ([]interfaces.AdvisoryNotifier, func(), error) {
	var notifiers []interfaces.AdvisoryNotifier
	flush := func() {}

	if c.SlackWebhookURL != "" {
		notifiers = append(notifiers, slack.New(c.SlackWebhookURL))
	}

	if c.SentryDSN != "" {
		n, err := sentry.New(c.SentryDSN, c.SentryEnv)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to configure Sentry notifier")
		}
		notifiers = append(notifiers, n)
		flush = func() { n.Flush(2 * time.Second) }
	}

	return notifiers, flush, nil
}
