package slack

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

// Notifier posts advisories to a Slack incoming webhook
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// Option is a functional option for Notifier configuration
type Option func(*Notifier)

// WithHTTPClient replaces the HTTP client used to post messages
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		n.client = client
	}
}

// New creates a Notifier for webhookURL
func New(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts one advisory
func (n *Notifier) Notify(ctx context.Context, advisory *model.Advisory) error {
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("%s gitpulse %s: %s", emoji(advisory.Severity), advisory.Severity, advisory.Message),
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, msg); err != nil {
		return goerr.Wrap(err, "failed to post advisory to Slack", goerr.V("severity", advisory.Severity))
	}
	return nil
}

func emoji(s model.Severity) string {
	switch s {
	case model.SeverityError:
		return ":rotating_light:"
	case model.SeverityWarning:
		return ":warning:"
	default:
		return ":information_source:"
	}
}
