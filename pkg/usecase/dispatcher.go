package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/utils/async"
)

// Dispatcher broadcasts messages to subscribers. All deliveries go through one
// lock so every subscriber observes the emission order. Messages emitted while
// nobody is subscribed are dropped, never replayed.
type Dispatcher struct {
	mu          sync.Mutex
	subscribers map[string]interfaces.Subscriber
	order       []string
	advised     map[string]struct{}
	notices     []*model.Advisory
	notifiers   []interfaces.AdvisoryNotifier
	jobs        async.Group
}

// DispatcherOption is a functional option for Dispatcher configuration
type DispatcherOption func(*Dispatcher)

// WithNotifier forwards warning and error advisories to an external sink
func WithNotifier(n interfaces.AdvisoryNotifier) DispatcherOption {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifiers = append(d.notifiers, n)
		}
	}
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		subscribers: make(map[string]interfaces.Subscriber),
		advised:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers a subscriber. A subscriber with the same ID is replaced.
func (d *Dispatcher) Subscribe(sub interfaces.Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.subscribers[sub.ID()]; !ok {
		d.order = append(d.order, sub.ID())
	}
	d.subscribers[sub.ID()] = sub
}

// Unsubscribe removes a subscriber
func (d *Dispatcher) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(id)
}

// SubscriberCount returns the number of registered subscribers
func (d *Dispatcher) SubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers)
}

func (d *Dispatcher) removeLocked(id string) {
	if _, ok := d.subscribers[id]; !ok {
		return
	}
	delete(d.subscribers, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// broadcast delivers msg to every subscriber, dropping those that fail
func (d *Dispatcher) broadcast(ctx context.Context, msg *model.Message) {
	logger := ctxlog.From(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.order) == 0 {
		logger.Debug("No subscribers, message dropped", "type", msg.Type)
		return
	}

	var failed []string
	for _, id := range d.order {
		if err := d.subscribers[id].Deliver(msg); err != nil {
			logger.Warn("Failed to deliver message, unsubscribing",
				"subscriber", id,
				"type", msg.Type,
				"error", err,
			)
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		d.removeLocked(id)
	}
}

// EmitBaseline sends a repository baseline to all subscribers
func (d *Dispatcher) EmitBaseline(ctx context.Context, baseline *model.Baseline) {
	d.broadcast(ctx, &model.Message{
		Type:     model.MessageTypeBaseline,
		Baseline: baseline,
	})
}

// EmitChange sends one change event to all subscribers. Events missing the
// fields their kind requires are dropped.
func (d *Dispatcher) EmitChange(ctx context.Context, event *model.ChangeEvent) {
	if !event.Valid() {
		ctxlog.From(ctx).Warn("Dropping malformed change event",
			"kind", event.Kind,
			"source", event.Source,
			"repository", event.RepositoryPath,
		)
		return
	}
	d.broadcast(ctx, &model.Message{
		Type:   model.MessageTypeChange,
		Change: event,
	})
}

// EmitAdvisory sends a user-facing notice to all subscribers
func (d *Dispatcher) EmitAdvisory(ctx context.Context, severity model.Severity, message string) {
	logger := ctxlog.From(ctx)
	logger.Log(ctx, severityLevel(severity), "Advisory", "severity", severity, "message", message)

	advisory := &model.Advisory{Severity: severity, Message: message}
	d.broadcast(ctx, &model.Message{
		Type:     model.MessageTypeAdvisory,
		Advisory: advisory,
	})

	if severity == model.SeverityInfo {
		return
	}
	for _, n := range d.notifiers {
		d.jobs.Go(ctx, "notify-advisory", func(ctx context.Context) error {
			return n.Notify(ctx, advisory)
		})
	}
}

// Wait blocks until forwarded advisories are handed to their notifiers or
// timeout expires
func (d *Dispatcher) Wait(timeout time.Duration) bool {
	return d.jobs.Wait(timeout)
}

// AdvisoryOnce emits an advisory only the first time key is seen. The
// advisory is kept as a standing notice for subscribers that connect later.
func (d *Dispatcher) AdvisoryOnce(ctx context.Context, key string, severity model.Severity, message string) {
	d.mu.Lock()
	if _, ok := d.advised[key]; ok {
		d.mu.Unlock()
		return
	}
	d.advised[key] = struct{}{}
	d.notices = append(d.notices, &model.Advisory{Severity: severity, Message: message})
	d.mu.Unlock()

	d.EmitAdvisory(ctx, severity, message)
}

// Notices returns the standing notices recorded by AdvisoryOnce
func (d *Dispatcher) Notices() []*model.Advisory {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*model.Advisory(nil), d.notices...)
}

// SendNotices replays the standing notices to one subscriber
func (d *Dispatcher) SendNotices(ctx context.Context, subscriberID string) error {
	for _, notice := range d.Notices() {
		if err := d.SendTo(ctx, subscriberID, &model.Message{
			Type:     model.MessageTypeAdvisory,
			Advisory: notice,
		}); err != nil {
			return err
		}
	}
	return nil
}

// SendTo delivers a message to a single subscriber, ordered with broadcasts
func (d *Dispatcher) SendTo(ctx context.Context, subscriberID string, msg *model.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub, ok := d.subscribers[subscriberID]
	if !ok {
		return goerr.New("subscriber not found", goerr.V("subscriber", subscriberID))
	}
	if err := sub.Deliver(msg); err != nil {
		d.removeLocked(subscriberID)
		return goerr.Wrap(err, "failed to deliver message", goerr.V("subscriber", subscriberID))
	}
	return nil
}

func severityLevel(s model.Severity) slog.Level {
	switch s {
	case model.SeverityError:
		return slog.LevelError
	case model.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
