package interfaces

import (
	"context"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

// TrackerUseCase defines the session controller operations exposed to controllers
type TrackerUseCase interface {
	// SelectRepository loads a repository and makes it the active session
	SelectRepository(ctx context.Context, path string) error

	// HandleSignal normalizes a raw signal against the active session
	HandleSignal(ctx context.Context, sig *model.RawSignal)

	// ActiveRepository returns the active repository path, or "" if none
	ActiveRepository() string

	// Snapshot returns the active session's baseline
	Snapshot() (*model.Baseline, error)

	// RequestBaseline sends the active session's baseline to one subscriber
	RequestBaseline(ctx context.Context, subscriberID string) error
}

// Subscriber receives dispatched messages. Deliver must not block.
type Subscriber interface {
	ID() string
	Deliver(msg *model.Message) error
}

// DispatcherUseCase fans messages out to subscribers
type DispatcherUseCase interface {
	Subscribe(sub Subscriber)
	Unsubscribe(id string)
	EmitBaseline(ctx context.Context, baseline *model.Baseline)
	EmitChange(ctx context.Context, event *model.ChangeEvent)
	EmitAdvisory(ctx context.Context, severity model.Severity, message string)
	AdvisoryOnce(ctx context.Context, key string, severity model.Severity, message string)
	SendTo(ctx context.Context, subscriberID string, msg *model.Message) error

	// Notices returns the advisories recorded by AdvisoryOnce
	Notices() []*model.Advisory

	// SendNotices replays the recorded notices to one subscriber
	SendNotices(ctx context.Context, subscriberID string) error
}
