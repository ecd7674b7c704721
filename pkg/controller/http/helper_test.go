package http_test

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

// mockTracker is a hand-written TrackerUseCase
type mockTracker struct {
	dispatcher interfaces.DispatcherUseCase
	repos      map[string]*model.Baseline

	mu       sync.Mutex
	active   *model.Baseline
	selected []string
	signals  []*model.RawSignal
}

func newMockTracker(d interfaces.DispatcherUseCase) *mockTracker {
	return &mockTracker{
		dispatcher: d,
		repos:      map[string]*model.Baseline{},
	}
}

func (m *mockTracker) SelectRepository(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = append(m.selected, path)
	b, ok := m.repos[path]
	if !ok {
		return goerr.Wrap(types.ErrNotAGitRepository, "mock", goerr.V("path", path))
	}
	m.active = b
	if m.dispatcher != nil {
		m.dispatcher.EmitBaseline(ctx, b)
	}
	return nil
}

func (m *mockTracker) HandleSignal(ctx context.Context, sig *model.RawSignal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, sig)
}

func (m *mockTracker) ActiveRepository() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.RepositoryPath
}

func (m *mockTracker) Snapshot() (*model.Baseline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, goerr.Wrap(types.ErrNoActiveRepository, "mock")
	}
	return m.active, nil
}

func (m *mockTracker) RequestBaseline(ctx context.Context, subscriberID string) error {
	b, err := m.Snapshot()
	if err != nil {
		return err
	}
	return m.dispatcher.SendTo(ctx, subscriberID, &model.Message{
		Type:     model.MessageTypeBaseline,
		Baseline: b,
	})
}

func (m *mockTracker) Signals() []*model.RawSignal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.RawSignal(nil), m.signals...)
}

func (m *mockTracker) Selected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.selected...)
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
