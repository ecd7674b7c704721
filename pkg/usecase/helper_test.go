package usecase_test

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

// MockReader is a mock implementation of RepositoryReader
type MockReader struct {
	mu         sync.Mutex
	repos      map[string][]*model.CommitRecord // baseline per repository
	commits    map[string]*model.CommitRecord   // resolvable commits by hash
	baselineFn func(ctx context.Context, repoPath string, limit int) ([]*model.CommitRecord, error)
	loadOneFn  func(ctx context.Context, repoPath, hash string) (*model.CommitRecord, error)
	loadCalls  []string
}

func newMockReader() *MockReader {
	return &MockReader{
		repos:   map[string][]*model.CommitRecord{},
		commits: map[string]*model.CommitRecord{},
	}
}

func (m *MockReader) addRepo(path string, commits ...*model.CommitRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[path] = commits
}

func (m *MockReader) addCommit(c *model.CommitRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits[c.ID] = c
}

func (m *MockReader) loadOneCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loadCalls)
}

func (m *MockReader) Validate(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.repos[path]
	return ok
}

func (m *MockReader) LoadBaseline(ctx context.Context, repoPath string, limit int) ([]*model.CommitRecord, error) {
	if m.baselineFn != nil {
		return m.baselineFn(ctx, repoPath, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	commits, ok := m.repos[repoPath]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotAGitRepository, "mock", goerr.V("path", repoPath))
	}
	if len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

func (m *MockReader) LoadOne(ctx context.Context, repoPath, hash string) (*model.CommitRecord, error) {
	m.mu.Lock()
	m.loadCalls = append(m.loadCalls, hash)
	fn := m.loadOneFn
	c, ok := m.commits[hash]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, repoPath, hash)
	}
	if !ok {
		return nil, goerr.Wrap(types.ErrCommitNotFound, "mock", goerr.V("hash", hash))
	}
	return c, nil
}

// FakeWatcher records lifecycle calls of a LogTailWatcher
type FakeWatcher struct {
	mu       sync.Mutex
	calls    []string
	startErr error
	handlers []interfaces.SignalHandler
	watching bool
	primed   *model.RawSignal
}

func (w *FakeWatcher) OnSignal(h interfaces.SignalHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

func (w *FakeWatcher) Start(ctx context.Context, repoPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "start:"+repoPath)
	if w.startErr != nil {
		return w.startErr
	}
	w.watching = true
	return nil
}

func (w *FakeWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "stop")
	w.watching = false
	return nil
}

func (w *FakeWatcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// LastSignal returns the primed signal while watching
func (w *FakeWatcher) LastSignal() *model.RawSignal {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return nil
	}
	return w.primed
}

func (w *FakeWatcher) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

// fire delivers a signal to registered handlers, as the real watcher does
func (w *FakeWatcher) fire(ctx context.Context, sig *model.RawSignal) {
	w.mu.Lock()
	handlers := append([]interfaces.SignalHandler(nil), w.handlers...)
	w.mu.Unlock()
	for _, h := range handlers {
		h(ctx, sig)
	}
}

// RecordingSubscriber stores every delivered message
type RecordingSubscriber struct {
	id   string
	fail bool

	mu       sync.Mutex
	messages []*model.Message
}

func newSubscriber(id string) *RecordingSubscriber {
	return &RecordingSubscriber{id: id}
}

func (s *RecordingSubscriber) ID() string { return s.id }

func (s *RecordingSubscriber) Deliver(msg *model.Message) error {
	if s.fail {
		return errors.New("subscriber buffer full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *RecordingSubscriber) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Message(nil), s.messages...)
}

func (s *RecordingSubscriber) ofType(t model.MessageType) []*model.Message {
	var out []*model.Message
	for _, m := range s.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (s *RecordingSubscriber) changes() []*model.ChangeEvent {
	var out []*model.ChangeEvent
	for _, m := range s.ofType(model.MessageTypeChange) {
		out = append(out, m.Change)
	}
	return out
}

func (s *RecordingSubscriber) advisories(severity model.Severity) []*model.Advisory {
	var out []*model.Advisory
	for _, m := range s.ofType(model.MessageTypeAdvisory) {
		if m.Advisory.Severity == severity {
			out = append(out, m.Advisory)
		}
	}
	return out
}

// MockNotifier records forwarded advisories
type MockNotifier struct {
	ch chan *model.Advisory
}

func (n *MockNotifier) Notify(ctx context.Context, advisory *model.Advisory) error {
	n.ch <- advisory
	return nil
}
