package model

import (
	"path/filepath"
	"sync"
)

// Session is the authoritative in-memory state of one selected repository.
// commits and knownIDs are only mutated through NewSession and Append.
type Session struct {
	repositoryPath string
	truncated      bool

	mu       sync.RWMutex
	commits  []*CommitRecord
	knownIDs map[string]struct{}
}

// NewSession creates a session from a baseline. Duplicate ids in the baseline
// are kept once, in first-seen order.
func NewSession(repositoryPath string, baseline []*CommitRecord, truncated bool) *Session {
	s := &Session{
		repositoryPath: filepath.Clean(repositoryPath),
		truncated:      truncated,
		commits:        make([]*CommitRecord, 0, len(baseline)),
		knownIDs:       make(map[string]struct{}, len(baseline)),
	}
	for _, c := range baseline {
		s.appendLocked(c)
	}
	return s
}

// RepositoryPath returns the canonical path of the session's repository
func (s *Session) RepositoryPath() string {
	return s.repositoryPath
}

// Truncated reports whether the baseline hit the load limit
func (s *Session) Truncated() bool {
	return s.truncated
}

// Owns reports whether path refers to this session's repository
func (s *Session) Owns(path string) bool {
	return filepath.Clean(path) == s.repositoryPath
}

// Has reports whether a commit id is already known
func (s *Session) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.knownIDs[id]
	return ok
}

// Append adds a commit unless its id is already known. The check and the
// append happen under one lock; false means the commit was a duplicate.
func (s *Session) Append(c *CommitRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(c)
}

func (s *Session) appendLocked(c *CommitRecord) bool {
	if c == nil || c.ID == "" {
		return false
	}
	if _, ok := s.knownIDs[c.ID]; ok {
		return false
	}
	s.knownIDs[c.ID] = struct{}{}
	s.commits = append(s.commits, c)
	return true
}

// Len returns the number of known commits
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.commits)
}

// Commits returns a copy of the commit sequence in discovery order
func (s *Session) Commits() []*CommitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CommitRecord, len(s.commits))
	copy(out, s.commits)
	return out
}

// Baseline returns the current state as a subscriber baseline
func (s *Session) Baseline() *Baseline {
	return &Baseline{
		RepositoryPath: s.repositoryPath,
		Commits:        s.Commits(),
		Truncated:      s.truncated,
	}
}
