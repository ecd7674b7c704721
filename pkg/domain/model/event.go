package model

import "time"

// ChangeKind is the type of a repository change
type ChangeKind string

const (
	ChangeKindCommit   ChangeKind = "commit"
	ChangeKindMerge    ChangeKind = "merge"
	ChangeKindCheckout ChangeKind = "checkout"
	ChangeKindPush     ChangeKind = "push"
	ChangeKindUnknown  ChangeKind = "unknown"
)

// ParseChangeKind converts a push channel event name into a ChangeKind.
// Only the four actionable kinds are accepted.
func ParseChangeKind(s string) (ChangeKind, bool) {
	switch k := ChangeKind(s); k {
	case ChangeKindCommit, ChangeKindMerge, ChangeKindCheckout, ChangeKindPush:
		return k, true
	default:
		return ChangeKindUnknown, false
	}
}

// SignalSource identifies the detection channel that produced a RawSignal
type SignalSource string

const (
	SourcePushChannel SignalSource = "push-channel"
	SourceLogTail     SignalSource = "log-tail"
)

// RawSignal is an un-normalized change notification from one detection channel.
// It lives for a single detection cycle only.
type RawSignal struct {
	Source         SignalSource
	RepositoryPath string
	Kind           ChangeKind
	Action         string // action label as reported by the source
	OldHash        string
	NewHash        string
	Ref            string
	Remote         string
	Branch         string
	Message        string
}

// RemoteBranch identifies a pushed branch
type RemoteBranch struct {
	Remote string `json:"remote"`
	Branch string `json:"branch"`
}

// ChangeEvent is a canonical, typed repository change delivered to subscribers
type ChangeEvent struct {
	Kind           ChangeKind    `json:"kind"`
	Commit         *CommitRecord `json:"commit,omitempty"`
	Ref            string        `json:"ref,omitempty"`
	RemoteBranch   *RemoteBranch `json:"remote_branch,omitempty"`
	RepositoryPath string        `json:"repository_path"`
	Source         SignalSource  `json:"source"`
	DetectedAt     time.Time     `json:"detected_at"`
}

// Valid reports whether the payload shape matches the kind
func (e *ChangeEvent) Valid() bool {
	switch e.Kind {
	case ChangeKindCommit, ChangeKindMerge:
		return e.Commit != nil && e.Ref == "" && e.RemoteBranch == nil
	case ChangeKindCheckout:
		return e.Ref != "" && e.RemoteBranch == nil
	case ChangeKindPush:
		return e.Commit == nil && e.Ref == "" && e.RemoteBranch != nil
	default:
		return false
	}
}
