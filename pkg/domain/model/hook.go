package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// HookPayload is the JSON body posted to the push channel by a git hook
type HookPayload struct {
	Repo    string `json:"repo"`
	Event   string `json:"event"`
	Hash    string `json:"hash,omitempty"`
	Ref     string `json:"ref,omitempty"`
	Remote  string `json:"remote,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Message string `json:"message,omitempty"`
}

// Validate checks the required fields. Errors are client errors.
func (p *HookPayload) Validate() error {
	if p.Repo == "" {
		return goerr.New("missing required field: repo")
	}
	if p.Event == "" {
		return goerr.New("missing required field: event")
	}
	if _, ok := ParseChangeKind(p.Event); !ok {
		return goerr.New("unsupported event", goerr.V("event", p.Event))
	}
	return nil
}

// ToSignal converts a validated payload into a RawSignal
func (p *HookPayload) ToSignal() *RawSignal {
	kind, _ := ParseChangeKind(p.Event)
	return &RawSignal{
		Source:         SourcePushChannel,
		RepositoryPath: p.Repo,
		Kind:           kind,
		Action:         p.Event,
		NewHash:        p.Hash,
		Ref:            p.Ref,
		Remote:         p.Remote,
		Branch:         p.Branch,
		Message:        p.Message,
	}
}
