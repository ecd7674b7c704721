package model

// MessageType names a subscriber channel message
type MessageType string

const (
	MessageTypeBaseline MessageType = "baseline"
	MessageTypeChange   MessageType = "change"
	MessageTypeAdvisory MessageType = "advisory"
)

// Severity of an advisory notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Baseline is the full (possibly truncated) commit snapshot of a repository
type Baseline struct {
	RepositoryPath string          `json:"repository_path"`
	Commits        []*CommitRecord `json:"commits"`
	Truncated      bool            `json:"truncated"`
}

// Advisory is a user-facing informational notice
type Advisory struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Message is the envelope sent over the subscriber channel
type Message struct {
	Type     MessageType  `json:"type"`
	Baseline *Baseline    `json:"baseline,omitempty"`
	Change   *ChangeEvent `json:"change,omitempty"`
	Advisory *Advisory    `json:"advisory,omitempty"`
}

// ClientRequestType names a request sent by a subscriber
type ClientRequestType string

const (
	RequestBaseline         ClientRequestType = "request-baseline"
	RequestSelectRepository ClientRequestType = "select-repository"
)

// ClientRequest is an inbound subscriber channel message
type ClientRequest struct {
	Type ClientRequestType `json:"type"`
	Path string            `json:"path,omitempty"`
}
