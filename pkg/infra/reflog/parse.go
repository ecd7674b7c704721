package reflog

import (
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

var (
	hashPattern     = regexp.MustCompile(`^[0-9a-fA-F]{4,64}$`)
	checkoutPattern = regexp.MustCompile(`moving from (\S+) to (\S+)`)
)

// ParseLine parses one reference log line:
//
//	<old-hash> <new-hash> <name> <<email>> <unix-time> <tz>\t<action>: <message>
//
// The returned signal has no repository path; the caller fills it in.
func ParseLine(line string) (*model.RawSignal, error) {
	header, text, ok := strings.Cut(strings.TrimRight(line, "\r\n"), "\t")
	if !ok {
		return nil, goerr.Wrap(types.ErrMalformedLogLine, "missing tab separator", goerr.V("line", line))
	}

	fields := strings.Fields(header)
	if len(fields) < 2 || !hashPattern.MatchString(fields[0]) || !hashPattern.MatchString(fields[1]) {
		return nil, goerr.Wrap(types.ErrMalformedLogLine, "missing hashes", goerr.V("line", line))
	}

	action, message, _ := strings.Cut(text, ": ")
	sig := &model.RawSignal{
		Source:  model.SourceLogTail,
		Kind:    Classify(action),
		Action:  text,
		OldHash: fields[0],
		NewHash: fields[1],
		Message: message,
	}
	if sig.Kind == model.ChangeKindCheckout {
		if m := checkoutPattern.FindStringSubmatch(text); m != nil {
			sig.Ref = m[2]
		}
	}
	return sig, nil
}

// Classify maps a reference log action label such as "commit (merge)" or
// "checkout" to a change kind.
func Classify(action string) model.ChangeKind {
	a := strings.ToLower(action)
	switch {
	case strings.Contains(a, "commit") && strings.Contains(a, "merge"):
		return model.ChangeKindMerge
	case strings.Contains(a, "commit"):
		return model.ChangeKindCommit
	case strings.Contains(a, "checkout"):
		return model.ChangeKindCheckout
	default:
		return model.ChangeKindUnknown
	}
}
