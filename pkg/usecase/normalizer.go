package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/ctxlog"

	"github.com/m-mizutani/gitpulse/pkg/domain/interfaces"
	"github.com/m-mizutani/gitpulse/pkg/domain/model"
	"github.com/m-mizutani/gitpulse/pkg/domain/types"
)

// Normalizer turns raw signals into canonical change events
type Normalizer struct {
	reader interfaces.RepositoryReader
	now    func() time.Time
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(reader interfaces.RepositoryReader) *Normalizer {
	return &Normalizer{
		reader: reader,
		now:    time.Now,
	}
}

// Normalize converts sig into at most one event against sess. A nil event with
// a nil error means the signal was dropped (duplicate, unresolvable or not
// actionable). An error is returned only for read failures.
//
// Commit and merge events are appended to sess; whichever channel appends a
// commit id first wins and later signals for it are dropped. An unknown
// action whose new hash is not in sess is treated as a commit.
func (n *Normalizer) Normalize(ctx context.Context, sess *model.Session, sig *model.RawSignal) (*model.ChangeEvent, error) {
	logger := ctxlog.From(ctx).With(
		"source", sig.Source,
		"kind", sig.Kind,
		"hash", sig.NewHash,
	)

	event := &model.ChangeEvent{
		Kind:           sig.Kind,
		RepositoryPath: sess.RepositoryPath(),
		Source:         sig.Source,
		DetectedAt:     n.now(),
	}

	switch sig.Kind {
	case model.ChangeKindCommit, model.ChangeKindMerge:
		if sig.NewHash == "" {
			logger.Debug("Dropping commit signal without hash")
			return nil, nil
		}
		return n.newCommit(ctx, sess, sig.NewHash, event)

	case model.ChangeKindCheckout:
		if sig.Ref == "" {
			logger.Debug("Dropping checkout signal without ref")
			return nil, nil
		}
		event.Ref = sig.Ref
		if sig.NewHash != "" {
			commit, err := n.lookup(ctx, sess, sig.NewHash)
			if err != nil {
				logger.Warn("Checkout target lookup failed, emitting ref only", "error", err)
			}
			event.Commit = commit
		}
		return event, nil

	case model.ChangeKindPush:
		if sig.Branch == "" {
			logger.Debug("Dropping push signal without branch")
			return nil, nil
		}
		event.RemoteBranch = &model.RemoteBranch{
			Remote: sig.Remote,
			Branch: sig.Branch,
		}
		return event, nil

	default:
		// merge, cherry-pick, rebase and pull actions may still move HEAD to
		// a commit the session has not seen
		if sig.NewHash == "" || sess.Has(sig.NewHash) {
			logger.Debug("Dropping non-actionable signal", "action", sig.Action)
			return nil, nil
		}
		event.Kind = model.ChangeKindCommit
		return n.newCommit(ctx, sess, sig.NewHash, event)
	}
}

// newCommit resolves hash and appends it to sess. The event is reported as a
// merge when the commit has two or more parents.
func (n *Normalizer) newCommit(ctx context.Context, sess *model.Session, hash string, event *model.ChangeEvent) (*model.ChangeEvent, error) {
	logger := ctxlog.From(ctx)
	if sess.Has(hash) {
		logger.Debug("Dropping known commit", "hash", hash)
		return nil, nil
	}

	commit, err := n.lookup(ctx, sess, hash)
	if err != nil || commit == nil {
		return nil, err
	}
	if !sess.Append(commit) {
		logger.Debug("Dropping commit appended by another channel", "hash", hash)
		return nil, nil
	}

	event.Commit = commit
	if commit.IsMerge() {
		event.Kind = model.ChangeKindMerge
	}
	return event, nil
}

// lookup resolves a hash; a commit that is not visible yet is tolerated
func (n *Normalizer) lookup(ctx context.Context, sess *model.Session, hash string) (*model.CommitRecord, error) {
	commit, err := n.reader.LoadOne(ctx, sess.RepositoryPath(), hash)
	if err != nil {
		if errors.Is(err, types.ErrCommitNotFound) {
			ctxlog.From(ctx).Debug("Commit not resolvable yet, dropping signal", "hash", hash, "error", err)
			return nil, nil
		}
		return nil, err
	}
	return commit, nil
}
