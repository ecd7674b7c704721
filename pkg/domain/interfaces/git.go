package interfaces

import (
	"context"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

// RepositoryReader defines read-only queries against a git repository
type RepositoryReader interface {
	// Validate reports whether path contains a repository marker directory
	Validate(path string) bool

	// LoadBaseline returns up to limit most recent commits across all refs
	LoadBaseline(ctx context.Context, repoPath string, limit int) ([]*model.CommitRecord, error)

	// LoadOne returns the commit for a known hash
	LoadOne(ctx context.Context, repoPath, hash string) (*model.CommitRecord, error)
}
