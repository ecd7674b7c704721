package git_test

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/gitpulse/pkg/domain/types"
	"github.com/m-mizutani/gitpulse/pkg/infra/git"
)

// initRepo creates a real repository with linear commits c1..cN
func initRepo(t *testing.T, subjects ...string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{
			"-c", "user.name=Jane",
			"-c", "user.email=j@x.com",
			"-c", "commit.gpgsign=false",
		}, args...)...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}

	run("init", "-q")
	for _, s := range subjects {
		run("commit", "-q", "--allow-empty", "-m", s)
	}
	return dir
}

func TestReader_ExecGit(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t, "c1", "c2", "c3 | with || pipes")
	r := git.New()

	commits, err := r.LoadBaseline(ctx, repo, git.DefaultLimit)
	gt.NoError(t, err)
	gt.Number(t, len(commits)).Equal(3)
	gt.Value(t, commits[0].Subject).Equal("c3 | with || pipes")
	gt.Value(t, commits[2].Subject).Equal("c1")
	gt.Value(t, commits[0].Author).Equal("Jane")
	gt.Value(t, commits[0].AuthorEmail).Equal("j@x.com")
	gt.Value(t, commits[0].ParentIDs).Equal([]string{commits[1].ID})
	gt.True(t, commits[2].IsRoot())
	gt.True(t, contains(commits[0].Decorations, "HEAD"))

	one, err := r.LoadOne(ctx, repo, commits[1].ID[:10])
	gt.NoError(t, err)
	gt.Value(t, one.ID).Equal(commits[1].ID)

	_, err = r.LoadOne(ctx, repo, strings.Repeat("0", 40))
	gt.True(t, errors.Is(err, types.ErrCommitNotFound))

	limited, err := r.LoadBaseline(ctx, repo, 2)
	gt.NoError(t, err)
	gt.Number(t, len(limited)).Equal(2)
	gt.Value(t, limited[0].ID).Equal(commits[0].ID)
}
