package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"repodeck/internal/gittest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner captures invocations and fails those whose joined
// arguments appear in fail.
type recordingRunner struct {
	calls [][]string
	envs  [][]string
	fail  map[string]error
}

func (r *recordingRunner) Run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	r.calls = append(r.calls, args)
	r.envs = append(r.envs, env)
	if err, ok := r.fail[strings.Join(args, " ")]; ok {
		return "", err
	}
	return "", nil
}

func TestRebaseAutosquash_Args(t *testing.T) {
	r := &recordingRunner{}
	b := NewExecBackendWithRunner(r)

	require.NoError(t, b.RebaseAutosquash(context.Background(), "/repo", "abc1234^"))

	require.Len(t, r.calls, 2)
	assert.Equal(t, []string{"rev-parse", "--verify", "--quiet", "abc1234^^{commit}"}, r.calls[0])
	assert.Equal(t, []string{"rebase", "-i", "--autosquash", "--autostash", "abc1234^"}, r.calls[1])
	assert.Contains(t, r.envs[1], "GIT_SEQUENCE_EDITOR=true")
}

func TestRebaseAutosquash_RootFallback(t *testing.T) {
	r := &recordingRunner{fail: map[string]error{
		"rev-parse --verify --quiet abc1234^^{commit}": errors.New("no parent"),
	}}
	b := NewExecBackendWithRunner(r)

	require.NoError(t, b.RebaseAutosquash(context.Background(), "/repo", "abc1234^"))

	last := r.calls[len(r.calls)-1]
	assert.Equal(t, []string{"rebase", "-i", "--autosquash", "--autostash", "--root"}, last)
}

func TestRebaseAutosquash_UnknownCommit(t *testing.T) {
	r := &recordingRunner{fail: map[string]error{
		"rev-parse --verify --quiet nope^^{commit}": errors.New("bad"),
		"rev-parse --verify --quiet nope^{commit}":  errors.New("bad"),
	}}
	b := NewExecBackendWithRunner(r)

	err := b.RebaseAutosquash(context.Background(), "/repo", "nope^")
	require.Error(t, err)
	assert.Len(t, r.calls, 2, "rebase must not run")
}

func TestExecBackend_Repository(t *testing.T) {
	repo := gittest.New(t)
	first := repo.Commit("a.txt", gittest.Numbered(20, nil), "initial")
	repo.Commit("b.txt", "b\n", "add b")

	repo.Write("a.txt", gittest.Numbered(20, map[int]string{2: "TWO", 18: "EIGHTEEN"}))
	repo.Write("c.txt", "new\n")

	ctx := context.Background()
	b := NewExecBackend("", 10*time.Second)

	t.Run("Status", func(t *testing.T) {
		files, err := b.Status(ctx, repo.Dir)
		require.NoError(t, err)
		assert.ElementsMatch(t, []FileStatus{
			{Path: "a.txt", Status: StatusModified},
			{Path: "c.txt", Status: StatusCreated},
		}, files)
	})

	t.Run("Log", func(t *testing.T) {
		commits, err := b.Log(ctx, repo.Dir, 10)
		require.NoError(t, err)
		require.Len(t, commits, 2)
		assert.Equal(t, "add b", commits[0].Message)
		assert.Equal(t, first, commits[1].Hash)
		assert.Equal(t, first[:7], commits[1].ShortHash)
		assert.Equal(t, "Test User", commits[1].Author)
		assert.Contains(t, commits[0].Refs, "main")

		one, err := b.Log(ctx, repo.Dir, 1)
		require.NoError(t, err)
		assert.Len(t, one, 1)
	})

	t.Run("Diff", func(t *testing.T) {
		out, err := b.Diff(ctx, repo.Dir, "a.txt", false)
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(out, "\n@@ "))

		staged, err := b.Diff(ctx, repo.Dir, "a.txt", true)
		require.NoError(t, err)
		assert.Empty(t, staged)
	})

	t.Run("ApplyPatchCached", func(t *testing.T) {
		patch := "diff --git a/b.txt b/b.txt\n--- a/b.txt\n+++ b/b.txt\n@@ -1 +1 @@\n-b\n+B\n"
		file := filepath.Join(t.TempDir(), "p.patch")
		require.NoError(t, os.WriteFile(file, []byte(patch), 0o600))

		require.NoError(t, b.ApplyPatch(ctx, repo.Dir, file, true))
		assert.Equal(t, "B", repo.Git("show", ":b.txt"))
		assert.Equal(t, "b\n", repo.Read("b.txt"), "working tree untouched")

		err := b.ApplyPatch(ctx, repo.Dir, file, true)
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, "apply", cmdErr.Args)
		assert.NotEmpty(t, cmdErr.Stderr)
		repo.Git("reset", "-q")
	})

	t.Run("ResolveCommit", func(t *testing.T) {
		hash, err := b.ResolveCommit(ctx, repo.Dir, "HEAD~1")
		require.NoError(t, err)
		assert.Equal(t, first, hash)

		hash, err = b.ResolveCommit(ctx, repo.Dir, first[:7])
		require.NoError(t, err)
		assert.Equal(t, first, hash)

		_, err = b.ResolveCommit(ctx, repo.Dir, "no-such-rev")
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
	})

	t.Run("NotARepository", func(t *testing.T) {
		_, err := b.Status(ctx, t.TempDir())
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Contains(t, cmdErr.Stderr, "not a git repository")
	})
}

func TestExecBackend_FixupAndRebase(t *testing.T) {
	repo := gittest.New(t)
	target := repo.Commit("a.txt", "one\ntwo\n", "add a")
	repo.Commit("b.txt", "b\n", "add b")

	repo.Write("a.txt", "one\ntwo\nthree\n")

	ctx := context.Background()
	b := NewExecBackend("", 30*time.Second)

	require.NoError(t, b.AddFile(ctx, repo.Dir, "a.txt"))
	require.NoError(t, b.CommitFixup(ctx, repo.Dir, target))
	assert.Equal(t, "fixup! add a", repo.Git("log", "-1", "--format=%s"))

	require.NoError(t, b.RebaseAutosquash(ctx, repo.Dir, target+"^"))

	assert.Equal(t, "2", repo.Count())
	assert.Equal(t, "one\ntwo\nthree", repo.Show("HEAD~1", "a.txt"))
	assert.Equal(t, "add a", repo.Git("log", "-1", "--format=%s", "HEAD~1"))
}

func TestExecBackend_RebaseRootCommit(t *testing.T) {
	repo := gittest.New(t)
	root := repo.Commit("a.txt", "one\n", "root")
	repo.Commit("b.txt", "b\n", "second")

	repo.Write("a.txt", "one\nmore\n")

	ctx := context.Background()
	b := NewExecBackend("", 30*time.Second)
	require.NoError(t, b.AddFile(ctx, repo.Dir, "a.txt"))
	require.NoError(t, b.CommitFixup(ctx, repo.Dir, root))
	require.NoError(t, b.RebaseAutosquash(ctx, repo.Dir, root+"^"))

	assert.Equal(t, "2", repo.Count())
	assert.Equal(t, "one\nmore", repo.Show("HEAD~1", "a.txt"))
}

func TestGoGitBackend_LogMatchesExec(t *testing.T) {
	repo := gittest.New(t)
	repo.Commit("a.txt", "a\n", "first")
	repo.Commit("a.txt", "aa\n", "second\n\nwith a body")
	repo.Git("tag", "v1")

	ctx := context.Background()
	exec := NewExecBackend("", 10*time.Second)
	gg := NewGoGitBackend(exec)

	want, err := exec.Log(ctx, repo.Dir, 5)
	require.NoError(t, err)
	got, err := gg.Log(ctx, repo.Dir, 5)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Hash, got[i].Hash)
		assert.Equal(t, want[i].ShortHash, got[i].ShortHash)
		assert.Equal(t, want[i].Message, got[i].Message)
		assert.Equal(t, want[i].Author, got[i].Author)
	}
	assert.Contains(t, got[0].Refs, "HEAD -> main")
	assert.Contains(t, got[0].Refs, "tag: v1")

	limited, err := gg.Log(ctx, repo.Dir, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = gg.Log(ctx, repo.Dir, 0)
	assert.Error(t, err)
}
