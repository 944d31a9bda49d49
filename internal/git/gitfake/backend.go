// Package gitfake provides an in-memory git.Backend that records calls.
package gitfake

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"repodeck/internal/git"
)

// Call is one recorded backend invocation
type Call struct {
	Method string
	Args   []string
}

func (c Call) String() string {
	return c.Method + "(" + strings.Join(c.Args, ", ") + ")"
}

// Backend answers reads from its fields and records every call. Set
// FailApplyAt to make the n-th ApplyPatch call (1-based) fail.
type Backend struct {
	mu sync.Mutex

	Files   []git.FileStatus
	Commits []git.Commit
	Diffs   map[string]string

	FailApplyAt int
	ApplyErr    error
	AddErr      error
	FixupErr    error
	RebaseErr   error
	StatusErr   error
	LogErr      error
	DiffErr     error
	ResolveErr  error

	Calls   []Call
	Patches []string
	applies int
}

func New() *Backend {
	return &Backend{Diffs: map[string]string{}}
}

func (b *Backend) record(method string, args ...string) {
	b.Calls = append(b.Calls, Call{Method: method, Args: args})
}

// Methods returns the recorded method names in order
func (b *Backend) Methods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.Calls))
	for i, c := range b.Calls {
		out[i] = c.Method
	}
	return out
}

// CallsTo returns the recorded calls of one method
func (b *Backend) CallsTo(method string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (b *Backend) Status(ctx context.Context, repoPath string) ([]git.FileStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Status", repoPath)
	return b.Files, b.StatusErr
}

func (b *Backend) Log(ctx context.Context, repoPath string, maxCount int) ([]git.Commit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Log", repoPath, fmt.Sprint(maxCount))
	if b.LogErr != nil {
		return nil, b.LogErr
	}
	if maxCount < len(b.Commits) {
		return b.Commits[:maxCount], nil
	}
	return b.Commits, nil
}

func (b *Backend) Diff(ctx context.Context, repoPath, filePath string, staged bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Diff", repoPath, filePath, fmt.Sprint(staged))
	return b.Diffs[filePath], b.DiffErr
}

// ApplyPatch reads the patch file so tests can inspect exactly what git
// would have received.
func (b *Backend) ApplyPatch(ctx context.Context, repoPath, patchFile string, cached bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ApplyPatch", repoPath, patchFile, fmt.Sprint(cached))
	b.applies++

	data, err := os.ReadFile(patchFile)
	if err != nil {
		return err
	}
	if b.FailApplyAt > 0 && b.applies == b.FailApplyAt {
		if b.ApplyErr != nil {
			return b.ApplyErr
		}
		return &git.CommandError{Args: "apply", Stderr: "error: patch does not apply"}
	}
	b.Patches = append(b.Patches, string(data))
	return nil
}

func (b *Backend) AddFile(ctx context.Context, repoPath, filePath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("AddFile", repoPath, filePath)
	return b.AddErr
}

// ResolveCommit expands a Commits entry's short hash; any other rev is
// returned unchanged.
func (b *Backend) ResolveCommit(ctx context.Context, repoPath, rev string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ResolveCommit", repoPath, rev)
	if b.ResolveErr != nil {
		return "", b.ResolveErr
	}
	for _, c := range b.Commits {
		if c.ShortHash == rev || c.Hash == rev {
			return c.Hash, nil
		}
	}
	return rev, nil
}

func (b *Backend) CommitFixup(ctx context.Context, repoPath, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CommitFixup", repoPath, target)
	return b.FixupErr
}

func (b *Backend) RebaseAutosquash(ctx context.Context, repoPath, base string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("RebaseAutosquash", repoPath, base)
	return b.RebaseErr
}

var _ git.Backend = (*Backend)(nil)
