package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExecBackend implements Backend using the git binary.
type ExecBackend struct {
	r Runner
}

func NewExecBackend(bin string, timeout time.Duration) *ExecBackend {
	return &ExecBackend{r: NewExecRunner(bin, timeout)}
}

// NewExecBackendWithRunner is used by tests to inject a fake runner
func NewExecBackendWithRunner(r Runner) *ExecBackend {
	return &ExecBackend{r: r}
}

func (b *ExecBackend) run(ctx context.Context, repoPath string, args ...string) (string, error) {
	return b.r.Run(ctx, repoPath, nil, args...)
}

func (b *ExecBackend) Status(ctx context.Context, repoPath string) ([]FileStatus, error) {
	out, err := b.run(ctx, repoPath, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return parseStatus(out)
}

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

func (b *ExecBackend) Log(ctx context.Context, repoPath string, maxCount int) ([]Commit, error) {
	if maxCount <= 0 {
		return nil, fmt.Errorf("max count must be positive")
	}
	format := strings.Join([]string{"%H", "%s", "%an", "%aI", "%D"}, "%x1f") + "%x1e"
	out, err := b.run(ctx, repoPath, "log", "-n", strconv.Itoa(maxCount), "--format="+format)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

func (b *ExecBackend) Diff(ctx context.Context, repoPath, filePath string, staged bool) (string, error) {
	args := []string{"diff", "--unified=3"}
	if staged {
		args = append(args, "--cached")
	}
	args = append(args, "--", filePath)
	return b.run(ctx, repoPath, args...)
}

func (b *ExecBackend) ApplyPatch(ctx context.Context, repoPath, patchFile string, cached bool) error {
	args := []string{"apply"}
	if cached {
		args = append(args, "--cached")
	}
	args = append(args, patchFile)
	_, err := b.run(ctx, repoPath, args...)
	return err
}

func (b *ExecBackend) AddFile(ctx context.Context, repoPath, filePath string) error {
	_, err := b.run(ctx, repoPath, "add", "--", filePath)
	return err
}

func (b *ExecBackend) ResolveCommit(ctx context.Context, repoPath, rev string) (string, error) {
	out, err := b.run(ctx, repoPath, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (b *ExecBackend) CommitFixup(ctx context.Context, repoPath, target string) error {
	_, err := b.run(ctx, repoPath, "commit", "--fixup="+target)
	return err
}

// RebaseAutosquash accepts the generated todo list unchanged by pointing the
// sequence editor at true(1). A base of "<rev>^" where rev is a root commit
// becomes --root.
func (b *ExecBackend) RebaseAutosquash(ctx context.Context, repoPath, base string) error {
	args := []string{"rebase", "-i", "--autosquash", "--autostash"}

	onto := base
	if rev, ok := strings.CutSuffix(base, "^"); ok {
		if _, err := b.run(ctx, repoPath, "rev-parse", "--verify", "--quiet", base+"^{commit}"); err != nil {
			if _, revErr := b.run(ctx, repoPath, "rev-parse", "--verify", "--quiet", rev+"^{commit}"); revErr != nil {
				return fmt.Errorf("resolving %s: %w", rev, revErr)
			}
			onto = ""
		}
	}
	if onto == "" {
		args = append(args, "--root")
	} else {
		args = append(args, onto)
	}

	env := []string{"GIT_SEQUENCE_EDITOR=true", "GIT_EDITOR=true"}
	_, err := b.r.Run(ctx, repoPath, env, args...)
	return err
}
