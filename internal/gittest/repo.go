// Package gittest provides throwaway git repositories for tests.
package gittest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Repo is a temporary git repository rooted at Dir
type Repo struct {
	Dir string
	t   testing.TB
}

// Require skips the test when git is not on PATH
func Require(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in PATH")
	}
}

// New initializes an empty repository on branch main
func New(t testing.TB) *Repo {
	t.Helper()
	Require(t)

	r := &Repo{Dir: t.TempDir(), t: t}
	r.Git("init", "-q")
	r.Git("symbolic-ref", "HEAD", "refs/heads/main")
	r.Git("config", "user.email", "test@test.local")
	r.Git("config", "user.name", "Test User")
	r.Git("config", "commit.gpgsign", "false")
	return r
}

// Git runs git in the repository and returns trimmed combined output
func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

// Write replaces the content of name, creating parent directories
func (r *Repo) Write(name, content string) {
	r.t.Helper()
	path := filepath.Join(r.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		r.t.Fatalf("write %s: %v", name, err)
	}
}

// Read returns the working-tree content of name
func (r *Repo) Read(name string) string {
	r.t.Helper()
	data, err := os.ReadFile(filepath.Join(r.Dir, name))
	if err != nil {
		r.t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

// Commit writes name with content, stages it and commits with message.
// It returns the new commit hash.
func (r *Repo) Commit(name, content, message string) string {
	r.t.Helper()
	r.Write(name, content)
	r.Git("add", "--", name)
	r.Git("commit", "-q", "-m", message)
	return r.Git("rev-parse", "HEAD")
}

// Show returns the content of name at rev
func (r *Repo) Show(rev, name string) string {
	r.t.Helper()
	return r.Git("show", rev+":"+name)
}

// Count returns the number of commits reachable from HEAD
func (r *Repo) Count() string {
	r.t.Helper()
	return r.Git("rev-list", "--count", "HEAD")
}

// Numbered returns "1\n2\n...\nn\n", handy for producing multi-hunk diffs
func Numbered(n int, edits map[int]string) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		line := strconv.Itoa(i)
		if v, ok := edits[i]; ok {
			line = v
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
