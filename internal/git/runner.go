package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Runner abstracts executing git. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, dir string, env []string, args ...string) (string, error)
}

// CommandError is returned when git exits unsuccessfully. Stderr holds the
// tool's own message, trimmed and with credentials redacted.
type CommandError struct {
	Args   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("git %s: %s", e.Args, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner executes the configured git binary, bounding every call by
// Timeout when it is positive.
type ExecRunner struct {
	GitBin  string
	Timeout time.Duration
}

func NewExecRunner(gitBin string, timeout time.Duration) *ExecRunner {
	if strings.TrimSpace(gitBin) == "" {
		gitBin = "git"
	}
	return &ExecRunner{GitBin: gitBin, Timeout: timeout}
}

func (e *ExecRunner) Run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.GitBin, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var out bytes.Buffer
	var errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(errb.String())
		if msg == "" {
			msg = strings.TrimSpace(out.String())
		}
		if ctx.Err() != nil {
			msg = strings.TrimSpace(msg + " (" + ctx.Err().Error() + ")")
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", &CommandError{Args: sanitizeArgs(args), Stderr: redactTokens(msg), Err: err}
	}
	return out.String(), nil
}

var safeArg = regexp.MustCompile(`^[a-z][a-z-]*$`)

// sanitizeArgs keeps at most the first two subcommand tokens that look like
// plain words so paths and URLs never reach error messages.
func sanitizeArgs(args []string) string {
	if len(args) == 0 {
		return "<no-args>"
	}
	words := make([]string, 0, 2)
	for _, a := range args {
		if !safeArg.MatchString(a) {
			break
		}
		words = append(words, a)
		if len(words) == 2 {
			break
		}
	}
	if len(words) == 0 {
		return "<redacted>"
	}
	return strings.Join(words, " ")
}

var (
	credentialURL = regexp.MustCompile(`https?://[^\s@]+@`)
	secretParam   = regexp.MustCompile(`(?i)(token|secret|password|passwd|bearer)=[^\s]+`)
)

func redactTokens(s string) string {
	s = credentialURL.ReplaceAllString(s, "https://<redacted>@")
	s = secretParam.ReplaceAllString(s, "$1=<redacted>")
	return s
}
