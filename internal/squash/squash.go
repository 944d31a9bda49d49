// Package squash folds working-tree changes into an earlier commit: it
// stages the chosen hunks, records a fixup commit for the target and runs
// an autosquash rebase.
package squash

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"repodeck/internal/diff"
	"repodeck/internal/errors"
	"repodeck/internal/git"
	"repodeck/internal/patch"
	"repodeck/internal/stager"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseStaging Phase = "staging"
	PhaseFixup   Phase = "fixup commit"
	PhaseRebase  Phase = "rebase"
)

// Request describes one squash. With no hunks the whole file is staged.
type Request struct {
	RepoPath     string      `json:"repoPath"`
	FilePath     string      `json:"filePath"`
	TargetCommit string      `json:"targetCommit"`
	Hunks        []diff.Hunk `json:"hunks,omitempty"`
	WholeFile    bool        `json:"wholeFile,omitempty"`
}

// LogFields names the request in log entries
func (r *Request) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("repo", r.RepoPath),
		zap.String("file", r.FilePath),
		zap.String("target", r.TargetCommit),
		zap.Int("hunks", len(r.Hunks)),
	}
}

type Result struct {
	Message     string `json:"message"`
	ShortHash   string `json:"shortHash"`
	HunksStaged int    `json:"hunksStaged"`
	WholeFile   bool   `json:"wholeFile"`
}

// PhaseError reports the phase a squash stopped in. Work done by earlier
// phases, including hunks staged before a staging failure, is kept.
type PhaseError struct {
	Phase  Phase
	Staged int
	Total  int
	Err    error
}

func (e *PhaseError) Error() string {
	msg := e.Err.Error()
	var cmdErr *git.CommandError
	if stderrors.As(e.Err, &cmdErr) {
		msg = cmdErr.Stderr
	}
	out := fmt.Sprintf("%s failed: %s", e.Phase, msg)
	if e.Phase == PhaseStaging && e.Staged > 0 {
		out += fmt.Sprintf(" (%d of %d hunks staged)", e.Staged, e.Total)
	}
	return out
}

func (e *PhaseError) Unwrap() error { return e.Err }

func (e *PhaseError) FailedPhase() string { return string(e.Phase) }

// Attempt is what a Recorder receives after every squash
type Attempt struct {
	Request     Request
	HunksStaged int
	Phase       Phase // empty on success
	Error       string
	Patches     [][]byte
	At          time.Time
}

type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

type Service struct {
	backend  git.Backend
	stager   *stager.Stager
	recorder Recorder
	logger   *zap.Logger
}

func NewService(backend git.Backend, st *stager.Stager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: backend, stager: st, logger: logger}
}

// WithRecorder enables squash history
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) Squash(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	// Relative targets such as HEAD~1 move once the fixup commit exists, so
	// everything after this point uses the resolved hash.
	hash, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	req.TargetCommit = hash

	logger := s.logger.With(req.LogFields()...)

	staged, err := s.stage(ctx, req)
	if err == nil {
		if fixErr := s.backend.CommitFixup(ctx, req.RepoPath, hash); fixErr != nil {
			err = &PhaseError{Phase: PhaseFixup, Err: fixErr}
		}
	}
	if err == nil {
		if rbErr := s.backend.RebaseAutosquash(ctx, req.RepoPath, hash+"^"); rbErr != nil {
			err = &PhaseError{Phase: PhaseRebase, Err: rbErr}
		}
	}

	s.record(ctx, req, staged, err)

	if err != nil {
		logger.Warn("squash failed", zap.Int("hunks_staged", staged), zap.Error(err))
		return nil, err
	}

	short := git.ShortHash(hash)
	logger.Info("squash complete", zap.Int("hunks_staged", staged))
	return &Result{
		Message:     "Successfully squashed changes into " + short,
		ShortHash:   short,
		HunksStaged: staged,
		WholeFile:   len(req.Hunks) == 0,
	}, nil
}

func validate(req Request) error {
	var missing []string
	if req.RepoPath == "" {
		missing = append(missing, "repoPath")
	}
	if req.FilePath == "" {
		missing = append(missing, "filePath")
	}
	if req.TargetCommit == "" {
		missing = append(missing, "targetCommit")
	}
	if len(missing) > 0 {
		return errors.ValidationError("missing required fields", map[string][]string{"missing": missing})
	}
	if req.WholeFile && len(req.Hunks) > 0 {
		return errors.ValidationError("wholeFile and hunks are mutually exclusive", nil)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, req Request) (string, error) {
	hash, err := s.backend.ResolveCommit(ctx, req.RepoPath, req.TargetCommit)
	if err == nil {
		return hash, nil
	}
	var cmdErr *git.CommandError
	if stderrors.As(err, &cmdErr) {
		return "", errors.ValidationError(fmt.Sprintf("unknown target commit %q", req.TargetCommit), cmdErr.Stderr)
	}
	return "", fmt.Errorf("resolving target commit: %w", err)
}

func (s *Service) stage(ctx context.Context, req Request) (int, error) {
	if len(req.Hunks) == 0 {
		if err := s.stager.StageFile(ctx, req.RepoPath, req.FilePath); err != nil {
			return 0, &PhaseError{Phase: PhaseStaging, Err: err}
		}
		return 0, nil
	}

	staged, err := s.stager.StageHunks(ctx, req.RepoPath, req.FilePath, req.Hunks)
	if err != nil {
		return staged, &PhaseError{Phase: PhaseStaging, Staged: staged, Total: len(req.Hunks), Err: err}
	}
	return staged, nil
}

func (s *Service) record(ctx context.Context, req Request, staged int, err error) {
	if s.recorder == nil {
		return
	}

	a := Attempt{Request: req, HunksStaged: staged, At: time.Now().UTC()}
	if err != nil {
		a.Error = err.Error()
		var pe *PhaseError
		if stderrors.As(err, &pe) {
			a.Phase = pe.Phase
		}
	}
	for _, h := range req.Hunks {
		if doc, synthErr := patch.Synthesize(req.FilePath, h); synthErr == nil {
			a.Patches = append(a.Patches, doc)
		}
	}

	if recErr := s.recorder.Record(ctx, a); recErr != nil {
		s.logger.Warn("failed to record squash history", zap.Error(recErr))
	}
}
