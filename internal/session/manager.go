package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"repodeck/internal/diff"
	"repodeck/internal/errors"
	"repodeck/internal/git"
	"repodeck/internal/squash"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileWatcher is the part of watch.Watcher the manager needs
type FileWatcher interface {
	Add(path string) error
	Remove(path string) error
}

// Outcome is returned by a successful Confirm together with the refreshed
// repository state.
type Outcome struct {
	Result  *squash.Result   `json:"result"`
	Session *Session         `json:"session"`
	Files   []git.FileStatus `json:"files"`
	Commits []git.Commit     `json:"commits"`

	// RefreshError is set when the squash succeeded but reading the new
	// repository state afterwards did not.
	RefreshError string `json:"refreshError,omitempty"`
}

// Manager drives Selection transitions for stored sessions
type Manager struct {
	box      Box
	backend  git.Backend
	squasher *squash.Service
	watcher  FileWatcher
	logger   *zap.Logger
	logLimit int
}

func NewManager(box Box, backend git.Backend, squasher *squash.Service, watcher FileWatcher, logger *zap.Logger, logLimit int) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if logLimit <= 0 {
		logLimit = 50
	}
	return &Manager{
		box:      box,
		backend:  backend,
		squasher: squasher,
		watcher:  watcher,
		logger:   logger,
		logLimit: logLimit,
	}
}

func (m *Manager) Create(repoPath string) (*Session, error) {
	if repoPath == "" {
		return nil, errors.ValidationError("missing required fields", map[string][]string{"missing": {"repoPath"}})
	}
	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.New().String(),
		Selection: squash.NewSelection(repoPath),
		CreatedAt: now,
	}
	if err := m.box.Create(s); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	return m.box.Get(id)
}

func (m *Manager) Delete(id string) error {
	s, err := m.box.Get(id)
	if err != nil {
		return err
	}
	m.unwatch(s)
	return m.box.Delete(id)
}

// SelectFile clears the hunk selection, fetches the file's diff and moves
// the session to hunk selection. The file is watched from then on.
func (m *Manager) SelectFile(ctx context.Context, id, path string) (*Session, error) {
	s, err := m.box.Get(id)
	if err != nil {
		return nil, err
	}

	sel, err := s.Selection.SelectFile(path)
	if err != nil {
		return nil, err
	}

	text, err := m.backend.Diff(ctx, sel.RepoPath, path, false)
	if err != nil {
		return nil, err
	}
	hunks := diff.Parse(text)
	for i, h := range hunks {
		if h.Malformed {
			m.logger.Warn("malformed hunk header",
				zap.String("file", path),
				zap.Int("hunk", i),
				zap.String("header", h.Header))
		}
	}

	sel, err = sel.DiffLoaded(path, hunks)
	if err != nil {
		return nil, err
	}

	m.unwatch(s)
	s, err = m.box.Modify(id, func(s *Session) error {
		s.Selection = sel
		s.Stale = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.watcher != nil {
		if err := m.watcher.Add(s.File()); err != nil {
			m.logger.Warn("cannot watch selected file", zap.String("file", s.File()), zap.Error(err))
		}
	}
	return s, nil
}

// ToggleHunks toggles each index in turn
func (m *Manager) ToggleHunks(id string, indices []int) (*Session, error) {
	return m.transition(id, func(sel squash.Selection) (squash.Selection, error) {
		var err error
		for _, i := range indices {
			if sel, err = sel.ToggleHunk(i); err != nil {
				return sel, err
			}
		}
		return sel, nil
	})
}

func (m *Manager) ChooseWholeFile(id string) (*Session, error) {
	return m.transition(id, squash.Selection.ChooseWholeFile)
}

func (m *Manager) ProceedToCommit(id string) (*Session, error) {
	return m.transition(id, squash.Selection.ProceedToCommit)
}

func (m *Manager) SelectCommit(id, hash string) (*Session, error) {
	return m.transition(id, func(sel squash.Selection) (squash.Selection, error) {
		return sel.SelectCommit(hash)
	})
}

// Confirm runs the squash. On success the selection is reset and fresh
// status and log are returned; on failure the selection is left as is.
func (m *Manager) Confirm(ctx context.Context, id string) (*Outcome, error) {
	s, err := m.fresh(id)
	if err != nil {
		return nil, err
	}

	req, err := s.Selection.Request()
	if err != nil {
		return nil, err
	}

	result, err := m.squasher.Squash(ctx, req)
	if err != nil {
		return nil, err
	}

	m.unwatch(s)
	s, err = m.box.Modify(id, func(s *Session) error {
		s.Selection = s.Selection.Reset()
		s.Stale = false
		return nil
	})
	if err != nil {
		m.logger.Warn("squash succeeded but session was not reset", zap.String("session", id), zap.Error(err))
		return &Outcome{Result: result, RefreshError: err.Error()}, nil
	}

	out := &Outcome{Result: result, Session: s}
	m.refresh(ctx, req.RepoPath, out)
	return out, nil
}

// refresh fills in status and log after a squash. The squash has already
// happened, so failures are reported in the outcome rather than returned.
func (m *Manager) refresh(ctx context.Context, repoPath string, out *Outcome) {
	var errs []string
	var err error
	if out.Files, err = m.backend.Status(ctx, repoPath); err != nil {
		errs = append(errs, "refreshing status: "+err.Error())
	}
	if out.Commits, err = m.backend.Log(ctx, repoPath, m.logLimit); err != nil {
		errs = append(errs, "refreshing log: "+err.Error())
	}
	if len(errs) > 0 {
		out.RefreshError = strings.Join(errs, "; ")
		m.logger.Warn("refresh after squash failed", zap.String("repo", repoPath), zap.String("error", out.RefreshError))
	}
}

// MarkStale is the watcher callback
func (m *Manager) MarkStale(absFile string) {
	n, err := m.box.MarkStale(absFile)
	if err != nil {
		m.logger.Warn("failed to mark sessions stale", zap.String("file", absFile), zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("sessions marked stale", zap.String("file", absFile), zap.Int("count", n))
	}
}

func (m *Manager) fresh(id string) (*Session, error) {
	s, err := m.box.Get(id)
	if err != nil {
		return nil, err
	}
	if err := checkStale(s); err != nil {
		return nil, err
	}
	return s, nil
}

func checkStale(s *Session) error {
	if !s.Stale {
		return nil
	}
	return errors.ValidationError(
		fmt.Sprintf("%s changed on disk; select it again to reload hunks", s.Selection.FilePath),
		map[string]bool{"stale": true})
}

func (m *Manager) transition(id string, step func(squash.Selection) (squash.Selection, error)) (*Session, error) {
	return m.box.Modify(id, func(s *Session) error {
		if err := checkStale(s); err != nil {
			return err
		}
		sel, err := step(s.Selection)
		if err != nil {
			return err
		}
		s.Selection = sel
		return nil
	})
}

func (m *Manager) unwatch(s *Session) {
	if m.watcher == nil || s.File() == "" {
		return
	}
	if err := m.watcher.Remove(s.File()); err != nil {
		m.logger.Debug("unwatch failed", zap.String("file", s.File()), zap.Error(err))
	}
}
