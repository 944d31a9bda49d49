// Package stager moves individual hunks or whole files into the index.
package stager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"repodeck/internal/diff"
	"repodeck/internal/git"
	"repodeck/internal/patch"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Stager struct {
	backend git.Backend
	dir     string
	logger  *zap.Logger
}

// New returns a Stager writing transient patches under dir. An empty dir
// means the system temp directory.
func New(backend git.Backend, dir string, logger *zap.Logger) *Stager {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{backend: backend, dir: dir, logger: logger}
}

func (s *Stager) StageFile(ctx context.Context, repoPath, filePath string) error {
	return s.backend.AddFile(ctx, repoPath, filePath)
}

// StageHunk applies a single hunk to the index, leaving the working tree as is.
func (s *Stager) StageHunk(ctx context.Context, repoPath, filePath string, h diff.Hunk) error {
	doc, err := patch.Synthesize(filePath, h)
	if err != nil {
		return err
	}

	name, err := s.writePatch(doc)
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("failed to remove patch file",
				zap.String("path", name),
				zap.Error(rmErr))
		}
	}()

	return s.backend.ApplyPatch(ctx, repoPath, name, true)
}

// StageHunks stages hunks in order and stops at the first failure. The
// returned count covers the hunks staged before it; those stay staged.
func (s *Stager) StageHunks(ctx context.Context, repoPath, filePath string, hunks []diff.Hunk) (int, error) {
	for i, h := range hunks {
		if err := s.StageHunk(ctx, repoPath, filePath, h); err != nil {
			return i, err
		}
	}
	return len(hunks), nil
}

func (s *Stager) writePatch(doc []byte) (string, error) {
	name := filepath.Join(s.dir, fmt.Sprintf("repodeck-%d-%s.patch", time.Now().UnixNano(), uuid.NewString()))
	if err := os.WriteFile(name, doc, 0o600); err != nil {
		return "", fmt.Errorf("write patch file: %w", err)
	}
	return name, nil
}
