package history

import (
	"context"
	"fmt"
	"time"

	"repodeck/internal/squash"

	"github.com/google/uuid"
)

// Recorder turns squash attempts into history records
type Recorder struct {
	box Box
}

func NewRecorder(box Box) *Recorder {
	return &Recorder{box: box}
}

func (r *Recorder) Record(ctx context.Context, a squash.Attempt) error {
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	rec := &Record{
		ID:           NewID(at),
		RepoPath:     a.Request.RepoPath,
		FilePath:     a.Request.FilePath,
		TargetCommit: a.Request.TargetCommit,
		WholeFile:    len(a.Request.Hunks) == 0,
		HunkCount:    len(a.Request.Hunks),
		HunksStaged:  a.HunksStaged,
		Phase:        string(a.Phase),
		Error:        a.Error,
		CreatedAt:    at,
	}
	for _, p := range a.Patches {
		rec.Patches = append(rec.Patches, string(p))
	}

	if err := r.box.Create(rec); err != nil {
		return fmt.Errorf("recording squash of %s: %w", a.Request.FilePath, err)
	}
	return nil
}

// NewID returns an id that sorts by creation time
func NewID(at time.Time) string {
	return fmt.Sprintf("%020d-%s", at.UnixNano(), uuid.NewString())
}

var _ squash.Recorder = (*Recorder)(nil)
