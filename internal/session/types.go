// internal/session/types.go
package session

import (
	"path/filepath"
	"time"

	"repodeck/internal/squash"
)

// Session is a server-held squash workflow for one client
type Session struct {
	ID        string           `json:"id"`
	Selection squash.Selection `json:"selection"`
	// Stale is set when the selected file changed on disk after its diff
	// was fetched; hunk indices no longer match until it is re-selected.
	Stale     bool      `json:"stale"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// File returns the absolute path of the selected file, or "" if none
func (s *Session) File() string {
	if s.Selection.FilePath == "" {
		return ""
	}
	return filepath.Join(s.Selection.RepoPath, s.Selection.FilePath)
}

// Box interface defines how we store/retrieve sessions
type Box interface {
	Create(s *Session) error
	Get(id string) (*Session, error)
	Update(s *Session) error

	// Modify applies fn to the stored session and saves the result as one
	// step, so a concurrent MarkStale is never overwritten. An error from fn
	// aborts the write.
	Modify(id string, fn func(*Session) error) (*Session, error)
	Delete(id string) error
	List() ([]*Session, error)

	// MarkStale flags every session whose selected file is absFile and
	// returns how many were changed.
	MarkStale(absFile string) (int, error)
}
