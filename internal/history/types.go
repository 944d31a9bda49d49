// internal/history/types.go
package history

import (
	"time"
)

// Record is the audit entry for one squash attempt
type Record struct {
	ID           string    `json:"id"`
	RepoPath     string    `json:"repoPath"`
	FilePath     string    `json:"filePath"`
	TargetCommit string    `json:"targetCommit"`
	WholeFile    bool      `json:"wholeFile"`
	HunkCount    int       `json:"hunkCount"`
	HunksStaged  int       `json:"hunksStaged"`
	Phase        string    `json:"phase,omitempty"` // failed phase, empty on success
	Error        string    `json:"error,omitempty"`
	Patches      []string  `json:"patches,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r *Record) Succeeded() bool {
	return r.Error == ""
}

// Box interface defines how we store/retrieve squash history
type Box interface {
	Create(r *Record) error
	Get(id string) (*Record, error)
	// List returns records for repoPath, newest first. An empty repoPath
	// lists everything.
	List(repoPath string) ([]*Record, error)
}
