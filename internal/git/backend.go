// Package git is the version-control backend the squash workflow drives.
//
// The default implementation shells out to the git executable; GoGitBackend
// answers history queries in-process. Callers only see the Backend interface.
package git

import (
	"context"
)

// Backend abstracts every repository operation the core needs
type Backend interface {
	// Status reports working-tree changes relative to the index
	Status(ctx context.Context, repoPath string) ([]FileStatus, error)

	// Log returns up to maxCount commits, most recent first
	Log(ctx context.Context, repoPath string, maxCount int) ([]Commit, error)

	// Diff returns the unified diff (3 lines of context) for one file
	Diff(ctx context.Context, repoPath, filePath string, staged bool) (string, error)

	// ApplyPatch applies the patch document stored at patchFile
	ApplyPatch(ctx context.Context, repoPath, patchFile string, cached bool) error

	AddFile(ctx context.Context, repoPath, filePath string) error

	// ResolveCommit returns the full hash of the commit rev names
	ResolveCommit(ctx context.Context, repoPath, rev string) (string, error)

	// CommitFixup creates a "fixup! " commit linked to target
	CommitFixup(ctx context.Context, repoPath, target string) error

	// RebaseAutosquash runs a non-interactive autosquash rebase onto base
	RebaseAutosquash(ctx context.Context, repoPath, base string) error
}

// StatusKind classifies a changed path
type StatusKind string

const (
	StatusModified StatusKind = "modified"
	StatusCreated  StatusKind = "created"
	StatusDeleted  StatusKind = "deleted"
	StatusRenamed  StatusKind = "renamed"
)

// FileStatus is one changed path in the working tree
type FileStatus struct {
	Path   string     `json:"path"`
	Status StatusKind `json:"status"`
	From   string     `json:"from,omitempty"` // previous path, renames only
}

// Commit is one history entry
type Commit struct {
	Hash      string `json:"hash"`
	ShortHash string `json:"shortHash"`
	Message   string `json:"message"`
	Author    string `json:"author"`
	Date      string `json:"date"`
	Refs      string `json:"refs"`
}

// ShortHash returns the first 7 characters of hash
func ShortHash(hash string) string {
	if len(hash) <= 7 {
		return hash
	}
	return hash[:7]
}
