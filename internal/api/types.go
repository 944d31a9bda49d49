package api

import (
	"repodeck/internal/diff"
	"repodeck/internal/git"
	"repodeck/internal/history"
	"repodeck/internal/validation"

	"go.uber.org/zap"
)

type RepoRequest struct {
	RepoPath string `json:"repoPath"`
}

func (r *RepoRequest) Validate() error {
	return validation.Required(validation.Field{Name: "repoPath", Value: r.RepoPath})
}

type LogRequest struct {
	RepoPath string `json:"repoPath"`
	MaxCount int    `json:"maxCount,omitempty"`
}

func (r *LogRequest) Validate() error {
	return validation.Required(validation.Field{Name: "repoPath", Value: r.RepoPath})
}

type DiffRequest struct {
	RepoPath string `json:"repoPath"`
	FilePath string `json:"filePath"`
	Staged   bool   `json:"staged,omitempty"`
}

func (r *DiffRequest) Validate() error {
	return validation.Required(
		validation.Field{Name: "repoPath", Value: r.RepoPath},
		validation.Field{Name: "filePath", Value: r.FilePath},
	)
}

// StageRequest stages Hunk when set, otherwise the whole file
type StageRequest struct {
	RepoPath string     `json:"repoPath"`
	FilePath string     `json:"filePath"`
	Hunk     *diff.Hunk `json:"hunk,omitempty"`
}

func (r *StageRequest) Validate() error {
	return validation.Required(
		validation.Field{Name: "repoPath", Value: r.RepoPath},
		validation.Field{Name: "filePath", Value: r.FilePath},
	)
}

type CommitRequest struct {
	RepoPath     string `json:"repoPath"`
	TargetCommit string `json:"targetCommit"`
}

func (r *CommitRequest) Validate() error {
	return validation.Required(
		validation.Field{Name: "repoPath", Value: r.RepoPath},
		validation.Field{Name: "targetCommit", Value: r.TargetCommit},
	)
}

type StatusResponse struct {
	Files []git.FileStatus `json:"files"`
}

type LogResponse struct {
	Commits []git.Commit `json:"commits"`
}

type DiffResponse struct {
	Diff  string      `json:"diff"`
	Hunks []diff.Hunk `json:"hunks"`
}

type StageResponse struct {
	Staged int `json:"staged"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HistoryResponse struct {
	Records []*history.Record `json:"records"`
}

type CreateSessionRequest struct {
	RepoPath string `json:"repoPath"`
}

type SelectFileRequest struct {
	FilePath string `json:"filePath"`
}

// HunksRequest toggles Indices in order, or picks the whole file
type HunksRequest struct {
	Indices   []int `json:"indices,omitempty"`
	WholeFile bool  `json:"wholeFile,omitempty"`
}

type SelectCommitRequest struct {
	TargetCommit string `json:"targetCommit"`
}

func (r *RepoRequest) LogFields() []zap.Field {
	return []zap.Field{zap.String("repo", r.RepoPath)}
}

func (r *LogRequest) LogFields() []zap.Field {
	return []zap.Field{zap.String("repo", r.RepoPath)}
}

func (r *DiffRequest) LogFields() []zap.Field {
	return []zap.Field{zap.String("repo", r.RepoPath), zap.String("file", r.FilePath)}
}

func (r *StageRequest) LogFields() []zap.Field {
	return []zap.Field{zap.String("repo", r.RepoPath), zap.String("file", r.FilePath), zap.Bool("hunk", r.Hunk != nil)}
}

func (r *CommitRequest) LogFields() []zap.Field {
	return []zap.Field{zap.String("repo", r.RepoPath), zap.String("target", r.TargetCommit)}
}
