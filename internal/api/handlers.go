// internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"

	"repodeck/internal/diff"
	"repodeck/internal/errors"
	"repodeck/internal/git"
	"repodeck/internal/history"
	"repodeck/internal/logging"
	"repodeck/internal/squash"
	"repodeck/internal/stager"
	"repodeck/internal/validation"

	"go.uber.org/zap"
)

// RepoHandler serves the stateless repository endpoints
type RepoHandler struct {
	backend  git.Backend
	stager   *stager.Stager
	squasher *squash.Service
	history  history.Box
	logger   *logging.Logger
	logLimit int
}

func NewRepoHandler(backend git.Backend, st *stager.Stager, squasher *squash.Service, box history.Box, logger *logging.Logger, logLimit int) *RepoHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	if logLimit <= 0 {
		logLimit = 50
	}
	return &RepoHandler{
		backend:  backend,
		stager:   st,
		squasher: squasher,
		history:  box,
		logger:   logger,
		logLimit: logLimit,
	}
}

func (h *RepoHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/status", h.Status)
	mux.HandleFunc("POST /api/log", h.Log)
	mux.HandleFunc("POST /api/diff", h.Diff)
	mux.HandleFunc("POST /api/stage", h.Stage)
	mux.HandleFunc("POST /api/fixup", h.Fixup)
	mux.HandleFunc("POST /api/rebase", h.Rebase)
	mux.HandleFunc("POST /api/squash", h.Squash)
	mux.HandleFunc("POST /api/history", h.History)
}

func (h *RepoHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req RepoRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	files, err := h.backend.Status(r.Context(), req.RepoPath)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if files == nil {
		files = []git.FileStatus{}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Files: files})
}

func (h *RepoHandler) Log(w http.ResponseWriter, r *http.Request) {
	var req LogRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.MaxCount <= 0 {
		req.MaxCount = h.logLimit
	}

	commits, err := h.backend.Log(r.Context(), req.RepoPath, req.MaxCount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if commits == nil {
		commits = []git.Commit{}
	}
	writeJSON(w, http.StatusOK, LogResponse{Commits: commits})
}

func (h *RepoHandler) Diff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	text, err := h.backend.Diff(r.Context(), req.RepoPath, req.FilePath, req.Staged)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	hunks := diff.Parse(text)
	for i, hk := range hunks {
		if hk.Malformed {
			h.logger.For(r.Context()).Warn("malformed hunk header",
				zap.String("file", req.FilePath),
				zap.Int("hunk", i),
				zap.String("header", hk.Header))
		}
	}
	if hunks == nil {
		hunks = []diff.Hunk{}
	}
	writeJSON(w, http.StatusOK, DiffResponse{Diff: text, Hunks: hunks})
}

func (h *RepoHandler) Stage(w http.ResponseWriter, r *http.Request) {
	var req StageRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var err error
	if req.Hunk != nil {
		err = h.stager.StageHunk(r.Context(), req.RepoPath, req.FilePath, *req.Hunk)
	} else {
		err = h.stager.StageFile(r.Context(), req.RepoPath, req.FilePath)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, StageResponse{Staged: 1})
}

func (h *RepoHandler) Fixup(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.backend.CommitFixup(r.Context(), req.RepoPath, req.TargetCommit); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Created fixup commit for " + git.ShortHash(req.TargetCommit)})
}

func (h *RepoHandler) Rebase(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.backend.RebaseAutosquash(r.Context(), req.RepoPath, req.TargetCommit+"^"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Autosquashed onto " + git.ShortHash(req.TargetCommit) + "^"})
}

func (h *RepoHandler) Squash(w http.ResponseWriter, r *http.Request) {
	var req squash.Request
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.squasher.Squash(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RepoHandler) History(w http.ResponseWriter, r *http.Request) {
	var req RepoRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if h.history == nil {
		writeJSON(w, http.StatusOK, HistoryResponse{Records: []*history.Record{}})
		return
	}

	records, err := h.history.List(req.RepoPath)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if records == nil {
		records = []*history.Record{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Records: records})
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	e := errors.From(err)
	log := logger.For(r.Context())
	switch {
	case e.Code >= http.StatusInternalServerError:
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	case e.Type == errors.ErrorTypeBackend:
		log.Warn("backend operation failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	errors.Write(w, e)
}
