package api

import (
	"net/http"

	"repodeck/internal/errors"
	"repodeck/internal/logging"
	"repodeck/internal/session"
	"repodeck/internal/validation"

	"go.uber.org/zap"
)

// SessionHandler exposes server-held squash workflows
type SessionHandler struct {
	manager *session.Manager
	logger  *logging.Logger
}

func NewSessionHandler(manager *session.Manager, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SessionHandler{manager: manager, logger: logger}
}

func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.Create)
	mux.HandleFunc("GET /api/sessions/{id}", annotateSession(h.Get))
	mux.HandleFunc("DELETE /api/sessions/{id}", annotateSession(h.Delete))
	mux.HandleFunc("POST /api/sessions/{id}/file", annotateSession(h.SelectFile))
	mux.HandleFunc("POST /api/sessions/{id}/hunks", annotateSession(h.Hunks))
	mux.HandleFunc("POST /api/sessions/{id}/proceed", annotateSession(h.Proceed))
	mux.HandleFunc("POST /api/sessions/{id}/commit", annotateSession(h.SelectCommit))
	mux.HandleFunc("POST /api/sessions/{id}/confirm", annotateSession(h.Confirm))
}

func annotateSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logging.Annotate(r.Context(), zap.String("session", r.PathValue("id")))
		next(w, r)
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	s, err := h.manager.Create(req.RepoPath)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) SelectFile(w http.ResponseWriter, r *http.Request) {
	var req SelectFileRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := validation.Required(validation.Field{Name: "filePath", Value: req.FilePath}); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	s, err := h.manager.SelectFile(r.Context(), r.PathValue("id"), req.FilePath)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SessionHandler) Hunks(w http.ResponseWriter, r *http.Request) {
	var req HunksRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id := r.PathValue("id")
	var (
		s   *session.Session
		err error
	)
	switch {
	case req.WholeFile:
		s, err = h.manager.ChooseWholeFile(id)
	case len(req.Indices) > 0:
		s, err = h.manager.ToggleHunks(id, req.Indices)
	default:
		err = errors.ValidationError("indices or wholeFile is required", nil)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SessionHandler) Proceed(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.ProceedToCommit(r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SessionHandler) SelectCommit(w http.ResponseWriter, r *http.Request) {
	var req SelectCommitRequest
	if err := validation.Decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	s, err := h.manager.SelectCommit(r.PathValue("id"), req.TargetCommit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	out, err := h.manager.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
