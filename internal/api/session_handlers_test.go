package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"repodeck/internal/errors"
	"repodeck/internal/git"
	"repodeck/internal/git/gitfake"
	"repodeck/internal/session"
	sessionstorage "repodeck/internal/session/storage"
	"repodeck/internal/squash"
	"repodeck/internal/stager"
	"repodeck/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionServer(t *testing.T) (*http.ServeMux, *gitfake.Backend, *session.Manager) {
	t.Helper()
	db, err := storage.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	box, err := sessionstorage.NewStore(db, 8)
	require.NoError(t, err)

	fake := gitfake.New()
	fake.Diffs["a.txt"] = twoHunks
	fake.Commits = []git.Commit{{Hash: "abc1234abc1234", ShortHash: "abc1234", Message: "add a"}}

	svc := squash.NewService(fake, stager.New(fake, t.TempDir(), nil), nil)
	manager := session.NewManager(box, fake, svc, nil, nil, 10)

	mux := http.NewServeMux()
	NewSessionHandler(manager, nil).Register(mux)
	return mux, fake, manager
}

func TestSessionHandler_Workflow(t *testing.T) {
	mux, fake, _ := newSessionServer(t)

	rec := post(t, mux, "/api/sessions", CreateSessionRequest{RepoPath: "/repo"})
	require.Equal(t, http.StatusCreated, rec.Code)
	s := decode[session.Session](t, rec)
	require.NotEmpty(t, s.ID)
	base := "/api/sessions/" + s.ID

	rec = post(t, mux, base+"/file", SelectFileRequest{FilePath: "a.txt"})
	require.Equal(t, http.StatusOK, rec.Code)
	s = decode[session.Session](t, rec)
	assert.Equal(t, squash.StepSelectHunks, s.Selection.Step)
	assert.Len(t, s.Selection.Hunks, 2)

	rec = post(t, mux, base+"/proceed", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "nothing selected yet")

	rec = post(t, mux, base+"/hunks", HunksRequest{Indices: []int{0}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{0}, decode[session.Session](t, rec).Selection.Selected)

	rec = post(t, mux, base+"/proceed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, mux, base+"/commit", SelectCommitRequest{TargetCommit: "abc1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, squash.StepConfirm, decode[session.Session](t, rec).Selection.Step)

	rec = post(t, mux, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[session.Outcome](t, rec)
	assert.Contains(t, out.Result.Message, "abc1234")
	assert.Equal(t, squash.StepSelectFiles, out.Session.Selection.Step)
	assert.Len(t, out.Commits, 1)

	assert.Len(t, fake.CallsTo("ApplyPatch"), 1)
	assert.Equal(t, []string{"/repo", "abc1234abc1234^"}, fake.CallsTo("RebaseAutosquash")[0].Args)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, base, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_ConfirmWithoutTarget(t *testing.T) {
	mux, fake, _ := newSessionServer(t)

	s := decode[session.Session](t, post(t, mux, "/api/sessions", CreateSessionRequest{RepoPath: "/repo"}))
	base := "/api/sessions/" + s.ID
	post(t, mux, base+"/file", SelectFileRequest{FilePath: "a.txt"})
	post(t, mux, base+"/hunks", HunksRequest{WholeFile: true})

	rec := post(t, mux, base+"/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"Diff"}, fake.Methods(), "only the diff fetch reached git")
}

func TestSessionHandler_StaleSession(t *testing.T) {
	mux, _, manager := newSessionServer(t)

	s := decode[session.Session](t, post(t, mux, "/api/sessions", CreateSessionRequest{RepoPath: "/repo"}))
	base := "/api/sessions/" + s.ID
	post(t, mux, base+"/file", SelectFileRequest{FilePath: "a.txt"})

	manager.MarkStale("/repo/a.txt")

	rec := post(t, mux, base+"/hunks", HunksRequest{Indices: []int{0}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decode[errors.Error](t, rec)
	assert.Contains(t, e.Message, "changed on disk")
}

func TestSessionHandler_BadRequests(t *testing.T) {
	mux, _, _ := newSessionServer(t)

	assert.Equal(t, http.StatusBadRequest, post(t, mux, "/api/sessions", CreateSessionRequest{}).Code)
	assert.Equal(t, http.StatusNotFound, post(t, mux, "/api/sessions/nope/proceed", nil).Code)

	s := decode[session.Session](t, post(t, mux, "/api/sessions", CreateSessionRequest{RepoPath: "/repo"}))
	assert.Equal(t, http.StatusBadRequest, post(t, mux, "/api/sessions/"+s.ID+"/file", SelectFileRequest{}).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, mux, "/api/sessions/"+s.ID+"/hunks", HunksRequest{}).Code)
}
