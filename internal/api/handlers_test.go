package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"repodeck/internal/diff"
	"repodeck/internal/errors"
	"repodeck/internal/git"
	"repodeck/internal/git/gitfake"
	"repodeck/internal/history"
	"repodeck/internal/squash"
	"repodeck/internal/stager"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoHunks = `diff --git a/a.txt b/a.txt
--- a/a.txt
+++ b/a.txt
@@ -1,3 +1,4 @@
 one
+one and a half
 two
 three
@@ -8,3 +9,3 @@
 eight
-nine
+NINE
 ten
`

type memHistory struct {
	records []*history.Record
}

func (m *memHistory) Create(r *history.Record) error {
	m.records = append([]*history.Record{r}, m.records...)
	return nil
}

func (m *memHistory) Get(id string) (*history.Record, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.NotFound("history record not found: " + id)
}

func (m *memHistory) List(repoPath string) ([]*history.Record, error) {
	var out []*history.Record
	for _, r := range m.records {
		if repoPath == "" || r.RepoPath == repoPath {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*http.ServeMux, *gitfake.Backend, *memHistory) {
	t.Helper()
	fake := gitfake.New()
	fake.Diffs["a.txt"] = twoHunks
	fake.Files = []git.FileStatus{{Path: "a.txt", Status: git.StatusModified}}
	fake.Commits = []git.Commit{
		{Hash: "abc1234abc1234", ShortHash: "abc1234", Message: "second"},
		{Hash: "0000000fffffff", ShortHash: "0000000", Message: "first"},
	}

	hist := &memHistory{}
	st := stager.New(fake, t.TempDir(), nil)
	svc := squash.NewService(fake, st, nil).WithRecorder(history.NewRecorder(hist))

	mux := http.NewServeMux()
	NewRepoHandler(fake, st, svc, hist, nil, 10).Register(mux)
	mux.HandleFunc("GET /health", Health)
	return mux, fake, hist
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestRepoHandler_Reads(t *testing.T) {
	mux, fake, _ := newTestServer(t)

	t.Run("status", func(t *testing.T) {
		rec := post(t, mux, "/api/status", map[string]any{"repoPath": "/repo"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[StatusResponse](t, rec)
		assert.Equal(t, fake.Files, resp.Files)
	})

	t.Run("log uses default limit", func(t *testing.T) {
		rec := post(t, mux, "/api/log", map[string]any{"repoPath": "/repo"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[LogResponse](t, rec).Commits, 2)
		last := fake.CallsTo("Log")
		assert.Equal(t, "10", last[len(last)-1].Args[1])
	})

	t.Run("log max count", func(t *testing.T) {
		rec := post(t, mux, "/api/log", map[string]any{"repoPath": "/repo", "maxCount": 1})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[LogResponse](t, rec).Commits, 1)
	})

	t.Run("diff", func(t *testing.T) {
		rec := post(t, mux, "/api/diff", map[string]any{"repoPath": "/repo", "filePath": "a.txt"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[DiffResponse](t, rec)
		assert.Equal(t, twoHunks, resp.Diff)
		require.Len(t, resp.Hunks, 2)
		assert.Equal(t, 1, resp.Hunks[0].StartLine)
		assert.Equal(t, 2, resp.Hunks[0].EndLine)
	})

	t.Run("diff of clean file", func(t *testing.T) {
		rec := post(t, mux, "/api/diff", map[string]any{"repoPath": "/repo", "filePath": "clean.txt"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"diff":"","hunks":[]}`, rec.Body.String())
	})

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	})
}

func TestRepoHandler_Validation(t *testing.T) {
	tests := []struct {
		path string
		body any
	}{
		{"/api/status", map[string]any{}},
		{"/api/log", map[string]any{}},
		{"/api/diff", map[string]any{"repoPath": "/repo"}},
		{"/api/stage", map[string]any{"repoPath": "/repo"}},
		{"/api/fixup", map[string]any{"repoPath": "/repo"}},
		{"/api/rebase", map[string]any{"repoPath": "/repo"}},
		{"/api/squash", map[string]any{"repoPath": "/repo", "filePath": "a.txt"}},
		{"/api/history", map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			mux, fake, _ := newTestServer(t)
			rec := post(t, mux, tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			e := decode[errors.Error](t, rec)
			assert.Equal(t, errors.ErrorTypeValidation, e.Type)
			assert.Empty(t, fake.Calls)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		mux, _, _ := newTestServer(t)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		mux, _, _ := newTestServer(t)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRepoHandler_Stage(t *testing.T) {
	mux, fake, _ := newTestServer(t)
	hunk := diff.Parse(twoHunks)[1]

	rec := post(t, mux, "/api/stage", StageRequest{RepoPath: "/repo", FilePath: "a.txt", Hunk: &hunk})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[StageResponse](t, rec).Staged)
	require.Len(t, fake.Patches, 1)
	assert.Contains(t, fake.Patches[0], "+NINE")

	rec = post(t, mux, "/api/stage", StageRequest{RepoPath: "/repo", FilePath: "a.txt"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, fake.CallsTo("AddFile"), 1)
}

func TestRepoHandler_FixupAndRebase(t *testing.T) {
	mux, fake, _ := newTestServer(t)

	rec := post(t, mux, "/api/fixup", CommitRequest{RepoPath: "/repo", TargetCommit: "abc1234abc"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[MessageResponse](t, rec).Message, "abc1234")

	rec = post(t, mux, "/api/rebase", CommitRequest{RepoPath: "/repo", TargetCommit: "abc1234abc"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"/repo", "abc1234abc^"}, fake.CallsTo("RebaseAutosquash")[0].Args)
}

func TestRepoHandler_Squash(t *testing.T) {
	mux, fake, hist := newTestServer(t)
	hunks := diff.Parse(twoHunks)

	rec := post(t, mux, "/api/squash", squash.Request{
		RepoPath:     "/repo",
		FilePath:     "a.txt",
		TargetCommit: "abc1234",
		Hunks:        hunks[:1],
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[squash.Result](t, rec)
	assert.Equal(t, "Successfully squashed changes into abc1234", res.Message)
	assert.Equal(t, []string{"ResolveCommit", "ApplyPatch", "CommitFixup", "RebaseAutosquash"}, fake.Methods())

	rec = post(t, mux, "/api/history", RepoRequest{RepoPath: "/repo"})
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[HistoryResponse](t, rec).Records
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].HunksStaged)
	assert.Len(t, hist.records, 1)
}

func TestRepoHandler_BackendFailure(t *testing.T) {
	mux, fake, _ := newTestServer(t)
	fake.RebaseErr = &git.CommandError{Args: "rebase", Stderr: "CONFLICT (content): Merge conflict in a.txt"}

	rec := post(t, mux, "/api/squash", squash.Request{RepoPath: "/repo", FilePath: "a.txt", TargetCommit: "abc1234"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	e := decode[errors.Error](t, rec)
	assert.Equal(t, errors.ErrorTypeBackend, e.Type)
	assert.Equal(t, "rebase failed: CONFLICT (content): Merge conflict in a.txt", e.Message)
	assert.Equal(t, "CONFLICT (content): Merge conflict in a.txt", e.Details)
}

func TestRepoHandler_StatusFailure(t *testing.T) {
	mux, fake, _ := newTestServer(t)
	fake.StatusErr = &git.CommandError{Args: "status", Stderr: "fatal: not a git repository"}

	rec := post(t, mux, "/api/status", RepoRequest{RepoPath: "/tmp"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "not a git repository")
}

func TestRepoHandler_MalformedHunk(t *testing.T) {
	garbage := diff.Hunk{Header: "@@ garbage @@", Lines: []string{"@@ garbage @@", "+line"}}

	t.Run("stage", func(t *testing.T) {
		mux, fake, _ := newTestServer(t)
		rec := post(t, mux, "/api/stage", StageRequest{RepoPath: "/repo", FilePath: "a.txt", Hunk: &garbage})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		e := decode[errors.Error](t, rec)
		assert.Equal(t, errors.ErrorTypeValidation, e.Type)
		assert.Equal(t, "invalid hunk for a.txt", e.Message)
		assert.Empty(t, fake.Calls)
	})

	t.Run("squash", func(t *testing.T) {
		mux, fake, _ := newTestServer(t)
		rec := post(t, mux, "/api/squash", squash.Request{
			RepoPath:     "/repo",
			FilePath:     "a.txt",
			TargetCommit: "abc1234",
			Hunks:        []diff.Hunk{garbage},
		})

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		e := decode[errors.Error](t, rec)
		assert.Equal(t, errors.ErrorTypeBackend, e.Type)
		assert.Equal(t, "staging failed: invalid hunk for a.txt", e.Message)
		assert.Empty(t, fake.CallsTo("ApplyPatch"))
	})

	t.Run("whole file with hunks", func(t *testing.T) {
		mux, fake, _ := newTestServer(t)
		rec := post(t, mux, "/api/squash", squash.Request{
			RepoPath:     "/repo",
			FilePath:     "a.txt",
			TargetCommit: "abc1234",
			Hunks:        diff.Parse(twoHunks),
			WholeFile:    true,
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, fake.Calls)
	})
}
