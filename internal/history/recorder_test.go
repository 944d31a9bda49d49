package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"repodeck/internal/diff"
	"repodeck/internal/squash"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBox struct {
	records []*Record
	err     error
}

func (m *memBox) Create(r *Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memBox) Get(id string) (*Record, error) { return nil, errors.New("unused") }

func (m *memBox) List(repoPath string) ([]*Record, error) { return m.records, nil }

func TestRecorder(t *testing.T) {
	box := &memBox{}
	rec := NewRecorder(box)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	err := rec.Record(context.Background(), squash.Attempt{
		Request: squash.Request{
			RepoPath:     "/repo",
			FilePath:     "a.txt",
			TargetCommit: "abc1234",
			Hunks:        diff.Parse("@@ -1 +1 @@\n-a\n+b\n@@ -5 +5 @@\n-e\n+E\n"),
		},
		HunksStaged: 1,
		Phase:       squash.PhaseStaging,
		Error:       "staging failed: boom (1 of 2 hunks staged)",
		Patches:     [][]byte{[]byte("p1"), []byte("p2")},
		At:          at,
	})
	require.NoError(t, err)

	require.Len(t, box.records, 1)
	r := box.records[0]
	assert.Regexp(t, `^\d{20}-`, r.ID)
	assert.Equal(t, 2, r.HunkCount)
	assert.Equal(t, 1, r.HunksStaged)
	assert.False(t, r.WholeFile)
	assert.Equal(t, "staging", r.Phase)
	assert.Equal(t, []string{"p1", "p2"}, r.Patches)
	assert.Equal(t, at, r.CreatedAt)
}

func TestRecorder_WrapsStoreError(t *testing.T) {
	rec := NewRecorder(&memBox{err: errors.New("closed")})
	err := rec.Record(context.Background(), squash.Attempt{Request: squash.Request{RepoPath: "/repo", FilePath: "a.txt"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.txt")
}

func TestNewID_SortsByTime(t *testing.T) {
	a := NewID(time.Unix(1, 0))
	b := NewID(time.Unix(100, 0))
	assert.Less(t, a, b)
}
