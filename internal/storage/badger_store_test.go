package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func (n *note) GetID() string { return n.ID }

func setupStore(t *testing.T, prefix string) *BadgerStore {
	t.Helper()
	db, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBadgerStore(db, prefix)
}

func TestBadgerStore(t *testing.T) {
	store := setupStore(t, "note")

	t.Run("Create", func(t *testing.T) {
		require.NoError(t, store.Create(&note{ID: "a", Body: "first"}))

		err := store.Create(&note{ID: "a"})
		assert.ErrorIs(t, err, ErrExists)

		assert.Error(t, store.Create(&note{}))
	})

	t.Run("Get", func(t *testing.T) {
		var n note
		require.NoError(t, store.Get("a", &n))
		assert.Equal(t, "first", n.Body)

		assert.ErrorIs(t, store.Get("missing", &n), ErrNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		require.NoError(t, store.Update(&note{ID: "a", Body: "changed"}))

		var n note
		require.NoError(t, store.Get("a", &n))
		assert.Equal(t, "changed", n.Body)

		assert.ErrorIs(t, store.Update(&note{ID: "missing"}), ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Create(&note{ID: "b", Body: "second"}))
		require.NoError(t, store.Create(&note{ID: "ab", Body: "third"}))

		var all []note
		require.NoError(t, store.List(&all))
		require.Len(t, all, 3)
		assert.Equal(t, "a", all[0].ID)
		assert.Equal(t, "ab", all[1].ID)
		assert.Equal(t, "b", all[2].ID)

		var some []note
		require.NoError(t, store.ListPrefix("a", &some))
		assert.Len(t, some, 2)

		ids, err := store.IDs()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "ab", "b"}, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete("b"))
		assert.ErrorIs(t, store.Delete("b"), ErrNotFound)
	})
}

func TestBadgerStore_PrefixesAreIsolated(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	defer db.Close()

	notes := NewBadgerStore(db, "note")
	other := NewBadgerStore(db, "notebook")
	require.NoError(t, notes.Create(&note{ID: "1"}))
	require.NoError(t, other.Create(&note{ID: "2"}))

	var got []note
	require.NoError(t, notes.List(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	var empty []note
	require.NoError(t, NewBadgerStore(db, "none").List(&empty))
	assert.Empty(t, empty)
}
