// internal/history/storage/store.go
package storage

import (
	"errors"
	"fmt"
	"sort"

	"repodeck/internal/archive"
	apierrors "repodeck/internal/errors"
	"repodeck/internal/history"
	"repodeck/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

type Store struct {
	store    *storage.BadgerStore
	archiver *archive.Archiver
}

func NewStore(db *badger.DB, archiver *archive.Archiver) *Store {
	return &Store{
		store:    storage.NewBadgerStore(db, "history"),
		archiver: archiver,
	}
}

// recordEntity is the stored form of a record; patch text is compressed
type recordEntity struct {
	history.Record
	Patches [][]byte `json:"patches,omitempty"`
}

func (r *recordEntity) GetID() string {
	return r.ID
}

func (s *Store) pack(r *history.Record) *recordEntity {
	e := &recordEntity{Record: *r}
	e.Record.Patches = nil
	for _, p := range r.Patches {
		e.Patches = append(e.Patches, s.archiver.Compress([]byte(p)))
	}
	return e
}

func (s *Store) unpack(e *recordEntity) (*history.Record, error) {
	r := e.Record
	r.Patches = nil
	for _, p := range e.Patches {
		doc, err := s.archiver.Decompress(p)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", e.ID, err)
		}
		r.Patches = append(r.Patches, string(doc))
	}
	return &r, nil
}

func (s *Store) Create(r *history.Record) error {
	if r.RepoPath == "" {
		return fmt.Errorf("invalid record: repo path is required")
	}
	if r.ID == "" {
		r.ID = history.NewID(r.CreatedAt)
	}
	return s.store.Create(s.pack(r))
}

func (s *Store) Get(id string) (*history.Record, error) {
	var e recordEntity
	if err := s.store.Get(id, &e); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apierrors.NotFound(fmt.Sprintf("history record not found: %s", id))
		}
		return nil, fmt.Errorf("getting history record: %w", err)
	}
	return s.unpack(&e)
}

func (s *Store) List(repoPath string) ([]*history.Record, error) {
	var entities []recordEntity
	if err := s.store.List(&entities); err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	records := make([]*history.Record, 0, len(entities))
	for i := range entities {
		if repoPath != "" && entities[i].RepoPath != repoPath {
			continue
		}
		r, err := s.unpack(&entities[i])
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

var _ history.Box = (*Store)(nil)
