// internal/session/storage/store.go
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	apierrors "repodeck/internal/errors"
	"repodeck/internal/session"
	"repodeck/internal/storage"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Store persists sessions in badger and keeps recently used ones in an
// LRU cache. Cached values are copies; callers never share a *Session.
type Store struct {
	store *storage.BadgerStore
	cache *lru.Cache[string, session.Session]
	mu    sync.Mutex
}

func NewStore(db *badger.DB, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, session.Session](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	return &Store{
		store: storage.NewBadgerStore(db, "session"),
		cache: cache,
	}, nil
}

// sessionEntity wraps session.Session to implement storage.Entity
type sessionEntity struct {
	*session.Session
}

func (s *sessionEntity) GetID() string {
	return s.ID
}

func validate(s *session.Session) error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Selection.RepoPath == "" {
		return fmt.Errorf("repo path is required")
	}
	return nil
}

func notFound(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apierrors.NotFound(fmt.Sprintf("session not found: %s", id))
	}
	return err
}

func (s *Store) Create(sess *session.Session) error {
	if err := validate(sess); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	sess.UpdatedAt = sess.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Create(&sessionEntity{Session: sess}); err != nil {
		return err
	}
	s.cache.Add(sess.ID, *sess)
	return nil
}

func (s *Store) Get(id string) (*session.Session, error) {
	if cached, ok := s.cache.Get(id); ok {
		return &cached, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// load reads through to badger; callers hold s.mu so an older copy never
// replaces a newer cache entry.
func (s *Store) load(id string) (*session.Session, error) {
	entity := sessionEntity{Session: &session.Session{}}
	if err := s.store.Get(id, &entity); err != nil {
		return nil, notFound(id, err)
	}
	s.cache.Add(id, *entity.Session)
	return entity.Session, nil
}

// Modify reads, changes and writes a session while holding the store lock,
// the same lock MarkStale takes.
func (s *Store) Modify(id string, fn func(*session.Session) error) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sess *session.Session
	if cached, ok := s.cache.Get(id); ok {
		sess = &cached
	} else {
		loaded, err := s.load(id)
		if err != nil {
			return nil, err
		}
		sess = loaded
	}

	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := validate(sess); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(&sessionEntity{Session: sess}); err != nil {
		return nil, notFound(id, err)
	}
	s.cache.Add(id, *sess)
	return sess, nil
}

func (s *Store) Update(sess *session.Session) error {
	if err := validate(sess); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}
	sess.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Update(&sessionEntity{Session: sess}); err != nil {
		return notFound(sess.ID, err)
	}
	s.cache.Add(sess.ID, *sess)
	return nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
	return notFound(id, s.store.Delete(id))
}

func (s *Store) List() ([]*session.Session, error) {
	var entities []sessionEntity
	if err := s.store.List(&entities); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	sessions := make([]*session.Session, len(entities))
	for i, entity := range entities {
		sessions[i] = entity.Session
	}
	return sessions, nil
}

func (s *Store) MarkStale(absFile string) (int, error) {
	absFile = filepath.Clean(absFile)

	s.mu.Lock()
	defer s.mu.Unlock()

	var entities []sessionEntity
	if err := s.store.List(&entities); err != nil {
		return 0, fmt.Errorf("listing sessions: %w", err)
	}

	marked := 0
	for _, entity := range entities {
		sess := entity.Session
		if sess.Stale || sess.File() != absFile {
			continue
		}
		sess.Stale = true
		sess.UpdatedAt = time.Now().UTC()
		if err := s.store.Update(&sessionEntity{Session: sess}); err != nil {
			return marked, fmt.Errorf("marking session %s stale: %w", sess.ID, err)
		}
		s.cache.Add(sess.ID, *sess)
		marked++
	}
	return marked, nil
}

var _ session.Box = (*Store)(nil)
