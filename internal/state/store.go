package state

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
)

// Store owns the snapshots of every search. Callers only get copies.
//
// Writes are read-merge-write cycles serialised by a mutex: the backend
// document is re-read, the updated searches are replaced, and the whole
// document is written back in one atomic Write. Searches not part of an
// update are carried over untouched.
type Store struct {
	backend Backend
	logger  logger.Logger

	mu  sync.Mutex
	doc Document
}

// Open reads the current document. A missing document is a first run and
// yields an empty store; an unreadable or corrupt one is a
// *domain.PersistenceError, since starting empty would wipe the history.
func Open(ctx context.Context, backend Backend, log logger.Logger) (*Store, error) {
	s := &Store{backend: backend, logger: log}
	doc, existed, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if !existed {
		log.Warn("state document does not exist, it will be created after the first run",
			logger.String("backend", backend.Name()))
	} else {
		log.Debug("state document loaded",
			logger.String("backend", backend.Name()),
			logger.Int("searches", len(doc)))
	}
	s.doc = doc
	return s, nil
}

// Load returns the snapshot of a search; empty when the search was never saved.
func (s *Store) Load(name string) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.snapshot(name)
}

// Names returns the searches that have a snapshot, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.doc))
	for name := range s.doc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save replaces the snapshot of one search.
func (s *Store) Save(ctx context.Context, name string, ads []domain.Ad) error {
	return s.SaveAll(ctx, map[string][]domain.Ad{name: ads})
}

// SaveAll replaces the snapshots of several searches in a single write.
func (s *Store) SaveAll(ctx context.Context, updates map[string][]domain.Ad) error {
	if len(updates) == 0 {
		return nil
	}
	return s.update(ctx, func(doc Document) {
		for name, ads := range updates {
			doc.put(name, ads)
		}
	})
}

// Prune drops the snapshots of searches not listed in keep and returns the
// removed names.
func (s *Store) Prune(ctx context.Context, keep []string) ([]string, error) {
	wanted := make(map[string]bool, len(keep))
	for _, name := range keep {
		wanted[name] = true
	}

	var removed []string
	err := s.update(ctx, func(doc Document) {
		for name := range doc {
			if !wanted[name] {
				delete(doc, name)
				removed = append(removed, name)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(removed)
	return removed, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) update(ctx context.Context, mutate func(Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, err := s.read(ctx)
	if err != nil {
		return err
	}
	doc = doc.clone()
	mutate(doc)

	data, err := doc.encode()
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Backend: s.backend.Name(), Err: err}
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return &domain.PersistenceError{Op: "write", Backend: s.backend.Name(), Err: err}
	}
	s.doc = doc
	return nil
}

func (s *Store) read(ctx context.Context) (Document, bool, error) {
	data, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNotExist) {
		return Document{}, false, nil
	}
	if err != nil {
		return nil, false, &domain.PersistenceError{Op: "read", Backend: s.backend.Name(), Err: err}
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, true, &domain.PersistenceError{Op: "decode", Backend: s.backend.Name(), Err: err}
	}
	return doc, true, nil
}
