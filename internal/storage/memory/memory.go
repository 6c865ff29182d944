// Package memory is an in-process document store with optimistic transactions.
//
// Every document carries a version. A transaction records the version of each
// document it reads (0 for absent ones) and, at commit, checks under the store
// lock that none of them moved. Conflicting bodies are re-run, so concurrent
// read-modify-writes on the same document never lose an update while
// transactions touching different documents never conflict.
package memory

import (
	"context"
	"fmt"
	"sync"

	"pkg.aura.care/moodfeed/internal/storage"
)

type record struct {
	version uint64
	doc     storage.Document
}

type Store struct {
	mu          sync.RWMutex
	docs        map[storage.Key]*record
	clock       uint64
	maxAttempts int
}

var _ storage.Store = (*Store)(nil)

type Option func(*Store)

// WithMaxAttempts caps how often a conflicting transaction body is re-run.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{docs: make(map[storage.Key]*record), maxAttempts: storage.DefaultMaxAttempts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.docs[storage.Key{Collection: collection, ID: id}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.Clone(r.doc), nil
}

func (s *Store) Put(ctx context.Context, collection, id string, doc storage.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(storage.Key{Collection: collection, ID: id}, storage.Clone(doc))
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, storage.Key{Collection: collection, ID: id})
	return nil
}

func (s *Store) Query(ctx context.Context, q storage.Query) ([]storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	snaps := make([]storage.Snapshot, 0)
	for k, r := range s.docs {
		if k.Collection == q.Collection {
			snaps = append(snaps, storage.Snapshot{ID: k.ID, Data: storage.Clone(r.doc)})
		}
	}
	s.mu.RUnlock()
	return storage.Apply(snaps, q), nil
}

func (s *Store) RunTransaction(ctx context.Context, fn storage.TxnFunc) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &txn{store: s, reads: make(map[storage.Key]uint64), writes: storage.NewWriteSet()}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		ok, err := s.commit(tx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", s.maxAttempts, storage.ErrConflict)
}

// commit reports false when a read went stale and the body should be re-run.
func (s *Store) commit(tx *txn) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range tx.reads {
		if s.version(k) != v {
			return false, nil
		}
	}
	writes := tx.writes.Writes()
	for _, w := range writes {
		if _, exists := s.docs[w.Key]; w.Create && exists {
			return false, fmt.Errorf("%s/%s: %w", w.Collection, w.ID, storage.ErrAlreadyExists)
		}
	}
	for _, w := range writes {
		if w.Doc == nil {
			delete(s.docs, w.Key)
		} else {
			s.write(w.Key, w.Doc)
		}
	}
	return true, nil
}

// write must be called with mu held.
func (s *Store) write(k storage.Key, doc storage.Document) {
	if doc == nil {
		doc = storage.Document{}
	}
	s.clock++
	s.docs[k] = &record{version: s.clock, doc: doc}
}

func (s *Store) version(k storage.Key) uint64 {
	if r, ok := s.docs[k]; ok {
		return r.version
	}
	return 0
}

func (s *Store) Close() error {
	return nil
}

type txn struct {
	store  *Store
	reads  map[storage.Key]uint64
	writes *storage.WriteSet
}

func (t *txn) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc, ok := t.writes.Lookup(collection, id); ok {
		if doc == nil {
			return nil, storage.ErrNotFound
		}
		return doc, nil
	}
	k := storage.Key{Collection: collection, ID: id}
	t.store.mu.RLock()
	r, ok := t.store.docs[k]
	var doc storage.Document
	var version uint64
	if ok {
		doc, version = storage.Clone(r.doc), r.version
	}
	t.store.mu.RUnlock()
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = version
	}
	if !ok {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

func (t *txn) Put(collection, id string, doc storage.Document) {
	t.writes.Put(collection, id, doc)
}

func (t *txn) Create(collection, id string, doc storage.Document) {
	t.writes.Create(collection, id, doc)
}

func (t *txn) Delete(collection, id string) {
	t.writes.Delete(collection, id)
}
