package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no document exists under the given id.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when an optimistic transaction kept losing
	// against concurrent writers until its attempts ran out.
	ErrConflict = errors.New("transaction conflict")
	// ErrAlreadyExists fails a commit whose Create targeted a document that
	// was already there. Nothing of that transaction is written.
	ErrAlreadyExists = errors.New("document already exists")
)

// DefaultMaxAttempts bounds how often a transaction body is re-run after a conflict.
const DefaultMaxAttempts = 25

// Document is a schemaless record. Values are scalars (strings, numbers, bools, times).
type Document = map[string]interface{}

// Snapshot is a document together with its id, as returned by queries.
type Snapshot struct {
	ID   string
	Data Document
}

// Query selects a single ordered page of a collection.
type Query struct {
	Collection string
	OrderBy    string
	Descending bool
	// Limit <= 0 means no limit.
	Limit int
}

// Txn is the handle a transaction body reads and writes through. Writes are
// buffered and only become visible when the whole body commits.
type Txn interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(collection, id string, doc Document)
	// Create is Put for a document that must not exist yet when the
	// transaction commits, even if a concurrent transaction inserts it first.
	Create(collection, id string, doc Document)
	Delete(collection, id string)
}

// TxnFunc is a transaction body. It may run more than once.
type TxnFunc func(ctx context.Context, tx Txn) error

type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Snapshot, error)
	RunTransaction(ctx context.Context, fn TxnFunc) error
	Close() error
}

// Clone returns a shallow copy of d.
func Clone(d Document) Document {
	if d == nil {
		return nil
	}
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}
