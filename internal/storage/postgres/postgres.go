// Package postgres stores documents as jsonb rows in a single PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/storage"
)

const schema = `create table if not exists documents (
	collection text not null,
	id text not null,
	data jsonb not null default '{}'::jsonb,
	primary key (collection, id)
)`

// SQLSTATEs worth re-running a transaction for.
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

type Store struct {
	logger      *zap.Logger
	pool        *pgxpool.Pool
	maxAttempts int
}

var _ storage.Store = (*Store)(nil)

func NewStore(l *zap.Logger, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = storage.DefaultMaxAttempts
	}
	return &Store{logger: l, maxAttempts: maxAttempts}
}

// Connect opens the pool and makes sure the documents table exists.
func (s *Store) Connect(ctx context.Context, dsn string) error {
	var err error
	if s.pool, err = pgxpool.Connect(ctx, dsn); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		s.pool.Close()
		return fmt.Errorf("couldn't create documents table: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	return get(ctx, s.pool, `select data from documents where collection = $1 and id = $2`, collection, id)
}

func (s *Store) Put(ctx context.Context, collection, id string, doc storage.Document) error {
	return put(ctx, s.pool, collection, id, doc)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return del(ctx, s.pool, collection, id)
}

func (s *Store) Query(ctx context.Context, q storage.Query) ([]storage.Snapshot, error) {
	order := "id asc"
	args := []interface{}{q.Collection}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		args = append(args, q.OrderBy)
		order = fmt.Sprintf("data->($2::text) %s nulls last, id asc", dir)
	}
	var limit interface{}
	if q.Limit > 0 {
		limit = q.Limit
	}
	args = append(args, limit)
	sql := fmt.Sprintf(`select id, data from documents where collection = $1 order by %s limit $%d`, order, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := make([]storage.Snapshot, 0)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := storage.Decode(raw)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, storage.Snapshot{ID: id, Data: doc})
	}
	return snaps, rows.Err()
}

// RunTransaction runs fn inside a read-committed transaction. Reads lock the
// rows they find, so a concurrent body touching the same document waits and
// then sees the committed value.
func (s *Store) RunTransaction(ctx context.Context, fn storage.TxnFunc) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.pool.BeginTxFunc(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ptx pgx.Tx) error {
			tx := &txn{tx: ptx, writes: storage.NewWriteSet()}
			if err := fn(ctx, tx); err != nil {
				return err
			}
			return tx.flush(ctx)
		})
		if !retryable(err) {
			return err
		}
		s.logger.Debug("Retrying conflicting transaction.", zap.Int("attempt", attempt), zap.Error(err))
	}
	return fmt.Errorf("gave up after %d attempts: %w (%s)", s.maxAttempts, storage.ErrConflict, err)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected
	}
	return false
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

type txn struct {
	tx     pgx.Tx
	writes *storage.WriteSet
}

func (t *txn) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if doc, ok := t.writes.Lookup(collection, id); ok {
		if doc == nil {
			return nil, storage.ErrNotFound
		}
		return doc, nil
	}
	return get(ctx, t.tx, `select data from documents where collection = $1 and id = $2 for update`, collection, id)
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

func (t *txn) flush(ctx context.Context) error {
	for _, w := range t.writes.Writes() {
		var err error
		switch {
		case w.Doc == nil:
			err = del(ctx, t.tx, w.Collection, w.ID)
		case w.Create:
			err = insert(ctx, t.tx, w.Collection, w.ID, w.Doc)
		default:
			err = put(ctx, t.tx, w.Collection, w.ID, w.Doc)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
