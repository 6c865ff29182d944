// Package redisstore keeps documents as JSON strings in Redis.
//
// Layout:
//
//	doc:<collection>:<id>  JSON document
//	col:<collection>       set of document ids
//
// Transactions WATCH every key they read and commit their buffered writes in
// one MULTI/EXEC; a watched key changing underneath aborts the EXEC and the
// body is re-run.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/storage"
)

type Store struct {
	logger      *zap.Logger
	rdb         *redis.Client
	maxAttempts int
}

var _ storage.Store = (*Store)(nil)

type Config struct {
	Address     string
	Password    string
	DB          int
	MaxAttempts int
}

// Connect creates the client and pings the server.
func Connect(ctx context.Context, l *zap.Logger, cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("couldn't reach redis at %s: %w", cfg.Address, err)
	}
	return NewStore(l, rdb, cfg.MaxAttempts), nil
}

func NewStore(l *zap.Logger, rdb *redis.Client, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = storage.DefaultMaxAttempts
	}
	return &Store{logger: l, rdb: rdb, maxAttempts: maxAttempts}
}

func docKey(collection, id string) string { return fmt.Sprintf("doc:%s:%s", collection, id) }
func colKey(collection string) string     { return fmt.Sprintf("col:%s", collection) }

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	return get(ctx, s.rdb, collection, id)
}

func (s *Store) Put(ctx context.Context, collection, id string, doc storage.Document) error {
	b, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(collection, id), b, 0)
		pipe.SAdd(ctx, colKey(collection), id)
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(collection, id))
		pipe.SRem(ctx, colKey(collection), id)
		return nil
	})
	return err
}

// Query loads the whole collection and orders it client-side.
func (s *Store) Query(ctx context.Context, q storage.Query) ([]storage.Snapshot, error) {
	ids, err := s.rdb.SMembers(ctx, colKey(q.Collection)).Result()
	if err != nil {
		return nil, err
	}
	snaps := make([]storage.Snapshot, 0, len(ids))
	if len(ids) == 0 {
		return snaps, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(q.Collection, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// removed between SMEMBERS and MGET
			continue
		}
		doc, err := storage.Decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, storage.Snapshot{ID: ids[i], Data: doc})
	}
	return storage.Apply(snaps, q), nil
}

func (s *Store) RunTransaction(ctx context.Context, fn storage.TxnFunc) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &txn{rtx: rtx, writes: storage.NewWriteSet()}
			if err := fn(ctx, tx); err != nil {
				return err
			}
			if tx.writes.Len() == 0 {
				return nil
			}
			if err := tx.checkCreates(ctx); err != nil {
				return err
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return tx.flush(ctx, pipe)
			})
			return err
		})
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug("Retrying conflicting transaction.", zap.Int("attempt", attempt))
	}
	return fmt.Errorf("gave up after %d attempts: %w", s.maxAttempts, storage.ErrConflict)
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

type txn struct {
	rtx    *redis.Tx
	writes *storage.WriteSet
}

func (t *txn) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if doc, ok := t.writes.Lookup(collection, id); ok {
		if doc == nil {
			return nil, storage.ErrNotFound
		}
		return doc, nil
	}
	if err := t.rtx.Watch(ctx, docKey(collection, id)).Err(); err != nil {
		return nil, err
	}
	return get(ctx, t.rtx, collection, id)
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

// checkCreates watches every key the body creates and fails if one exists.
// A key appearing after the check aborts the EXEC instead.
func (t *txn) checkCreates(ctx context.Context) error {
	for _, w := range t.writes.Writes() {
		if !w.Create {
			continue
		}
		key := docKey(w.Collection, w.ID)
		if err := t.rtx.Watch(ctx, key).Err(); err != nil {
			return err
		}
		n, err := t.rtx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, storage.ErrAlreadyExists)
		}
	}
	return nil
}

func (t *txn) flush(ctx context.Context, pipe redis.Pipeliner) error {
	for _, w := range t.writes.Writes() {
		if w.Doc == nil {
			pipe.Del(ctx, docKey(w.Collection, w.ID))
			pipe.SRem(ctx, colKey(w.Collection), w.ID)
			continue
		}
		b, err := storage.Encode(w.Doc)
		if err != nil {
			return err
		}
		pipe.Set(ctx, docKey(w.Collection, w.ID), b, 0)
		pipe.SAdd(ctx, colKey(w.Collection), w.ID)
	}
	return nil
}

func get(ctx context.Context, c redis.Cmdable, collection, id string) (storage.Document, error) {
	raw, err := c.Get(ctx, docKey(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return storage.Decode(raw)
}
