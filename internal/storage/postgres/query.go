package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"pkg.aura.care/moodfeed/internal/storage"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func get(ctx context.Context, q querier, sql, collection, id string) (storage.Document, error) {
	var raw []byte
	if err := q.QueryRow(ctx, sql, collection, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return storage.Decode(raw)
}

func put(ctx context.Context, q querier, collection, id string, doc storage.Document) error {
	b, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	_, err = q.Exec(
		ctx,
		`insert into documents (collection, id, data) values ($1, $2, $3::jsonb) on conflict (collection, id) do update set data = excluded.data`,
		collection, id, string(b),
	)
	return err
}

// insert adds a row that must not exist yet. A row inserted by a concurrent
// transaction blocks it until that one commits, then makes it fail.
func insert(ctx context.Context, q querier, collection, id string, doc storage.Document) error {
	b, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	tag, err := q.Exec(
		ctx,
		`insert into documents (collection, id, data) values ($1, $2, $3::jsonb) on conflict (collection, id) do nothing`,
		collection, id, string(b),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, storage.ErrAlreadyExists)
	}
	return nil
}

func del(ctx context.Context, q querier, collection, id string) error {
	_, err := q.Exec(ctx, `delete from documents where collection = $1 and id = $2`, collection, id)
	return err
}
