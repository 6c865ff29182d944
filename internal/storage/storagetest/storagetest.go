// Package storagetest holds behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"pkg.aura.care/moodfeed/internal/storage"
)

// Run exercises s against the storage.Store contract. Collections are
// prefixed with prefix so runs against shared servers do not collide.
func Run(t *testing.T, s storage.Store, prefix string) {
	t.Helper()
	ctx := context.Background()
	col := func(name string) string { return prefix + name }

	t.Run("PutGetDelete", func(t *testing.T) {
		c := col("crud")
		if _, err := s.Get(ctx, c, "a"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
		if err := s.Put(ctx, c, "a", storage.Document{"name": "x", "n": int64(3)}); err != nil {
			t.Fatal(err)
		}
		doc, err := s.Get(ctx, c, "a")
		if err != nil {
			t.Fatal(err)
		}
		if doc["name"] != "x" || storage.Compare(doc["n"], int64(3)) != 0 {
			t.Fatalf("got %v", doc)
		}
		if err := s.Delete(ctx, c, "a"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get(ctx, c, "a"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("got %v after delete, want ErrNotFound", err)
		}
	})

	t.Run("QueryOrder", func(t *testing.T) {
		c := col("ordered")
		for i, id := range []string{"m", "k", "z", "a"} {
			if err := s.Put(ctx, c, id, storage.Document{"at": int64(1000 + i%3)}); err != nil {
				t.Fatal(err)
			}
		}
		snaps, err := s.Query(ctx, storage.Query{Collection: c, OrderBy: "at", Descending: true, Limit: 3})
		if err != nil {
			t.Fatal(err)
		}
		// at: m=1000 k=1001 z=1002 a=1000
		want := []string{"z", "k", "a"}
		if len(snaps) != len(want) {
			t.Fatalf("got %d snapshots, want %d", len(snaps), len(want))
		}
		for i := range want {
			if snaps[i].ID != want[i] {
				t.Errorf("position %d: got %q, want %q", i, snaps[i].ID, want[i])
			}
		}
	})

	t.Run("TransactionRollback", func(t *testing.T) {
		c := col("rollback")
		boom := errors.New("boom")
		err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
			tx.Put(c, "a", storage.Document{})
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("got %v, want boom", err)
		}
		if _, err := s.Get(ctx, c, "a"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("rolled back write is visible: %v", err)
		}
	})

	t.Run("CreateExisting", func(t *testing.T) {
		c := col("create")
		if err := s.Put(ctx, c, "a", storage.Document{"v": "first"}); err != nil {
			t.Fatal(err)
		}
		err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
			tx.Put(c, "side", storage.Document{})
			tx.Create(c, "a", storage.Document{"v": "second"})
			return nil
		})
		if !errors.Is(err, storage.ErrAlreadyExists) {
			t.Fatalf("got %v, want ErrAlreadyExists", err)
		}
		doc, err := s.Get(ctx, c, "a")
		if err != nil {
			t.Fatal(err)
		}
		if doc["v"] != "first" {
			t.Errorf("existing document was overwritten: %v", doc)
		}
		if _, err := s.Get(ctx, c, "side"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("write of a failed transaction is visible: %v", err)
		}

		if err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
			tx.Create(c, "b", storage.Document{"v": "new"})
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		if doc, err := s.Get(ctx, c, "b"); err != nil || doc["v"] != "new" {
			t.Errorf("got (%v, %v), want the created document", doc, err)
		}
	})

	t.Run("ConcurrentCreate", func(t *testing.T) {
		c := col("race")
		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
					tx.Create(c, "only", storage.Document{"winner": int64(i)})
					return nil
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		won := 0
		for err := range errs {
			switch {
			case err == nil:
				won++
			case !errors.Is(err, storage.ErrAlreadyExists):
				t.Fatal(err)
			}
		}
		if won != 1 {
			t.Fatalf("%d creates succeeded, want exactly 1", won)
		}
	})

	t.Run("ConcurrentReadModifyWrite", func(t *testing.T) {
		c := col("counter")
		if err := s.Put(ctx, c, "n", storage.Document{"n": int64(0)}); err != nil {
			t.Fatal(err)
		}
		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
					doc, err := tx.Get(ctx, c, "n")
					if err != nil {
						return err
					}
					f, _ := asInt(doc["n"])
					tx.Put(c, "n", storage.Document{"n": f + 1})
					tx.Put(c, fmt.Sprintf("member-%d", i), storage.Document{})
					return nil
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatal(err)
			}
		}
		doc, err := s.Get(ctx, c, "n")
		if err != nil {
			t.Fatal(err)
		}
		if n, _ := asInt(doc["n"]); n != workers {
			t.Fatalf("got n=%v, want %d", doc["n"], workers)
		}
	})
}

func asInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
