package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pkg.aura.care/moodfeed/internal/storage"
	"pkg.aura.care/moodfeed/internal/storage/storagetest"
)

func TestGetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Get(ctx, "c", "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get on empty store: got %v, want ErrNotFound", err)
	}

	doc := storage.Document{"n": 1}
	if err := s.Put(ctx, "c", "a", doc); err != nil {
		t.Fatal(err)
	}
	doc["n"] = 2 // the store must have copied it

	got, err := s.Get(ctx, "c", "a")
	if err != nil {
		t.Fatal(err)
	}
	if got["n"] != 1 {
		t.Fatalf("got n=%v, want 1", got["n"])
	}

	if err := s.Delete(ctx, "c", "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "c", "a"); err != nil {
		t.Fatalf("deleting an absent document: %v", err)
	}
	if _, err := s.Get(ctx, "c", "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get after delete: got %v, want ErrNotFound", err)
	}
}

func TestQueryOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	put := func(id string, doc storage.Document) {
		if err := s.Put(ctx, "posts", id, doc); err != nil {
			t.Fatal(err)
		}
	}
	put("b", storage.Document{"at": int64(20)})
	put("a", storage.Document{"at": 20.0})
	put("c", storage.Document{"at": int64(30)})
	put("d", storage.Document{"at": int64(10)})
	put("e", storage.Document{})
	if err := s.Put(ctx, "other", "z", storage.Document{"at": int64(99)}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		q    storage.Query
		want []string
	}{
		{"descending", storage.Query{Collection: "posts", OrderBy: "at", Descending: true}, []string{"c", "a", "b", "d", "e"}},
		{"ascending", storage.Query{Collection: "posts", OrderBy: "at"}, []string{"d", "a", "b", "c", "e"}},
		{"limited", storage.Query{Collection: "posts", OrderBy: "at", Descending: true, Limit: 2}, []string{"c", "a"}},
		{"empty collection", storage.Query{Collection: "none", OrderBy: "at"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps, err := s.Query(ctx, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(snaps) != len(tt.want) {
				t.Fatalf("got %d snapshots, want %d", len(snaps), len(tt.want))
			}
			for i, id := range tt.want {
				if snaps[i].ID != id {
					t.Errorf("position %d: got %q, want %q", i, snaps[i].ID, id)
				}
			}
		})
	}
}

func TestTransactionCommitsAtomically(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Put(ctx, "c", "gone", storage.Document{}); err != nil {
		t.Fatal(err)
	}

	err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
		tx.Put("c", "new", storage.Document{"v": "x"})
		tx.Delete("c", "gone")

		// reads see the body's own writes
		if _, err := tx.Get(ctx, "c", "new"); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, "c", "gone"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("deleted document visible inside its transaction: %v", err)
		}
		// but nobody else sees them yet
		if _, err := s.Get(ctx, "c", "new"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("uncommitted write visible outside the transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get(ctx, "c", "new"); err != nil {
		t.Errorf("committed write missing: %v", err)
	}
	if _, err := s.Get(ctx, "c", "gone"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("committed delete not applied: %v", err)
	}
}

func TestTransactionBodyErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
		tx.Put("c", "a", storage.Document{})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want the body's error", err)
	}
	if _, err := s.Get(ctx, "c", "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("write from failed transaction was committed")
	}
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Put(ctx, "c", "counter", storage.Document{"n": int64(0)}); err != nil {
		t.Fatal(err)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
				doc, err := tx.Get(ctx, "c", "counter")
				if err != nil {
					return err
				}
				tx.Put("c", "counter", storage.Document{"n": doc["n"].(int64) + 1})
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	doc, err := s.Get(ctx, "c", "counter")
	if err != nil {
		t.Fatal(err)
	}
	if doc["n"] != int64(workers) {
		t.Fatalf("got n=%v, want %d", doc["n"], workers)
	}
}

func TestTransactionGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	s := New(WithMaxAttempts(3))
	if err := s.Put(ctx, "c", "a", storage.Document{}); err != nil {
		t.Fatal(err)
	}

	runs := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
		runs++
		if _, err := tx.Get(ctx, "c", "a"); err != nil {
			return err
		}
		// a competing writer sneaks in before every commit
		if err := s.Put(ctx, "c", "a", storage.Document{"run": runs}); err != nil {
			return err
		}
		tx.Put("c", "a", storage.Document{"mine": true})
		return nil
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
	if runs != 3 {
		t.Fatalf("body ran %d times, want 3", runs)
	}
}

func TestTransactionsOnDifferentDocumentsDoNotConflict(t *testing.T) {
	ctx := context.Background()
	s := New(WithMaxAttempts(1))

	err := s.RunTransaction(ctx, func(ctx context.Context, tx storage.Txn) error {
		if _, err := tx.Get(ctx, "c", "a"); !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err := s.Put(ctx, "c", "b", storage.Document{}); err != nil {
			return err
		}
		tx.Put("c", "a", storage.Document{})
		return nil
	})
	if err != nil {
		t.Fatalf("unrelated write caused a conflict: %v", err)
	}
}

func TestContract(t *testing.T) {
	storagetest.Run(t, New(), "")
}
