package gormstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"pkg.aura.care/moodfeed/internal/storage"
	"pkg.aura.care/moodfeed/internal/storage/storagetest"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:moodfeed-%d?mode=memory&cache=shared", time.Now().UnixNano())
	s, err := Open(zap.NewNop(), DialectSQLite, dsn, false)
	if err != nil {
		t.Fatalf("couldn't open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContract(t *testing.T) {
	storagetest.Run(t, openSQLite(t), "")
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	if _, err := Open(zap.NewNop(), "oracle", "x", false); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := Open(zap.NewNop(), DialectSQLite, "", false); err == nil {
		t.Fatal("expected an error for an empty dsn")
	}
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	if err := s.Put(ctx, "c", "a", storage.Document{"v": "one", "extra": true}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "c", "a", storage.Document{"v": "two"}); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Get(ctx, "c", "a")
	if err != nil {
		t.Fatal(err)
	}
	if doc["v"] != "two" {
		t.Fatalf("got v=%v, want two", doc["v"])
	}
	if _, ok := doc["extra"]; ok {
		t.Fatal("Put must replace the whole document")
	}
}
