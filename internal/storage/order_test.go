package storage

import (
	"testing"
	"time"
)

func TestCompare(t *testing.T) {
	now := time.Now()
	tests := []struct {
		a, b interface{}
		want int
	}{
		{int64(1), 2.0, -1},
		{3, int64(3), 0},
		{float32(5), uint(4), 1},
		{"a", "b", -1},
		{now, now.Add(time.Second), -1},
		{int64(100), "1", -1},
		{"x", int64(1), 1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestWriteSetLastWriteWins(t *testing.T) {
	w := NewWriteSet()
	w.Put("c", "a", Document{"v": 1})
	w.Put("c", "b", Document{"v": 1})
	w.Delete("c", "a")
	w.Put("c", "b", Document{"v": 2})

	if w.Len() != 2 {
		t.Fatalf("got %d writes, want 2", w.Len())
	}
	if doc, ok := w.Lookup("c", "a"); !ok || doc != nil {
		t.Errorf("a: got (%v, %v), want a buffered delete", doc, ok)
	}
	if doc, ok := w.Lookup("c", "b"); !ok || doc["v"] != 2 {
		t.Errorf("b: got (%v, %v), want v=2", doc, ok)
	}
	if _, ok := w.Lookup("c", "z"); ok {
		t.Errorf("z was never written")
	}

	writes := w.Writes()
	if writes[0].ID != "a" || writes[1].ID != "b" {
		t.Errorf("writes not in first-touched order: %+v", writes)
	}
}

func TestWriteSetCreate(t *testing.T) {
	w := NewWriteSet()
	w.Create("c", "a", Document{"v": 1})
	w.Put("c", "a", Document{"v": 2})
	w.Create("c", "b", nil)
	w.Delete("c", "b")

	writes := w.Writes()
	if len(writes) != 2 {
		t.Fatalf("got %d writes, want 2", len(writes))
	}
	if !writes[0].Create || writes[0].Doc["v"] != 2 {
		t.Errorf("a: got %+v, want an insert of v=2", writes[0])
	}
	if writes[1].Create || writes[1].Doc != nil {
		t.Errorf("b: got %+v, want a plain delete", writes[1])
	}
}

func TestEncodeDecode(t *testing.T) {
	b, err := Encode(Document{"n": int64(42), "s": "x"})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if doc["n"] != 42.0 || doc["s"] != "x" {
		t.Fatalf("got %v", doc)
	}
	if _, err := Decode([]byte("{")); err == nil {
		t.Fatal("expected an error for truncated JSON")
	}
}
