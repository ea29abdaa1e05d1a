package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	q, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestQueueFIFOPerKey(t *testing.T) {
	ctx := context.Background()
	q := openTest(t)

	if _, err := q.Put(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := q.Put(ctx, "a", []byte("2")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	e, err := q.Head(ctx, "a")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if string(e.Value) != "1" {
		t.Fatalf("head value = %q, want 1", e.Value)
	}

	if err := q.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	e2, err := q.Head(ctx, "a")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if string(e2.Value) != "2" {
		t.Fatalf("head value = %q, want 2", e2.Value)
	}

	if err := q.Delete(ctx, e2.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := q.Head(ctx, "a"); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Head after drain: err = %v, want ErrEmpty", err)
	}
}

func TestQueueAllOrdering(t *testing.T) {
	ctx := context.Background()
	q := openTest(t)

	for _, kv := range []struct{ k, v string }{{"x", "1"}, {"y", "2"}, {"x", "3"}} {
		if _, err := q.Put(ctx, kv.k, []byte(kv.v)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	all, err := q.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	want := []string{"1", "2", "3"}
	for i, e := range all {
		if string(e.Value) != want[i] {
			t.Fatalf("entry %d = %q, want %q", i, e.Value, want[i])
		}
	}
}

func TestQueueDeleteKey(t *testing.T) {
	ctx := context.Background()
	q := openTest(t)

	q.Put(ctx, "a", []byte("1"))
	q.Put(ctx, "a", []byte("2"))
	q.Put(ctx, "b", []byte("3"))

	if err := q.DeleteKey(ctx, "a"); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}
}
