package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"stakeduel-backend/internal/storage"
)

func TestPutGetListDelete(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "snapshots/current"); err != storage.ErrNotFound {
		t.Fatalf("get missing err = %v, want ErrNotFound", err)
	}

	for _, kv := range []struct{ k, v string }{
		{"snapshots/archive/2", "b"},
		{"snapshots/archive/1", "a"},
		{"snapshots/current", "c"},
	} {
		if err := store.Put(ctx, kv.k, []byte(kv.v)); err != nil {
			t.Fatalf("put %s: %v", kv.k, err)
		}
	}
	if err := store.Put(ctx, "snapshots/current", []byte("c2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := store.Get(ctx, "snapshots/current")
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if string(got) != "c2" {
		t.Fatalf("current = %q, want %q", got, "c2")
	}

	keys, err := store.List(ctx, "snapshots/archive/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0] != "snapshots/archive/1" || keys[1] != "snapshots/archive/2" {
		t.Fatalf("keys = %v", keys)
	}

	if err := store.Delete(ctx, "snapshots/archive/1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	keys, err = store.List(ctx, "snapshots/archive/")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("keys after delete = %v", keys)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stakeduel.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("value = %q, want %q", got, "v")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
