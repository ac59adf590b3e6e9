package keyvalue

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite("file:" + filepath.Join(t.TempDir(), "cache.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_SetAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k1", "v1", 60); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != "v1" {
		t.Fatalf("expected hit with v1, got %q %v", v, ok)
	}
}

func TestSQLite_Miss(t *testing.T) {
	s := newTestSQLite(t)

	if _, ok, err := s.Get(context.Background(), "nope"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestSQLite_Overwrite(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_ = s.Set(ctx, "k1", "v1", 60)
	if err := s.Set(ctx, "k1", "v2", 60); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	v, _, _ := s.Get(ctx, "k1")
	if v != "v2" {
		t.Fatalf("expected v2 after overwrite, got %q", v)
	}
}

func TestSQLite_TTLExpiry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k1", "v1", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// expires_at has second granularity.
	time.Sleep(1100 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "k1"); ok {
		t.Fatal("expected miss after TTL")
	}
}

func TestSQLite_Delete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_ = s.Set(ctx, "k1", "v1", 60)

	ok, err := s.Delete(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("expected delete to report existing entry, got %v %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, "k1"); ok {
		t.Fatal("second delete should report absence")
	}
}
