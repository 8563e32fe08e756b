package respcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/kvstore"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	store, err := kvstore.NewSQLiteStore(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewCache(store, ttl, zap.NewNop())
}

func TestCache_HitAndMiss(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "what is Go?"); ok {
		t.Error("unexpected hit on empty cache")
	}
	c.Set(ctx, "what is Go?", "a programming language")
	got, ok := c.Get(ctx, "what is Go?")
	if !ok || got != "a programming language" {
		t.Errorf("got %q, ok=%v", got, ok)
	}
}

func TestCache_LiteralKeys(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()
	c.Set(ctx, "what is Go?", "answer")

	// Trailing whitespace and case changes are different keys.
	if _, ok := c.Get(ctx, "what is Go? "); ok {
		t.Error("trailing space should miss")
	}
	if _, ok := c.Get(ctx, "what is go?"); ok {
		t.Error("case change should miss")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t, 10*time.Millisecond)
	ctx := context.Background()
	c.Set(ctx, "q", "a")
	if _, ok := c.Get(ctx, "q"); !ok {
		t.Fatal("entry should be live immediately after set")
	}
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get(ctx, "q"); ok {
		t.Error("entry should have expired")
	}
}

type brokenStore struct {
	kvstore.Store
}

func (b brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func (b brokenStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("disk on fire")
}

func TestCache_StoreFailureDegradesToMiss(t *testing.T) {
	c := NewCache(brokenStore{}, time.Hour, zap.NewNop())
	ctx := context.Background()
	if _, ok := c.Get(ctx, "q"); ok {
		t.Error("read failure must be a miss")
	}
	// Set must not panic or surface the failure.
	c.Set(ctx, "q", "a")
}
