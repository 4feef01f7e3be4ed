package cacheinfra

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-repository-kit/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryStore(t *testing.T) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := Config{
		Capacity:           100,
		NumShards:          4,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	}
	store, err := NewMemoryStore(cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	return store, clock
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}
	if cfg.NumShards != 256 {
		t.Errorf("expected NumShards to be 256, got %d", cfg.NumShards)
	}
	if cfg.TTL != 5*time.Minute {
		t.Errorf("expected TTL to be 5 minutes, got %v", cfg.TTL)
	}
	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "valid default config", mutate: func(*Config) {}},
		{name: "zero capacity", mutate: func(c *Config) { c.Capacity = 0 }, field: "Capacity"},
		{name: "negative shards", mutate: func(c *Config) { c.NumShards = -1 }, field: "NumShards"},
		{name: "zero TTL", mutate: func(c *Config) { c.TTL = 0 }, field: "TTL"},
		{name: "eviction percentage too low", mutate: func(c *Config) { c.EvictionPercentage = 0 }, field: "EvictionPercentage"},
		{name: "eviction percentage too high", mutate: func(c *Config) { c.EvictionPercentage = 101 }, field: "EvictionPercentage"},
		{name: "negative eviction interval", mutate: func(c *Config) { c.EvictionInterval = -time.Second }, field: "EvictionInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("expected no error but got: %v", err)
				}
				return
			}

			var cfgErr *cache.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *cache.ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestConfig_SturdycOptions(t *testing.T) {
	cfg := DefaultConfig()
	if got := len(cfg.sturdycOptions()); got != 0 {
		t.Errorf("expected no sturdyc options for default config, got %d", got)
	}

	cfg.EvictionInterval = time.Minute
	if got := len(cfg.sturdycOptions()); got != 1 {
		t.Errorf("expected 1 sturdyc option with an eviction interval, got %d", got)
	}
}

func TestNewMemoryStore_InvalidConfig(t *testing.T) {
	store, err := NewMemoryStore(Config{Capacity: 10, NumShards: 1, EvictionPercentage: 10})
	if err == nil {
		t.Fatal("expected error for zero TTL")
	}
	if err.Error() != "config error in field TTL: must be greater than 0" {
		t.Errorf("unexpected error message: %v", err)
	}
	if store != nil {
		t.Error("expected store to be nil when error occurs")
	}
}

func TestMemoryStore_GetSet(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != "v1" {
		t.Errorf("expected v1, got %q", got)
	}
}

func TestMemoryStore_EmptyPayloadIsAHit(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "empty", []byte{}, time.Minute)
	got, ok, _ := store.Get(ctx, "empty")
	if !ok {
		t.Fatal("empty payload must still be present")
	}
	if len(got) != 0 {
		t.Errorf("expected empty payload, got %q", got)
	}
}

func TestMemoryStore_CopiesValue(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	buf := []byte("abc")
	_ = store.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'z'

	got, _, _ := store.Get(ctx, "k")
	if !bytes.Equal(got, []byte("abc")) {
		t.Errorf("stored value changed with caller buffer: %q", got)
	}
}

func TestMemoryStore_PerEntryTTL(t *testing.T) {
	store, clock := newTestMemoryStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "short", []byte("s"), 30*time.Second)
	_ = store.Set(ctx, "long", []byte("l"), 10*time.Minute)

	clock.Advance(29 * time.Second)
	if _, ok, _ := store.Get(ctx, "short"); !ok {
		t.Error("short entry expired early")
	}

	clock.Advance(time.Second)
	if _, ok, _ := store.Get(ctx, "short"); ok {
		t.Error("short entry should expire at its TTL")
	}
	if _, ok, _ := store.Get(ctx, "long"); !ok {
		t.Error("long entry should still be present")
	}
}

func TestMemoryStore_TTLClampedToConfig(t *testing.T) {
	store, clock := newTestMemoryStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "forever", []byte("x"), 48*time.Hour)
	_ = store.Set(ctx, "unset", []byte("y"), 0)

	clock.Advance(time.Hour)
	for _, key := range []string{"forever", "unset"} {
		if _, ok, _ := store.Get(ctx, key); ok {
			t.Errorf("%s should be clamped to the store TTL", key)
		}
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	_ = store.Set(ctx, "k", []byte("v"), time.Minute)
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("expected key to be removed")
	}
	if err := store.Delete(ctx, "never-set"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestMemoryStore_DeletePrefix(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	for _, key := range []string{"product::FindByID::1", "product::Find::x", "order::FindByID::1"} {
		_ = store.Set(ctx, key, []byte("v"), time.Minute)
	}

	if err := store.DeletePrefix(ctx, "product::"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", store.Len())
	}
	if _, ok, _ := store.Get(ctx, "order::FindByID::1"); !ok {
		t.Error("entries outside the prefix must survive")
	}
}

func TestMemoryStore_WithCacher(t *testing.T) {
	store, clock := newTestMemoryStore(t)
	c, err := cache.New(store, cache.WithConfig(cache.Config{TTL: time.Minute}))
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	calls := 0
	count := cache.Wrap(c, cache.Options{Scope: "order", Method: "Count"}, func(context.Context, string) (int, error) {
		calls++
		return 0, nil
	})
	ctx := context.Background()

	_, _ = count(ctx, "pending")
	_, _ = count(ctx, "pending")
	if calls != 1 {
		t.Errorf("expected one call while fresh, got %d", calls)
	}

	clock.Advance(time.Minute)
	_, _ = count(ctx, "pending")
	if calls != 2 {
		t.Errorf("expected a refetch after TTL, got %d calls", calls)
	}
}
