package di

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/internal/cacheinfra"
	"github.com/goliatone/go-repository-kit/internal/config"
	"github.com/goliatone/go-repository-kit/pkg/testsupport"
	"github.com/goliatone/go-repository-kit/repository"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() failed: %v", err)
	}
	return cfg
}

func TestNewContainer_MemoryBackend(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Cache.TTL = 2 * time.Minute

	container, err := NewContainer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if _, ok := container.Store().(*cacheinfra.MemoryStore); !ok {
		t.Errorf("Expected a memory store, got %T", container.Store())
	}
	if !container.Cacher().Enabled() {
		t.Error("Cacher should be enabled for the memory backend")
	}
	if got := container.Cacher().Config().TTL; got != 2*time.Minute {
		t.Errorf("Expected cacher TTL 2m, got %v", got)
	}
	if got := container.RepositoryConfig().MaxLimit; got != 100 {
		t.Errorf("Expected max limit 100, got %d", got)
	}
}

func TestNewContainer_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := loadConfig(t)
	cfg.Cache.Backend = config.BackendRedis
	cfg.Cache.Redis.Addr = mr.Addr()
	cfg.Cache.Redis.KeyPrefix = "di:"

	container, err := NewContainer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}

	if _, ok := container.Store().(*cacheinfra.RedisStore); !ok {
		t.Fatalf("Expected a redis store, got %T", container.Store())
	}

	ctx := context.Background()
	if err := cache.Set(ctx, container.Cacher(), "greeting", "hello", time.Minute); err != nil {
		t.Fatalf("cache.Set() failed: %v", err)
	}
	if !mr.Exists("di:greeting") {
		t.Error("Expected the entry under the configured key prefix")
	}

	if err := container.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestNewContainer_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := loadConfig(t)
	cfg.Cache.Backend = config.BackendRedis
	cfg.Cache.Redis.Addr = addr

	if _, err := NewContainer(context.Background(), cfg); err == nil {
		t.Error("Expected an error when redis cannot be reached")
	}
}

func TestNewContainer_NoneBackend(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Cache.Backend = config.BackendNone

	container, err := NewContainer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	if container.Store() != nil {
		t.Errorf("Expected no store, got %T", container.Store())
	}
	if container.Cacher().Enabled() {
		t.Error("Cacher should be disabled for the none backend")
	}
}

func TestNewContainer_WithStore(t *testing.T) {
	store, err := cacheinfra.NewMemoryStore(cacheinfra.DefaultConfig())
	if err != nil {
		t.Fatalf("NewMemoryStore() failed: %v", err)
	}
	cfg := loadConfig(t)
	cfg.Cache.Backend = config.BackendRedis
	cfg.Cache.Redis.Addr = "127.0.0.1:1"

	container, err := NewContainer(context.Background(), cfg, WithStore(store))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	if container.Store() != store {
		t.Error("Expected the injected store to be used")
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(error) bool
	}{
		{
			name:   "unknown backend",
			mutate: func(c *config.Config) { c.Cache.Backend = "memcached" },
			check: func(err error) bool {
				var cfgErr *cache.ConfigError
				return errors.As(err, &cfgErr) && cfgErr.Field == "cache.backend"
			},
		},
		{
			name:   "zero ttl",
			mutate: func(c *config.Config) { c.Cache.TTL = 0 },
			check: func(err error) bool {
				var cfgErr *cache.ConfigError
				return errors.As(err, &cfgErr) && cfgErr.Field == "TTL"
			},
		},
		{
			name:   "bad memory capacity",
			mutate: func(c *config.Config) { c.Cache.Memory.Capacity = 0 },
			check: func(err error) bool {
				var cfgErr *cache.ConfigError
				return errors.As(err, &cfgErr) && cfgErr.Field == "Capacity"
			},
		},
		{
			name:   "bad default sort",
			mutate: func(c *config.Config) { c.Repository.DefaultSort = "name:sideways" },
			check: func(err error) bool {
				var cfgErr *repository.ConfigError
				return errors.As(err, &cfgErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t)
			tt.mutate(cfg)
			_, err := NewContainer(context.Background(), cfg)
			if err == nil {
				t.Fatal("Expected NewContainer() to fail")
			}
			if !tt.check(err) {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	if !container.Cacher().Enabled() {
		t.Error("Default container should cache")
	}
	if got, want := container.Cacher().Config(), cache.DefaultConfig(); got != want {
		t.Errorf("Expected default cache config %+v, got %+v", want, got)
	}
	if got := container.RepositoryConfig().DefaultLimit; got != repository.DefaultConfig().DefaultLimit {
		t.Errorf("Expected default limit %d, got %d", repository.DefaultConfig().DefaultLimit, got)
	}
	if err := container.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	if container.Cacher() != container.Cacher() {
		t.Error("Cacher() should return the same instance")
	}

	first := NewCachedRepository[Account](container, newAccountBase(t, testsupport.NewMemoryAdapter[Account]()))
	second := NewCachedRepository[Account](container, newAccountBase(t, testsupport.NewMemoryAdapter[Account]()))
	if first.Scope() != second.Scope() {
		t.Errorf("Repositories of one entity should share a scope, got %q and %q", first.Scope(), second.Scope())
	}
}

func TestRegisterMetrics(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	adapter := testsupport.NewMemoryAdapter[Account]()
	adapter.Seed(Account{Name: "Acme"})
	repo, err := NewRepository[Account](container, adapter)
	if err != nil {
		t.Fatalf("NewRepository() failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := repo.FindByID(ctx, "0001"); err != nil {
			t.Fatalf("FindByID() failed: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	if err := container.RegisterMetrics(reg, "catalog"); err != nil {
		t.Fatalf("RegisterMetrics() failed: %v", err)
	}
	if err := container.RegisterMetrics(reg, "catalog"); err == nil {
		t.Error("Registering the same collectors twice should fail")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	values := map[string]float64{}
	for _, mf := range families {
		values[mf.GetName()] = mf.GetMetric()[0].GetCounter().GetValue()
	}
	if values["catalog_cache_hits_total"] != 2 {
		t.Errorf("Expected 2 hits, got %v", values["catalog_cache_hits_total"])
	}
	if values["catalog_cache_misses_total"] != 1 {
		t.Errorf("Expected 1 miss, got %v", values["catalog_cache_misses_total"])
	}
	if values["catalog_cache_sets_total"] != 1 {
		t.Errorf("Expected 1 set, got %v", values["catalog_cache_sets_total"])
	}
}
