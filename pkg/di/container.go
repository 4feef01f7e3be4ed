// Package di wires the cache store, the cacher and cached repositories from
// the service configuration.
package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/internal/cacheinfra"
	"github.com/goliatone/go-repository-kit/internal/config"
	"github.com/goliatone/go-repository-kit/repository"
	"github.com/goliatone/go-repository-kit/repositorycache"
)

// Container holds the singletons shared by every repository of a process:
// the cache store, the cacher in front of it and the repository settings.
type Container struct {
	store   cache.Store
	cacher  *cache.Cacher
	repo    repository.Config
	logger  *zap.Logger
	closers []func() error
}

type Option func(*Container)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStore uses store instead of the one named by cache.backend.
func WithStore(store cache.Store) Option {
	return func(c *Container) { c.store = store }
}

// NewContainer builds the cache store selected by cfg.Cache.Backend and the
// cacher in front of it. Backend "none" yields a cacher that never caches.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	repoCfg, err := cfg.RepositoryConfig()
	if err != nil {
		return nil, err
	}

	c := &Container{repo: repoCfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		if err := c.openStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	c.cacher, err = cache.New(c.store,
		cache.WithConfig(cfg.CacheConfig()),
		cache.WithLogger(c.logger.Named("cache")),
	)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.logger.Info("container ready",
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("cache_enabled", c.cacher.Enabled()),
	)
	return c, nil
}

// NewContainerWithDefaults builds a container over the in-process store
// with default settings.
func NewContainerWithDefaults() (*Container, error) {
	store, err := cacheinfra.NewMemoryStore(cacheinfra.DefaultConfig())
	if err != nil {
		return nil, err
	}
	cacher, err := cache.New(store)
	if err != nil {
		return nil, err
	}
	return &Container{
		store:  store,
		cacher: cacher,
		repo:   repository.DefaultConfig(),
		logger: zap.NewNop(),
	}, nil
}

func (c *Container) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return nil
	case config.BackendMemory:
		store, err := cacheinfra.NewMemoryStore(cfg.MemoryConfig())
		if err != nil {
			return err
		}
		c.store = store
		return nil
	case config.BackendRedis:
		redisCfg := cfg.RedisConfig()
		client, err := cacheinfra.NewRedisClient(ctx, redisCfg)
		if err != nil {
			return err
		}
		store, err := cacheinfra.NewRedisStore(client, redisCfg.KeyPrefix)
		if err != nil {
			_ = client.Close()
			return err
		}
		c.store = store
		c.closers = append(c.closers, client.Close)
		return nil
	}
	return &cache.ConfigError{Field: "cache.backend", Message: fmt.Sprintf("unknown backend %q", cfg.Cache.Backend)}
}

// Store returns the cache store, nil when caching is disabled.
func (c *Container) Store() cache.Store {
	return c.store
}

func (c *Container) Cacher() *cache.Cacher {
	return c.cacher
}

// RepositoryConfig returns the settings every repository built by the
// container shares.
func (c *Container) RepositoryConfig() repository.Config {
	return c.repo
}

// RegisterMetrics exposes the cache counters on reg under namespace.
func (c *Container) RegisterMetrics(reg prometheus.Registerer, namespace string) error {
	for _, collector := range c.cacher.Stats().Collectors(namespace) {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connections opened for the store.
func (c *Container) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// NewRepository builds a base repository over adapter with the container's
// settings and puts it behind the shared cacher.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewRepository[User](container, adapter)
func NewRepository[T any](c *Container, adapter repository.DataAdapter[T], opts ...repositorycache.Option) (*repositorycache.CachedRepository[T], error) {
	base, err := repository.New[T](adapter, repository.WithConfig[T](c.repo))
	if err != nil {
		return nil, err
	}
	return repositorycache.New[T](base, c.cacher, opts...), nil
}

// NewCachedRepository puts an existing repository behind the shared cacher.
func NewCachedRepository[T any](c *Container, base repository.Repository[T], opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	return repositorycache.New[T](base, c.cacher, opts...)
}
