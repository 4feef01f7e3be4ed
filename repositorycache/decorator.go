package repositorycache

import (
	"context"
	"reflect"
	"time"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/repository"
)

// Interface assertion to ensure CachedRepository implements Repository[T]
var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// CachedRepository decorates a base repository with cache-aside reads.
type CachedRepository[T any] struct {
	base   repository.Repository[T]
	cacher *cache.Cacher
	scope  string

	findByID func(context.Context, string) (*T, error)
	findOne  func(context.Context, repository.Filter) (*T, error)
	find     func(context.Context, repository.Filter) ([]T, error)
	paginate func(context.Context, repository.Filter, repository.PageRequest) (repository.Page[T], error)
	cursor   func(context.Context, repository.Filter, repository.CursorRequest) (repository.CursorPage[T], error)
	search   func(context.Context, string, []string, repository.PageRequest) (repository.Page[T], error)
}

type settings struct {
	scope string
	ttl   time.Duration
}

// Option configures a CachedRepository.
type Option func(*settings)

// WithScope overrides the key namespace, which defaults to the snake_case
// name of the entity type.
func WithScope(scope string) Option {
	return func(s *settings) { s.scope = scope }
}

// WithTTL sets the TTL for every cached read. Zero uses the cacher's TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) { s.ttl = ttl }
}

// New creates a new CachedRepository that wraps the base repository with caching.
// A nil cacher turns every method into a pass-through.
func New[T any](base repository.Repository[T], cacher *cache.Cacher, opts ...Option) *CachedRepository[T] {
	s := settings{scope: ScopeOf[T]()}
	for _, opt := range opts {
		opt(&s)
	}

	read := func(method string) cache.Options {
		return cache.Options{Scope: s.scope, Method: method, TTL: s.ttl}
	}

	return &CachedRepository[T]{
		base:     base,
		cacher:   cacher,
		scope:    s.scope,
		findByID: cache.Wrap(cacher, read("FindByID"), base.FindByID),
		findOne:  cache.Wrap(cacher, read("FindOne"), base.FindOne),
		find:     cache.Wrap(cacher, read("Find"), base.Find),
		paginate: cache.Wrap2(cacher, read("FindWithPagination"), base.FindWithPagination),
		cursor:   cache.Wrap2(cacher, read("FindWithCursor"), base.FindWithCursor),
		search:   cache.Wrap3(cacher, read("FindWithSearch"), base.FindWithSearch),
	}
}

// ScopeOf returns the default key namespace for T.
func ScopeOf[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return toSnake(t.Name())
}

// Scope returns the key namespace used by this repository.
func (c *CachedRepository[T]) Scope() string {
	return c.scope
}

// Base returns the undecorated repository.
func (c *CachedRepository[T]) Base() repository.Repository[T] {
	return c.base
}

func (c *CachedRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	return c.findByID(ctx, id)
}

func (c *CachedRepository[T]) FindOne(ctx context.Context, filter repository.Filter) (*T, error) {
	return c.findOne(ctx, filter)
}

func (c *CachedRepository[T]) Find(ctx context.Context, filter repository.Filter) ([]T, error) {
	return c.find(ctx, filter)
}

func (c *CachedRepository[T]) FindWithPagination(ctx context.Context, filter repository.Filter, req repository.PageRequest) (repository.Page[T], error) {
	return c.paginate(ctx, filter, req)
}

func (c *CachedRepository[T]) FindWithCursor(ctx context.Context, filter repository.Filter, req repository.CursorRequest) (repository.CursorPage[T], error) {
	return c.cursor(ctx, filter, req)
}

func (c *CachedRepository[T]) FindWithSearch(ctx context.Context, query string, fields []string, req repository.PageRequest) (repository.Page[T], error) {
	return c.search(ctx, query, fields, req)
}

// Create passes through. Cached reads are not invalidated and may stay
// stale until their TTL runs out.
func (c *CachedRepository[T]) Create(ctx context.Context, record T) (T, error) {
	return c.base.Create(ctx, record)
}

// Update passes through without invalidation.
func (c *CachedRepository[T]) Update(ctx context.Context, id string, data repository.Update) (*T, error) {
	return c.base.Update(ctx, id, data)
}

// Delete passes through without invalidation.
func (c *CachedRepository[T]) Delete(ctx context.Context, id string) (*T, error) {
	return c.base.Delete(ctx, id)
}

// Purge drops every cached read of this repository. It is never called
// implicitly.
func (c *CachedRepository[T]) Purge(ctx context.Context) error {
	return c.cacher.DeletePrefix(ctx, c.scope+cache.KeySeparator)
}
