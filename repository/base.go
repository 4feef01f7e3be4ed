package repository

import (
	"context"
)

// Interface assertion to ensure Base implements Repository[T]
var _ Repository[any] = (*Base[any])(nil)

// Base implements Repository[T] on top of a single DataAdapter. Domain
// repositories embed it and add their own queries.
type Base[T any] struct {
	adapter DataAdapter[T]
	config  Config
	idOf    func(T) (string, error)
}

// Option configures a Base.
type Option[T any] func(*Base[T])

// WithConfig replaces DefaultConfig.
func WithConfig[T any](cfg Config) Option[T] {
	return func(b *Base[T]) {
		b.config = cfg
	}
}

// WithIDFunc sets how the identifier of a record is read when building
// cursor results. Without it ExtractID is used.
func WithIDFunc[T any](fn func(T) string) Option[T] {
	return func(b *Base[T]) {
		b.idOf = func(record T) (string, error) {
			return fn(record), nil
		}
	}
}

// New creates a Base over adapter.
func New[T any](adapter DataAdapter[T], opts ...Option[T]) (*Base[T], error) {
	b := &Base[T]{
		adapter: adapter,
		config:  DefaultConfig(),
		idOf: func(record T) (string, error) {
			return ExtractID(record)
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Adapter returns the underlying datastore adapter.
func (b *Base[T]) Adapter() DataAdapter[T] {
	return b.adapter
}

// Config returns the configuration in use.
func (b *Base[T]) Config() Config {
	return b.config
}

// FindByID returns the record with the given id, or nil when there is none.
func (b *Base[T]) FindByID(ctx context.Context, id string) (*T, error) {
	return b.adapter.GetByID(ctx, id)
}

// FindOne returns the first record matching filter, or nil when none does.
func (b *Base[T]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	items, err := b.adapter.Query(ctx, Query{Criteria: Where(filter), Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// Find returns every record matching filter, in backend order.
func (b *Base[T]) Find(ctx context.Context, filter Filter) ([]T, error) {
	return b.adapter.Query(ctx, Query{Criteria: Where(filter)})
}

// Create persists record and returns it as stored.
func (b *Base[T]) Create(ctx context.Context, record T) (T, error) {
	return b.adapter.Insert(ctx, record)
}

// Update modifies only the fields present in data and returns the updated
// record, or nil when id does not exist.
func (b *Base[T]) Update(ctx context.Context, id string, data Update) (*T, error) {
	if len(data) == 0 {
		return b.adapter.GetByID(ctx, id)
	}
	return b.adapter.UpdateByID(ctx, id, data)
}

// Delete removes the record and returns the snapshot taken before deletion,
// or nil when id does not exist.
func (b *Base[T]) Delete(ctx context.Context, id string) (*T, error) {
	return b.adapter.DeleteByID(ctx, id)
}
