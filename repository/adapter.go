package repository

import "context"

// DataAdapter is the capability a datastore backend exposes to Base. The
// document and relational adapters implement it independently; Base and the
// pagination engine only ever talk to this interface.
//
// GetByID, UpdateByID and DeleteByID return a nil entity, not an error, when
// no record has the given id. Every other failure is returned unchanged to
// the caller.
type DataAdapter[T any] interface {
	// Query returns the records matching q.Criteria ordered by q.Sort, after
	// skipping q.Skip records and returning at most q.Limit (0 = unbounded).
	Query(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, criteria Criteria) (int, error)
	// Insert persists record, assigning identifier and timestamps when unset.
	Insert(ctx context.Context, record T) (T, error)
	GetByID(ctx context.Context, id string) (*T, error)
	// UpdateByID applies a partial update and returns the post-update record.
	UpdateByID(ctx context.Context, id string, data Update) (*T, error)
	// DeleteByID removes the record and returns its pre-deletion snapshot.
	DeleteByID(ctx context.Context, id string) (*T, error)
}

// Repository is the generic CRUD and pagination surface every domain
// repository builds on.
type Repository[T any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, filter Filter) (*T, error)
	Find(ctx context.Context, filter Filter) ([]T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, id string, data Update) (*T, error)
	Delete(ctx context.Context, id string) (*T, error)

	FindWithPagination(ctx context.Context, filter Filter, req PageRequest) (Page[T], error)
	FindWithCursor(ctx context.Context, filter Filter, req CursorRequest) (CursorPage[T], error)
	FindWithSearch(ctx context.Context, query string, fields []string, req PageRequest) (Page[T], error)
}
