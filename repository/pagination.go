package repository

import (
	"context"
	"errors"
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"
)

// PageRequest asks for one page of an offset-paginated listing. Zero values
// mean "unset": Page defaults to 1, Limit to Config.DefaultLimit and Sort to
// Config.DefaultSort. Negative values are rejected.
type PageRequest struct {
	Page  int  `json:"page,omitempty"`
	Limit int  `json:"limit,omitempty"`
	Sort  Sort `json:"sort,omitempty"`
}

// Validate implements validation.Validatable.
func (r PageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Page, validation.Min(0)),
		validation.Field(&r.Limit, validation.Min(0)),
		validation.Field(&r.Sort),
	)
}

// Page is one page of an offset-paginated listing. A page past the last one
// has no items but still reports the correct Total and TotalPages.
type Page[T any] struct {
	Items           []T  `json:"items"`
	Total           int  `json:"total"`
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewPage computes the page metadata for items out of total matches.
func NewPage[T any](items []T, total, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Page[T]{
		Items:           items,
		Total:           total,
		Page:            page,
		Limit:           limit,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// CursorRequest asks for the records after LastID. Limit 0 takes
// Config.DefaultLimit and an empty Sort takes Config.CursorSort.
//
// The primary sort field must be the identifier field (or at least ordered
// the same way): the cursor bound is a strict comparison on the identifier,
// so a sort led by an unrelated field skips or repeats records.
type CursorRequest struct {
	Limit  int    `json:"limit,omitempty"`
	Sort   Sort   `json:"sort,omitempty"`
	LastID string `json:"lastId,omitempty"`
}

// Validate implements validation.Validatable.
func (r CursorRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Limit, validation.Min(0)),
		validation.Field(&r.Sort),
	)
}

// CursorPage is one slice of a cursor-paginated listing. LastID is the
// identifier of the final item, empty when Items is empty; pass it back as
// CursorRequest.LastID to continue.
type CursorPage[T any] struct {
	Items   []T    `json:"items"`
	LastID  string `json:"lastId,omitempty"`
	HasMore bool   `json:"hasMore"`
}

// FindWithPagination returns one page of the records matching filter. The
// slice and the total count run concurrently without a shared snapshot, so
// concurrent writes can make them disagree.
func (b *Base[T]) FindWithPagination(ctx context.Context, filter Filter, req PageRequest) (Page[T], error) {
	req, err := b.pageDefaults(req)
	if err != nil {
		return Page[T]{}, invalid("page", err)
	}
	return b.paginate(ctx, Where(filter), req)
}

// FindWithSearch pages through the records where any of fields contains
// query, ignoring case. An empty query matches every record.
func (b *Base[T]) FindWithSearch(ctx context.Context, query string, fields []string, req PageRequest) (Page[T], error) {
	if err := validation.Validate(fields, validation.Required, validation.Each(validation.Required)); err != nil {
		return Page[T]{}, invalid("search", errors.New("fields: "+err.Error()))
	}
	req, err := b.pageDefaults(req)
	if err != nil {
		return Page[T]{}, invalid("search", err)
	}

	anyOf := make([]Filter, len(fields))
	for i, field := range fields {
		anyOf[i] = Filter{field: Contains(query)}
	}
	return b.paginate(ctx, Criteria{AnyOf: anyOf}, req)
}

// FindWithCursor returns up to req.Limit records after req.LastID. It reads
// one extra row to learn whether more records follow, so no count query is
// needed.
func (b *Base[T]) FindWithCursor(ctx context.Context, filter Filter, req CursorRequest) (CursorPage[T], error) {
	if err := req.Validate(); err != nil {
		return CursorPage[T]{}, invalid("cursor", err)
	}
	req.Limit = b.limit(req.Limit)
	if len(req.Sort) == 0 {
		req.Sort = b.config.CursorSort
	}

	criteria := Where(filter)
	if req.LastID != "" {
		criteria = criteria.And(Filter{b.config.IDField: b.cursorBound(req.Sort, req.LastID)})
	}

	items, err := b.adapter.Query(ctx, Query{
		Criteria: criteria,
		Sort:     req.Sort,
		Limit:    req.Limit + 1,
	})
	if err != nil {
		return CursorPage[T]{}, err
	}

	hasMore := len(items) > req.Limit
	if hasMore {
		items = items[:req.Limit]
	}
	if items == nil {
		items = []T{}
	}

	page := CursorPage[T]{Items: items, HasMore: hasMore}
	if len(items) > 0 {
		lastID, err := b.idOf(items[len(items)-1])
		if err != nil {
			return CursorPage[T]{}, err
		}
		page.LastID = lastID
	}
	return page, nil
}

func (b *Base[T]) paginate(ctx context.Context, criteria Criteria, req PageRequest) (Page[T], error) {
	if req.Page-1 > math.MaxInt/req.Limit {
		// the offset does not fit in an int, so the page is past any store
		total, err := b.adapter.Count(ctx, criteria)
		if err != nil {
			return Page[T]{}, err
		}
		return NewPage[T](nil, total, req.Page, req.Limit), nil
	}
	skip := (req.Page - 1) * req.Limit

	var (
		items []T
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = b.adapter.Query(gctx, Query{
			Criteria: criteria,
			Sort:     req.Sort,
			Skip:     skip,
			Limit:    req.Limit,
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = b.adapter.Count(gctx, criteria)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page[T]{}, err
	}

	return NewPage(items, total, req.Page, req.Limit), nil
}

func (b *Base[T]) pageDefaults(req PageRequest) (PageRequest, error) {
	if err := req.Validate(); err != nil {
		return req, err
	}
	if req.Page == 0 {
		req.Page = 1
	}
	req.Limit = b.limit(req.Limit)
	if len(req.Sort) == 0 {
		req.Sort = b.config.DefaultSort
	}
	return req, nil
}

func (b *Base[T]) limit(limit int) int {
	if limit == 0 {
		limit = b.config.DefaultLimit
	}
	if b.config.MaxLimit > 0 && limit > b.config.MaxLimit {
		limit = b.config.MaxLimit
	}
	return limit
}

// cursorBound is a strict bound past lastID in the direction the identifier
// is sorted: ascending unless the primary sort is the identifier descending.
func (b *Base[T]) cursorBound(sort Sort, lastID string) Operator {
	if len(sort) > 0 && sort[0].Field == b.config.IDField && sort[0].Direction == Desc {
		return LessThan(lastID)
	}
	return GreaterThan(lastID)
}
