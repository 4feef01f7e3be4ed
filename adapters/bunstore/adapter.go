// Package bunstore implements repository.DataAdapter on top of bun, for
// PostgreSQL in production and SQLite in tests.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-kit/repository"
)

// Interface assertion to ensure Adapter implements DataAdapter[T]
var _ repository.DataAdapter[struct{}] = (*Adapter[struct{}])(nil)

// Adapter is a relational DataAdapter. Filter, sort and update field names
// are column names.
type Adapter[T any] struct {
	db        bun.IDB
	idColumn  string
	updatedAt string
	now       func() time.Time
	newID     func() string
}

// Option configures an Adapter.
type Option func(*settings)

type settings struct {
	idColumn  string
	updatedAt string
	now       func() time.Time
	newID     func() string
}

// WithIDColumn sets the primary key column. Default "id".
func WithIDColumn(column string) Option {
	return func(s *settings) { s.idColumn = column }
}

// WithUpdatedAtColumn makes UpdateByID stamp column with the current time.
func WithUpdatedAtColumn(column string) Option {
	return func(s *settings) { s.updatedAt = column }
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithIDGenerator replaces uuid.NewString for records inserted without an id.
func WithIDGenerator(fn func() string) Option {
	return func(s *settings) { s.newID = fn }
}

// New creates an Adapter for T. db may be a *bun.DB or a bun.Tx.
func New[T any](db bun.IDB, opts ...Option) *Adapter[T] {
	s := settings{idColumn: "id", now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&s)
	}
	return &Adapter[T]{
		db:        db,
		idColumn:  s.idColumn,
		updatedAt: s.updatedAt,
		now:       s.now,
		newID:     s.newID,
	}
}

// DB returns the handle queries run against.
func (a *Adapter[T]) DB() bun.IDB {
	return a.db
}

func (a *Adapter[T]) Query(ctx context.Context, query repository.Query) ([]T, error) {
	var out []T
	q, err := applyCriteria(a.db.NewSelect().Model(&out), query.Criteria)
	if err != nil {
		return nil, err
	}
	q = applySort(q, query.Sort)
	if query.Skip > 0 {
		q = q.Offset(query.Skip)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (a *Adapter[T]) Count(ctx context.Context, criteria repository.Criteria) (int, error) {
	q, err := applyCriteria(a.db.NewSelect().Model((*T)(nil)), criteria)
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

// Insert assigns a generated id when the id field is an empty string, runs
// the record's InsertPreparer hook and inserts it.
func (a *Adapter[T]) Insert(ctx context.Context, record T) (T, error) {
	repository.PrepareInsert(&record, a.now())
	a.assignID(&record)

	if _, err := a.db.NewInsert().Model(&record).Exec(ctx); err != nil {
		var zero T
		return zero, err
	}
	return record, nil
}

func (a *Adapter[T]) GetByID(ctx context.Context, id string) (*T, error) {
	record := new(T)
	err := a.db.NewSelect().
		Model(record).
		Where("? = ?", bun.Ident(a.idColumn), id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateByID applies data with a single UPDATE and reads the row back.
func (a *Adapter[T]) UpdateByID(ctx context.Context, id string, data repository.Update) (*T, error) {
	if len(data) == 0 && a.updatedAt == "" {
		return a.GetByID(ctx, id)
	}

	q := a.db.NewUpdate().
		Model((*T)(nil)).
		Where("? = ?", bun.Ident(a.idColumn), id)

	fields := make([]string, 0, len(data))
	for field := range data {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		col := bun.Ident(field)
		if inc, ok := data[field].(repository.Increment); ok {
			q = q.Set("? = ? + ?", col, col, inc.By)
			continue
		}
		q = q.Set("? = ?", col, data[field])
	}
	if _, touched := data[a.updatedAt]; a.updatedAt != "" && !touched {
		q = q.Set("? = ?", bun.Ident(a.updatedAt), a.now())
	}

	if _, err := q.Exec(ctx); err != nil {
		return nil, err
	}
	return a.GetByID(ctx, id)
}

// DeleteByID reads the row and then deletes it. The two statements are not
// atomic; a concurrent writer may change the row in between.
func (a *Adapter[T]) DeleteByID(ctx context.Context, id string) (*T, error) {
	record, err := a.GetByID(ctx, id)
	if err != nil || record == nil {
		return nil, err
	}
	_, err = a.db.NewDelete().
		Model((*T)(nil)).
		Where("? = ?", bun.Ident(a.idColumn), id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// assignID sets the string field mapped to the id column when it is empty.
func (a *Adapter[T]) assignID(record *T) {
	v := reflect.ValueOf(record).Elem()
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || columnName(field) != a.idColumn {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.String && fv.String() == "" {
			fv.SetString(a.newID())
		}
		return
	}
}

// columnName mirrors bun's naming: the first bun tag segment, or the
// snake_case field name.
func columnName(field reflect.StructField) string {
	if tag := field.Tag.Get("bun"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && !strings.Contains(name, ":") {
			return name
		}
	}
	return underscore(field.Name)
}

func underscore(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
