package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-repository-kit/repository"
)

// Interface assertion to ensure MemoryAdapter implements DataAdapter[T]
var _ repository.DataAdapter[any] = (*MemoryAdapter[any])(nil)

// MemoryAdapter is an in-process repository.DataAdapter used by tests and
// examples. Records are kept as JSON documents, so filter and sort fields
// use the record's json field names.
type MemoryAdapter[T any] struct {
	mu      sync.RWMutex
	docs    []map[string]any
	idField string
	seq     int
	now     func() time.Time
	calls   map[string]int
	errors  map[string]error
}

// NewMemoryAdapter creates an empty adapter. Inserted records without an
// identifier get zero-padded sequential ids ("0001", "0002", ...), which
// sort in insertion order.
func NewMemoryAdapter[T any]() *MemoryAdapter[T] {
	return &MemoryAdapter[T]{
		idField: "id",
		now:     time.Now,
		calls:   make(map[string]int),
		errors:  make(map[string]error),
	}
}

// WithClock replaces the clock passed to InsertPreparer hooks.
func (m *MemoryAdapter[T]) WithClock(now func() time.Time) *MemoryAdapter[T] {
	m.now = now
	return m
}

// Seed inserts records and returns them as stored. It panics on error.
func (m *MemoryAdapter[T]) Seed(records ...T) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		stored, err := m.Insert(context.Background(), r)
		if err != nil {
			panic(fmt.Sprintf("testsupport: seed: %v", err))
		}
		out = append(out, stored)
	}
	return out
}

// SetError makes every subsequent call to method fail with err. A nil err clears it.
func (m *MemoryAdapter[T]) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, method)
		return
	}
	m.errors[method] = err
}

// Calls returns how many times method was invoked.
func (m *MemoryAdapter[T]) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// Len returns the number of stored records.
func (m *MemoryAdapter[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryAdapter[T]) record(method string) error {
	m.calls[method]++
	return m.errors[method]
}

func (m *MemoryAdapter[T]) Query(ctx context.Context, q repository.Query) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Query"); err != nil {
		return nil, err
	}
	matched := m.match(q.Criteria)

	sortDocs(matched, q.Sort)

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Skip:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]T, 0, len(matched))
	for _, doc := range matched {
		rec, err := fromDoc[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *MemoryAdapter[T]) Count(ctx context.Context, criteria repository.Criteria) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Count"); err != nil {
		return 0, err
	}
	return len(m.match(criteria)), nil
}

func (m *MemoryAdapter[T]) Insert(ctx context.Context, record T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if err := m.record("Insert"); err != nil {
		return zero, err
	}

	repository.PrepareInsert(&record, m.now())
	doc, err := toDoc(record)
	if err != nil {
		return zero, err
	}
	if id, _ := doc[m.idField].(string); id == "" {
		m.seq++
		doc[m.idField] = fmt.Sprintf("%04d", m.seq)
	}
	m.docs = append(m.docs, doc)
	return fromDoc[T](doc)
}

func (m *MemoryAdapter[T]) GetByID(ctx context.Context, id string) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetByID"); err != nil {
		return nil, err
	}
	i := m.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	rec, err := fromDoc[T](m.docs[i])
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *MemoryAdapter[T]) UpdateByID(ctx context.Context, id string, data repository.Update) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateByID"); err != nil {
		return nil, err
	}
	i := m.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	doc := m.docs[i]
	for field, value := range data {
		if inc, ok := value.(repository.Increment); ok {
			cur, _ := doc[field].(float64)
			by, _ := normalize(inc.By).(float64)
			doc[field] = cur + by
			continue
		}
		doc[field] = normalize(value)
	}
	rec, err := fromDoc[T](doc)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *MemoryAdapter[T]) DeleteByID(ctx context.Context, id string) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteByID"); err != nil {
		return nil, err
	}
	i := m.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	rec, err := fromDoc[T](m.docs[i])
	if err != nil {
		return nil, err
	}
	m.docs = append(m.docs[:i], m.docs[i+1:]...)
	return &rec, nil
}

func (m *MemoryAdapter[T]) indexOf(id string) int {
	for i, doc := range m.docs {
		if doc[m.idField] == id {
			return i
		}
	}
	return -1
}

func (m *MemoryAdapter[T]) match(c repository.Criteria) []map[string]any {
	var out []map[string]any
	for _, doc := range m.docs {
		if matchCriteria(doc, c) {
			out = append(out, doc)
		}
	}
	return out
}

func matchCriteria(doc map[string]any, c repository.Criteria) bool {
	for _, f := range c.All {
		if !matchFilter(doc, f) {
			return false
		}
	}
	if len(c.AnyOf) == 0 {
		return true
	}
	for _, f := range c.AnyOf {
		if matchFilter(doc, f) {
			return true
		}
	}
	return false
}

func matchFilter(doc map[string]any, f repository.Filter) bool {
	for field, want := range f {
		got := doc[field]
		op, ok := want.(repository.Operator)
		if !ok {
			if c, ok := compare(got, normalize(want)); !ok || c != 0 {
				return false
			}
			continue
		}
		if !matchOperator(got, op) {
			return false
		}
	}
	return true
}

func matchOperator(got any, op repository.Operator) bool {
	switch op.Kind {
	case repository.OpContains:
		s, ok := got.(string)
		sub, _ := op.Value.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	case repository.OpIn:
		values, _ := op.Value.([]any)
		for _, v := range values {
			if c, ok := compare(got, normalize(v)); ok && c == 0 {
				return true
			}
		}
		return false
	}

	c, ok := compare(got, normalize(op.Value))
	if !ok {
		return false
	}
	switch op.Kind {
	case repository.OpNotEqual:
		return c != 0
	case repository.OpGreaterThan:
		return c > 0
	case repository.OpGreaterOrEqual:
		return c >= 0
	case repository.OpLessThan:
		return c < 0
	case repository.OpLessOrEqual:
		return c <= 0
	}
	return false
}

func sortDocs(docs []map[string]any, s repository.Sort) {
	if len(s) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range s {
			c, _ := compare(docs[i][f.Field], docs[j][f.Field])
			if c == 0 {
				continue
			}
			if f.Direction == repository.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compare orders two normalized JSON values. Nil sorts first; values of
// different kinds are not comparable.
func compare(a, b any) (int, bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// normalize maps a Go value to its JSON form so it compares against stored documents.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func toDoc(record any) (map[string]any, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("testsupport: record must encode as a JSON object: %w", err)
	}
	return doc, nil
}

func fromDoc[T any](doc map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(doc)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
