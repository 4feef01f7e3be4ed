package repository

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Filter selects entities by field name. Plain values match by equality,
// Operator values are translated by each DataAdapter into its native form.
type Filter map[string]any

// OpKind identifies a non-equality comparison.
type OpKind int

const (
	OpNotEqual OpKind = iota + 1
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	// OpContains is a case-insensitive substring match on string fields.
	OpContains
	// OpIn matches when the field equals any element of a slice value.
	OpIn
)

func (k OpKind) String() string {
	switch k {
	case OpNotEqual:
		return "ne"
	case OpGreaterThan:
		return "gt"
	case OpGreaterOrEqual:
		return "gte"
	case OpLessThan:
		return "lt"
	case OpLessOrEqual:
		return "lte"
	case OpContains:
		return "contains"
	case OpIn:
		return "in"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// Operator is a Filter value carrying a comparison other than equality.
type Operator struct {
	Kind  OpKind
	Value any
}

func NotEqual(v any) Operator       { return Operator{Kind: OpNotEqual, Value: v} }
func GreaterThan(v any) Operator    { return Operator{Kind: OpGreaterThan, Value: v} }
func GreaterOrEqual(v any) Operator { return Operator{Kind: OpGreaterOrEqual, Value: v} }
func LessThan(v any) Operator       { return Operator{Kind: OpLessThan, Value: v} }
func LessOrEqual(v any) Operator    { return Operator{Kind: OpLessOrEqual, Value: v} }
func In(values ...any) Operator     { return Operator{Kind: OpIn, Value: values} }

// Contains matches string fields holding substr, ignoring case.
func Contains(substr string) Operator { return Operator{Kind: OpContains, Value: substr} }

// Criteria combines filters: every filter in All must match and, when AnyOf
// is non-empty, at least one filter in AnyOf must match too. The fields of a
// single Filter are always ANDed.
type Criteria struct {
	All   []Filter
	AnyOf []Filter
}

// Where returns criteria matching a single filter. Empty filters match everything.
func Where(filter Filter) Criteria {
	if len(filter) == 0 {
		return Criteria{}
	}
	return Criteria{All: []Filter{filter}}
}

// And returns a copy of c with filter added to All.
func (c Criteria) And(filter Filter) Criteria {
	all := make([]Filter, 0, len(c.All)+1)
	all = append(all, c.All...)
	all = append(all, filter)
	return Criteria{All: all, AnyOf: c.AnyOf}
}

// IsEmpty reports whether the criteria match every entity.
func (c Criteria) IsEmpty() bool {
	for _, f := range c.All {
		if len(f) > 0 {
			return false
		}
	}
	for _, f := range c.AnyOf {
		if len(f) > 0 {
			return false
		}
	}
	return true
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// SortField orders results by one field.
type SortField struct {
	Field     string
	Direction Direction
}

func Ascending(field string) SortField  { return SortField{Field: field, Direction: Asc} }
func Descending(field string) SortField { return SortField{Field: field, Direction: Desc} }

// Validate implements validation.Validatable.
func (s SortField) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Field, validation.Required),
		validation.Field(&s.Direction, validation.Required, validation.In(Asc, Desc)),
	)
}

// Sort is an ordered list of sort fields. Earlier fields take precedence;
// later ones only break ties.
type Sort []SortField

// Validate implements validation.Validatable.
func (s Sort) Validate() error {
	for i, f := range s {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("sort[%d]: %w", i, err)
		}
	}
	return nil
}

func (s Sort) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Field + ":" + strings.ToLower(string(f.Direction))
	}
	return strings.Join(parts, ",")
}

// ParseSort parses "field:dir,field:dir" where dir is asc or desc
// (case-insensitive, asc when omitted).
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out Sort
	for _, part := range strings.Split(s, ",") {
		field, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("invalid sort %q: empty field", s)
		}
		switch strings.ToUpper(strings.TrimSpace(dir)) {
		case "", string(Asc):
			out = append(out, Ascending(field))
		case string(Desc):
			out = append(out, Descending(field))
		default:
			return nil, fmt.Errorf("invalid sort %q: unknown direction %q", s, dir)
		}
	}
	return out, nil
}

// Update is a partial modification: only the listed fields change. Values
// are assigned as-is, except Increment values which add to the current one.
type Update map[string]any

// Increment adds By to a numeric field.
type Increment struct {
	By any
}

// Query is what the pagination engine asks of an adapter. Limit 0 means no limit.
type Query struct {
	Criteria Criteria
	Sort     Sort
	Skip     int
	Limit    int
}
