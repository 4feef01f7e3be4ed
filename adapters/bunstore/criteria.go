package bunstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-kit/repository"
)

// applyCriteria adds WHERE clauses for c. Every filter in All becomes its
// own AND clause; AnyOf filters are ORed inside a single parenthesised clause.
func applyCriteria(q *bun.SelectQuery, c repository.Criteria) (*bun.SelectQuery, error) {
	for _, f := range c.All {
		if len(f) == 0 {
			continue
		}
		cond, args, err := filterSQL(f)
		if err != nil {
			return nil, err
		}
		q = q.Where(cond, args...)
	}

	var (
		ors  []string
		args []any
	)
	for _, f := range c.AnyOf {
		if len(f) == 0 {
			continue
		}
		cond, fargs, err := filterSQL(f)
		if err != nil {
			return nil, err
		}
		ors = append(ors, cond)
		args = append(args, fargs...)
	}
	if len(ors) > 0 {
		q = q.Where("("+strings.Join(ors, " OR ")+")", args...)
	}
	return q, nil
}

func applySort(q *bun.SelectQuery, s repository.Sort) *bun.SelectQuery {
	for _, f := range s {
		if f.Direction == repository.Desc {
			q = q.OrderExpr("? DESC", bun.Ident(f.Field))
			continue
		}
		q = q.OrderExpr("? ASC", bun.Ident(f.Field))
	}
	return q
}

// filterSQL renders one filter as "(a AND b ...)" with bun placeholders.
// Fields are sorted so equal filters produce equal SQL.
func filterSQL(f repository.Filter) (string, []any, error) {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	conds := make([]string, 0, len(fields))
	var args []any
	for _, field := range fields {
		cond, cargs, err := fieldSQL(field, f[field])
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, cargs...)
	}
	return "(" + strings.Join(conds, " AND ") + ")", args, nil
}

func fieldSQL(field string, value any) (string, []any, error) {
	col := bun.Ident(field)

	op, ok := value.(repository.Operator)
	if !ok {
		if value == nil {
			return "? IS NULL", []any{col}, nil
		}
		return "? = ?", []any{col, value}, nil
	}

	switch op.Kind {
	case repository.OpNotEqual:
		if op.Value == nil {
			return "? IS NOT NULL", []any{col}, nil
		}
		return "? <> ?", []any{col, op.Value}, nil
	case repository.OpGreaterThan:
		return "? > ?", []any{col, op.Value}, nil
	case repository.OpGreaterOrEqual:
		return "? >= ?", []any{col, op.Value}, nil
	case repository.OpLessThan:
		return "? < ?", []any{col, op.Value}, nil
	case repository.OpLessOrEqual:
		return "? <= ?", []any{col, op.Value}, nil
	case repository.OpContains:
		s, ok := op.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("bunstore: contains on %q needs a string, got %T", field, op.Value)
		}
		return `LOWER(?) LIKE LOWER(?) ESCAPE '\'`, []any{col, "%" + escapeLike(s) + "%"}, nil
	case repository.OpIn:
		values, _ := op.Value.([]any)
		if len(values) == 0 {
			return "1 = 0", nil, nil
		}
		return "? IN (?)", []any{col, bun.In(values)}, nil
	}
	return "", nil, fmt.Errorf("bunstore: unsupported operator %s on %q", op.Kind, field)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
