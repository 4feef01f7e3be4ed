package mongostore

import (
	"fmt"
	"regexp"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/goliatone/go-repository-kit/repository"
)

// idField is the public name of the document identifier.
const idField = "id"

// fieldName maps the public identifier name onto _id.
func fieldName(field string) string {
	if field == idField {
		return "_id"
	}
	return field
}

// idValue turns hex identifiers into ObjectIDs. Other values are kept, so
// collections keyed by plain strings still work.
func idValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return oid
	}
	return s
}

// filterDoc renders criteria as a query document. All filters are ANDed and
// AnyOf filters become a single $or.
func filterDoc(c repository.Criteria) (bson.D, error) {
	var conds []bson.D
	for _, f := range c.All {
		if len(f) == 0 {
			continue
		}
		d, err := filterToDoc(f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, d)
	}

	var ors bson.A
	for _, f := range c.AnyOf {
		if len(f) == 0 {
			continue
		}
		d, err := filterToDoc(f)
		if err != nil {
			return nil, err
		}
		ors = append(ors, d)
	}
	if len(ors) > 0 {
		conds = append(conds, bson.D{{Key: "$or", Value: ors}})
	}

	switch len(conds) {
	case 0:
		return bson.D{}, nil
	case 1:
		return conds[0], nil
	}
	all := make(bson.A, len(conds))
	for i, d := range conds {
		all[i] = d
	}
	return bson.D{{Key: "$and", Value: all}}, nil
}

func filterToDoc(f repository.Filter) (bson.D, error) {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	d := make(bson.D, 0, len(fields))
	for _, field := range fields {
		v, err := condition(field, f[field])
		if err != nil {
			return nil, err
		}
		d = append(d, bson.E{Key: fieldName(field), Value: v})
	}
	return d, nil
}

func condition(field string, value any) (any, error) {
	convert := func(v any) any { return v }
	if field == idField {
		convert = idValue
	}

	op, ok := value.(repository.Operator)
	if !ok {
		return convert(value), nil
	}

	switch op.Kind {
	case repository.OpNotEqual:
		return bson.D{{Key: "$ne", Value: convert(op.Value)}}, nil
	case repository.OpGreaterThan:
		return bson.D{{Key: "$gt", Value: convert(op.Value)}}, nil
	case repository.OpGreaterOrEqual:
		return bson.D{{Key: "$gte", Value: convert(op.Value)}}, nil
	case repository.OpLessThan:
		return bson.D{{Key: "$lt", Value: convert(op.Value)}}, nil
	case repository.OpLessOrEqual:
		return bson.D{{Key: "$lte", Value: convert(op.Value)}}, nil
	case repository.OpContains:
		s, ok := op.Value.(string)
		if !ok {
			return nil, fmt.Errorf("mongostore: contains on %q needs a string, got %T", field, op.Value)
		}
		return bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}}}, nil
	case repository.OpIn:
		values, _ := op.Value.([]any)
		in := make(bson.A, len(values))
		for i, v := range values {
			in[i] = convert(v)
		}
		return bson.D{{Key: "$in", Value: in}}, nil
	}
	return nil, fmt.Errorf("mongostore: unsupported operator %s on %q", op.Kind, field)
}

func sortDoc(s repository.Sort) bson.D {
	if len(s) == 0 {
		return nil
	}
	d := make(bson.D, 0, len(s))
	for _, f := range s {
		dir := 1
		if f.Direction == repository.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: fieldName(f.Field), Value: dir})
	}
	return d
}

// updateDoc splits a partial update into $set and $inc, in field order.
func updateDoc(u repository.Update) bson.D {
	fields := make([]string, 0, len(u))
	for field := range u {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var set, inc bson.D
	for _, field := range fields {
		if i, ok := u[field].(repository.Increment); ok {
			inc = append(inc, bson.E{Key: fieldName(field), Value: i.By})
			continue
		}
		set = append(set, bson.E{Key: fieldName(field), Value: u[field]})
	}

	var d bson.D
	if len(set) > 0 {
		d = append(d, bson.E{Key: "$set", Value: set})
	}
	if len(inc) > 0 {
		d = append(d, bson.E{Key: "$inc", Value: inc})
	}
	return d
}
