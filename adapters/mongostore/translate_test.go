package mongostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/goliatone/go-repository-kit/repository"
)

const hexID = "65f1c0ffee0123456789abcd"

func mustOID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return oid
}

func TestFilterDoc(t *testing.T) {
	oid := mustOID(t, hexID)

	tests := []struct {
		name     string
		criteria repository.Criteria
		want     bson.D
	}{
		{
			name:     "empty",
			criteria: repository.Criteria{},
			want:     bson.D{},
		},
		{
			name:     "equality sorted by field",
			criteria: repository.Where(repository.Filter{"status": "paid", "category": "desk"}),
			want:     bson.D{{Key: "category", Value: "desk"}, {Key: "status", Value: "paid"}},
		},
		{
			name:     "id maps to object id",
			criteria: repository.Where(repository.Filter{"id": hexID}),
			want:     bson.D{{Key: "_id", Value: oid}},
		},
		{
			name:     "non hex id stays a string",
			criteria: repository.Where(repository.Filter{"id": "u-1"}),
			want:     bson.D{{Key: "_id", Value: "u-1"}},
		},
		{
			name:     "cursor bound on id",
			criteria: repository.Where(repository.Filter{"id": repository.GreaterThan(hexID)}),
			want:     bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: oid}}}},
		},
		{
			name:     "null",
			criteria: repository.Where(repository.Filter{"deleted_at": nil}),
			want:     bson.D{{Key: "deleted_at", Value: nil}},
		},
		{
			name: "comparison operators",
			criteria: repository.Where(repository.Filter{
				"a": repository.NotEqual(1),
				"b": repository.GreaterOrEqual(2),
				"c": repository.LessThan(3),
				"d": repository.LessOrEqual(4),
			}),
			want: bson.D{
				{Key: "a", Value: bson.D{{Key: "$ne", Value: 1}}},
				{Key: "b", Value: bson.D{{Key: "$gte", Value: 2}}},
				{Key: "c", Value: bson.D{{Key: "$lt", Value: 3}}},
				{Key: "d", Value: bson.D{{Key: "$lte", Value: 4}}},
			},
		},
		{
			name:     "contains quotes the pattern",
			criteria: repository.Where(repository.Filter{"name": repository.Contains("a.b*(c)")}),
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: primitive.Regex{
				Pattern: `a\.b\*\(c\)`,
				Options: "i",
			}}}}},
		},
		{
			name:     "in",
			criteria: repository.Where(repository.Filter{"status": repository.In("paid", "pending")}),
			want:     bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{"paid", "pending"}}}}},
		},
		{
			name: "all and any of",
			criteria: repository.Criteria{
				All: []repository.Filter{{"category": "desk"}},
				AnyOf: []repository.Filter{
					{"name": "a"},
					{"name": "b"},
				},
			},
			want: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "category", Value: "desk"}},
				bson.D{{Key: "$or", Value: bson.A{
					bson.D{{Key: "name", Value: "a"}},
					bson.D{{Key: "name", Value: "b"}},
				}}},
			}}},
		},
		{
			name:     "any of alone",
			criteria: repository.Criteria{AnyOf: []repository.Filter{{"name": "a"}, {}}},
			want: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "name", Value: "a"}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filterDoc(tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterDoc_ContainsRejectsNonString(t *testing.T) {
	_, err := filterDoc(repository.Where(repository.Filter{
		"name": repository.Operator{Kind: repository.OpContains, Value: 42},
	}))
	assert.Error(t, err)
}

func TestSortDoc(t *testing.T) {
	assert.Nil(t, sortDoc(nil))
	assert.Equal(t,
		bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}},
		sortDoc(repository.Sort{repository.Descending("created_at"), repository.Ascending("id")}),
	)
}

func TestUpdateDoc(t *testing.T) {
	got := updateDoc(repository.Update{
		"stock":  repository.Increment{By: -2},
		"name":   "Desk",
		"status": "active",
	})
	assert.Equal(t, bson.D{
		{Key: "$set", Value: bson.D{{Key: "name", Value: "Desk"}, {Key: "status", Value: "active"}}},
		{Key: "$inc", Value: bson.D{{Key: "stock", Value: -2}}},
	}, got)

	assert.Nil(t, updateDoc(repository.Update{}))
}

type doc struct {
	ID   string `bson:"_id,omitempty"`
	Name string `bson:"name"`
}

func TestToDocument(t *testing.T) {
	t.Run("assigns object id", func(t *testing.T) {
		d, err := toDocument(doc{Name: "a"})
		require.NoError(t, err)
		require.Equal(t, "_id", d[0].Key)
		_, ok := d[0].Value.(primitive.ObjectID)
		assert.True(t, ok)
		assert.Equal(t, bson.E{Key: "name", Value: "a"}, d[1])
	})

	t.Run("converts hex id", func(t *testing.T) {
		d, err := toDocument(doc{ID: hexID, Name: "a"})
		require.NoError(t, err)
		assert.Equal(t, mustOID(t, hexID), d[0].Value)
	})

	t.Run("keeps string id", func(t *testing.T) {
		d, err := toDocument(doc{ID: "u-1", Name: "a"})
		require.NoError(t, err)
		assert.Equal(t, "u-1", d[0].Value)
	})
}
