// Package mongostore implements repository.DataAdapter over a MongoDB
// collection. Field names in filters, sorts and updates are bson names, with
// "id" standing for "_id".
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/goliatone/go-repository-kit/repository"
)

// Interface assertion to ensure Adapter implements DataAdapter[T]
var _ repository.DataAdapter[struct{}] = (*Adapter[struct{}])(nil)

// Adapter is a document-store DataAdapter.
type Adapter[T any] struct {
	coll      *mongo.Collection
	updatedAt string
	now       func() time.Time
}

// Option configures an Adapter.
type Option func(*settings)

type settings struct {
	updatedAt string
	now       func() time.Time
}

// WithUpdatedAtField makes UpdateByID $set field to the current time.
func WithUpdatedAtField(field string) Option {
	return func(s *settings) { s.updatedAt = field }
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// New creates an Adapter storing T in coll.
func New[T any](coll *mongo.Collection, opts ...Option) *Adapter[T] {
	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return &Adapter[T]{coll: coll, updatedAt: s.updatedAt, now: s.now}
}

// Collection returns the underlying collection.
func (a *Adapter[T]) Collection() *mongo.Collection {
	return a.coll
}

func (a *Adapter[T]) Query(ctx context.Context, query repository.Query) ([]T, error) {
	filter, err := filterDoc(query.Criteria)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if s := sortDoc(query.Sort); s != nil {
		opts.SetSort(s)
	}
	if query.Skip > 0 {
		opts.SetSkip(int64(query.Skip))
	}
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}

	cur, err := a.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter[T]) Count(ctx context.Context, criteria repository.Criteria) (int, error) {
	filter, err := filterDoc(criteria)
	if err != nil {
		return 0, err
	}
	n, err := a.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Insert stores record with a new ObjectID when it has no _id, then reads
// the stored document back.
func (a *Adapter[T]) Insert(ctx context.Context, record T) (T, error) {
	var zero T
	repository.PrepareInsert(&record, a.now())

	doc, err := toDocument(record)
	if err != nil {
		return zero, err
	}

	res, err := a.coll.InsertOne(ctx, doc)
	if err != nil {
		return zero, err
	}

	var stored T
	if err := a.coll.FindOne(ctx, bson.D{{Key: "_id", Value: res.InsertedID}}).Decode(&stored); err != nil {
		return zero, fmt.Errorf("mongostore: read back inserted document: %w", err)
	}
	return stored, nil
}

func (a *Adapter[T]) GetByID(ctx context.Context, id string) (*T, error) {
	return a.decodeOne(a.coll.FindOne(ctx, byID(id)))
}

// UpdateByID applies $set and $inc atomically and returns the document as
// it is after the update.
func (a *Adapter[T]) UpdateByID(ctx context.Context, id string, data repository.Update) (*T, error) {
	if a.updatedAt != "" {
		if _, ok := data[a.updatedAt]; !ok {
			data = withField(data, a.updatedAt, a.now())
		}
	}
	update := updateDoc(data)
	if len(update) == 0 {
		return a.GetByID(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return a.decodeOne(a.coll.FindOneAndUpdate(ctx, byID(id), update, opts))
}

func (a *Adapter[T]) DeleteByID(ctx context.Context, id string) (*T, error) {
	return a.decodeOne(a.coll.FindOneAndDelete(ctx, byID(id)))
}

func (a *Adapter[T]) decodeOne(res *mongo.SingleResult) (*T, error) {
	record := new(T)
	err := res.Decode(record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: idValue(id)}}
}

func withField(data repository.Update, field string, value any) repository.Update {
	out := make(repository.Update, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[field] = value
	return out
}

// toDocument marshals record and normalises its _id: missing or empty ids
// get a fresh ObjectID and hex strings are stored as ObjectIDs.
func toDocument(record any) (bson.D, error) {
	raw, err := bson.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("mongostore: marshal record: %w", err)
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("mongostore: unmarshal record: %w", err)
	}

	for i, e := range doc {
		if e.Key != "_id" {
			continue
		}
		if s, ok := e.Value.(string); ok && s == "" {
			doc[i].Value = primitive.NewObjectID()
		} else {
			doc[i].Value = idValue(e.Value)
		}
		return doc, nil
	}
	return append(bson.D{{Key: "_id", Value: primitive.NewObjectID()}}, doc...), nil
}
