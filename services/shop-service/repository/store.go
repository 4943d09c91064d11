package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no document matches.
var ErrNotFound = errors.New("document not found")

// IsDuplicate reports whether err is a unique index violation.
func IsDuplicate(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// Store is the typed CRUD capability shared by every collection.
type Store[T any] struct {
	coll *mongo.Collection
}

func NewStore[T any](coll *mongo.Collection) *Store[T] {
	return &Store[T]{coll: coll}
}

func (s *Store[T]) Collection() *mongo.Collection {
	return s.coll
}

// FindByID retrieves one document by _id
func (s *Store[T]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return s.FindOne(ctx, bson.M{"_id": id})
}

// FindOne retrieves the first document matching filter
func (s *Store[T]) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) (*T, error) {
	var doc T
	if err := s.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// Find retrieves every document matching filter
func (s *Store[T]) Find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := s.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// FindRaw is Find without decoding into T, so projected-out fields stay absent.
func (s *Store[T]) FindRaw(ctx context.Context, filter any, opts ...*options.FindOptions) ([]bson.M, error) {
	cursor, err := s.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Create inserts one document
func (s *Store[T]) Create(ctx context.Context, doc *T) error {
	_, err := s.coll.InsertOne(ctx, doc)
	return err
}

// CreateMany inserts docs in a single ordered batch.
func (s *Store[T]) CreateMany(ctx context.Context, docs []T) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]any, len(docs))
	for i := range docs {
		batch[i] = docs[i]
	}
	_, err := s.coll.InsertMany(ctx, batch)
	return err
}

// UpdateByID applies update and returns the document as it is afterwards.
func (s *Store[T]) UpdateByID(ctx context.Context, id primitive.ObjectID, update any) (*T, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc T
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// DeleteByID removes the document and returns what was removed.
func (s *Store[T]) DeleteByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	var doc T
	if err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
