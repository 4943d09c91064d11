package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs fn as one unit of work. Repositories called with the ctx passed to fn
// take part in the unit.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// Atomic reports whether a failing fn rolls back the writes it made.
	Atomic() bool
}

// MongoTransactor uses a client session transaction. It needs a replica set.
type MongoTransactor struct {
	client *mongo.Client
}

func NewMongoTransactor(client *mongo.Client) *MongoTransactor {
	return &MongoTransactor{client: client}
}

func (t *MongoTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func (t *MongoTransactor) Atomic() bool { return true }

// NoopTransactor runs fn directly, for standalone deployments.
type NoopTransactor struct{}

func (NoopTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (NoopTransactor) Atomic() bool { return false }
