package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
)

var (
	// ErrAlreadyProcessed is returned when an event id has been applied before.
	ErrAlreadyProcessed = errors.New("event already processed")
	// ErrEventInFlight is returned when another attempt holds a fresh pending marker.
	ErrEventInFlight = errors.New("event is being processed")
)

// EventRepository records which payment provider events have been applied.
type EventRepository interface {
	// Claim writes a pending marker listing the orders the caller is about to insert.
	// A pending marker older than staleAfter is taken over and returned so the orders
	// of the abandoned attempt can be removed. staleAfter <= 0 disables takeover.
	Claim(ctx context.Context, id, eventType string, orders []primitive.ObjectID, staleAfter time.Duration) (*models.ProcessedEvent, error)
	MarkDone(ctx context.Context, id string) error
	Unmark(ctx context.Context, id string) error
	IsProcessed(ctx context.Context, id string) (bool, error)
}

type MongoEventRepository struct {
	*Store[models.ProcessedEvent]
}

func NewEventRepository(coll *mongo.Collection) EventRepository {
	return &MongoEventRepository{Store: NewStore[models.ProcessedEvent](coll)}
}

// Claim relies on the event id being the _id: only one insert can win.
func (r *MongoEventRepository) Claim(ctx context.Context, id, eventType string, orders []primitive.ObjectID, staleAfter time.Duration) (*models.ProcessedEvent, error) {
	now := time.Now().UTC()
	err := r.Create(ctx, &models.ProcessedEvent{
		ID:        id,
		Type:      eventType,
		Status:    models.EventStatusPending,
		OrderIDs:  orders,
		StartedAt: now,
	})
	if err == nil {
		return nil, nil
	}
	if !IsDuplicate(err) {
		return nil, err
	}
	if staleAfter <= 0 {
		return nil, ErrAlreadyProcessed
	}

	filter := bson.M{
		"_id":       id,
		"status":    models.EventStatusPending,
		"startedAt": bson.M{"$lt": now.Add(-staleAfter)},
	}
	// earlier ids stay listed until a takeover has deleted them
	update := bson.M{
		"$set":  bson.M{"startedAt": now},
		"$push": bson.M{"orderIds": bson.M{"$each": orders}},
	}
	var previous models.ProcessedEvent
	err = r.Collection().FindOneAndUpdate(ctx, filter, update).Decode(&previous)
	if err == nil {
		return &previous, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	current, err := r.FindOne(ctx, bson.M{"_id": id})
	switch {
	case errors.Is(err, ErrNotFound):
		// released between the insert and the lookup
		return nil, ErrEventInFlight
	case err != nil:
		return nil, err
	case current.Done():
		return nil, ErrAlreadyProcessed
	default:
		return nil, ErrEventInFlight
	}
}

func (r *MongoEventRepository) MarkDone(ctx context.Context, id string) error {
	res, err := r.Collection().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":      models.EventStatusDone,
		"processedAt": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoEventRepository) Unmark(ctx context.Context, id string) error {
	_, err := r.Collection().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// IsProcessed is false for pending markers.
func (r *MongoEventRepository) IsProcessed(ctx context.Context, id string) (bool, error) {
	n, err := r.Collection().CountDocuments(ctx, bson.M{"_id": id, "status": bson.M{"$ne": models.EventStatusPending}})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
