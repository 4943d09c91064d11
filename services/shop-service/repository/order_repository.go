package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	List(ctx context.Context, spec query.Spec) ([]bson.M, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindMine(ctx context.Context, user primitive.ObjectID) ([]models.Order, error)
	FindMineByID(ctx context.Context, user, id primitive.ObjectID) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	CreateMany(ctx context.Context, orders []models.Order) error
	Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Order, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	DeleteMany(ctx context.Context, ids []primitive.ObjectID) error
}

// MongoOrderRepository implements OrderRepository on the orders collection
type MongoOrderRepository struct {
	*Store[models.Order]
}

func NewOrderRepository(coll *mongo.Collection) OrderRepository {
	return &MongoOrderRepository{Store: NewStore[models.Order](coll)}
}

func (r *MongoOrderRepository) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	return r.FindRaw(ctx, spec.Filter, spec.FindOptions())
}

// FindMine retrieves a user's orders, newest first
func (r *MongoOrderRepository) FindMine(ctx context.Context, user primitive.ObjectID) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderDate", Value: -1}})
	return r.Find(ctx, bson.M{"user": user}, opts)
}

// FindMineByID retrieves one order only if user owns it
func (r *MongoOrderRepository) FindMineByID(ctx context.Context, user, id primitive.ObjectID) (*models.Order, error) {
	return r.FindOne(ctx, bson.M{"_id": id, "user": user})
}

func (r *MongoOrderRepository) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Order, error) {
	return r.UpdateByID(ctx, id, bson.M{"$set": fields})
}

func (r *MongoOrderRepository) Delete(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return r.DeleteByID(ctx, id)
}

// DeleteMany removes the given orders. Used to undo a partially written batch.
func (r *MongoOrderRepository) DeleteMany(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.Collection().DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}
