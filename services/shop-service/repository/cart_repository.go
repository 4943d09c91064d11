package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
)

// CartRepository defines the interface for cart data access
type CartRepository interface {
	List(ctx context.Context, spec query.Spec) ([]bson.M, error)
	FindByUser(ctx context.Context, user primitive.ObjectID) (*models.Cart, error)
	FindOrCreate(ctx context.Context, user primitive.ObjectID) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Clear(ctx context.Context, user primitive.ObjectID) error
}

// MongoCartRepository stores one cart document per user
type MongoCartRepository struct {
	*Store[models.Cart]
}

func NewCartRepository(coll *mongo.Collection) CartRepository {
	return &MongoCartRepository{Store: NewStore[models.Cart](coll)}
}

// List never exposes the owning user, matching the single-cart responses.
func (r *MongoCartRepository) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	spec.Protect("user")
	return r.FindRaw(ctx, spec.Filter, spec.FindOptions())
}

func (r *MongoCartRepository) FindByUser(ctx context.Context, user primitive.ObjectID) (*models.Cart, error) {
	return r.FindOne(ctx, bson.M{"user": user})
}

// FindOrCreate returns the user's cart, inserting an empty one if none exists.
func (r *MongoCartRepository) FindOrCreate(ctx context.Context, user primitive.ObjectID) (*models.Cart, error) {
	empty := models.NewCart(user)
	update := bson.M{"$setOnInsert": bson.M{
		"_id":           empty.ID,
		"items":         bson.A{},
		"totalQuantity": 0,
		"totalAmount":   0.0,
		"totalDiscount": 0.0,
		"updatedAt":     time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var cart models.Cart
	err := r.Collection().FindOneAndUpdate(ctx, bson.M{"user": user}, update, opts).Decode(&cart)
	if IsDuplicate(err) {
		// lost the insert race; the other writer's cart is there now
		return r.FindByUser(ctx, user)
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Save replaces the user's cart, inserting it on first write.
func (r *MongoCartRepository) Save(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now().UTC()
	_, err := r.Collection().ReplaceOne(ctx,
		bson.M{"user": cart.User},
		cart,
		options.Replace().SetUpsert(true),
	)
	return err
}

// Clear empties the user's cart and zeroes its totals. A missing cart is not an error.
func (r *MongoCartRepository) Clear(ctx context.Context, user primitive.ObjectID) error {
	_, err := r.Collection().UpdateOne(ctx, bson.M{"user": user}, bson.M{"$set": bson.M{
		"items":         bson.A{},
		"totalQuantity": 0,
		"totalAmount":   0.0,
		"totalDiscount": 0.0,
		"updatedAt":     time.Now().UTC(),
	}})
	return err
}
