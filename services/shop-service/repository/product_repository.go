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

// popularCategories caps the most-popular listing.
const popularCategories = 4

// ProductRepository defines the interface for catalog data access
type ProductRepository interface {
	List(ctx context.Context, spec query.Spec) ([]bson.M, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.ProductSummary, error)
	SetRatings(ctx context.Context, id primitive.ObjectID, stats models.RatingStats) error
	MostPopular(ctx context.Context) ([]models.CategoryHighlight, error)
}

// MongoProductRepository implements ProductRepository on the products collection
type MongoProductRepository struct {
	*Store[models.Product]
}

func NewProductRepository(coll *mongo.Collection) ProductRepository {
	return &MongoProductRepository{Store: NewStore[models.Product](coll)}
}

func (r *MongoProductRepository) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	return r.FindRaw(ctx, spec.Filter, spec.FindOptions())
}

func (r *MongoProductRepository) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Product, error) {
	return r.UpdateByID(ctx, id, bson.M{"$set": fields})
}

func (r *MongoProductRepository) Delete(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	return r.DeleteByID(ctx, id)
}

// Summaries loads the expansion fields for ids. Unknown ids are absent from the map.
func (r *MongoProductRepository) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.ProductSummary, error) {
	out := make(map[primitive.ObjectID]models.ProductSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	opts := options.Find().SetProjection(bson.M{
		"brand": 1, "title": 1, "image": 1, "price": 1, "discountPrice": 1,
	})
	cursor, err := r.Collection().Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}

	var summaries []models.ProductSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, err
	}
	for _, s := range summaries {
		out[s.ID] = s
	}
	return out, nil
}

// SetRatings writes the derived review aggregates onto the product.
func (r *MongoProductRepository) SetRatings(ctx context.Context, id primitive.ObjectID, stats models.RatingStats) error {
	res, err := r.Collection().UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"avgRating":       stats.AvgRating,
		"ratingsQuantity": stats.RatingsQuantity,
		"reviewsQuantity": stats.ReviewsQuantity,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MostPopular returns one image per category for the first few categories.
func (r *MongoProductRepository) MostPopular(ctx context.Context) ([]models.CategoryHighlight, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "image", Value: bson.D{{Key: "$first", Value: "$image"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: popularCategories}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "category", Value: "$_id"},
			{Key: "image", Value: 1},
		}}},
	}

	cursor, err := r.Collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	highlights := []models.CategoryHighlight{}
	if err := cursor.All(ctx, &highlights); err != nil {
		return nil, err
	}
	return highlights, nil
}
