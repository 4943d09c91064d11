package repository

import (
	"context"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
)

// ReviewRepository defines the interface for review data access
type ReviewRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	FindByProduct(ctx context.Context, product *primitive.ObjectID) ([]models.Review, error)
	FindByUser(ctx context.Context, user primitive.ObjectID) ([]models.Review, error)
	FindMineByID(ctx context.Context, user, id primitive.ObjectID) (*models.Review, error)
	Create(ctx context.Context, review *models.Review) error
	Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Review, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	RatingStats(ctx context.Context, product primitive.ObjectID) (models.RatingStats, bool, error)
}

// MongoReviewRepository implements ReviewRepository on the reviews collection
type MongoReviewRepository struct {
	*Store[models.Review]
}

func NewReviewRepository(coll *mongo.Collection) ReviewRepository {
	return &MongoReviewRepository{Store: NewStore[models.Review](coll)}
}

// FindByProduct lists the reviews of product, or every review when product is nil.
func (r *MongoReviewRepository) FindByProduct(ctx context.Context, product *primitive.ObjectID) ([]models.Review, error) {
	filter := bson.M{}
	if product != nil {
		filter["product"] = *product
	}
	return r.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *MongoReviewRepository) FindByUser(ctx context.Context, user primitive.ObjectID) ([]models.Review, error) {
	return r.Find(ctx, bson.M{"user": user}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *MongoReviewRepository) FindMineByID(ctx context.Context, user, id primitive.ObjectID) (*models.Review, error) {
	return r.FindOne(ctx, bson.M{"_id": id, "user": user})
}

func (r *MongoReviewRepository) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Review, error) {
	return r.UpdateByID(ctx, id, bson.M{"$set": fields})
}

func (r *MongoReviewRepository) Delete(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	return r.DeleteByID(ctx, id)
}

type ratingGroup struct {
	AvgRating       float64 `bson:"avgRating"`
	RatingsQuantity int     `bson:"nRating"`
	ReviewsQuantity int     `bson:"nReviews"`
}

// RatingStats aggregates the current reviews of product. The bool is false when the
// product has no reviews.
func (r *MongoReviewRepository) RatingStats(ctx context.Context, product primitive.ObjectID) (models.RatingStats, bool, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "product", Value: product}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$product"},
			{Key: "nRating", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "nReviews", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gt", Value: bson.A{
					bson.D{{Key: "$strLenCP", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$review", ""}}}}},
					models.MinReviewBodyLength,
				}}},
				1,
				0,
			}}}}}},
		}}},
	}

	cursor, err := r.Collection().Aggregate(ctx, pipeline)
	if err != nil {
		return models.RatingStats{}, false, err
	}
	var groups []ratingGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return models.RatingStats{}, false, err
	}
	if len(groups) == 0 {
		return models.DefaultRatingStats(), false, nil
	}

	g := groups[0]
	return models.RatingStats{
		AvgRating:       math.Round(g.AvgRating*10) / 10,
		RatingsQuantity: g.RatingsQuantity,
		ReviewsQuantity: g.ReviewsQuantity,
	}, true, nil
}
