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

// privateUserFields never leave the store through a listing.
var privateUserFields = []string{"password", "passwordResetToken", "passwordResetExpires", "passwordChangedAt", "active"}

// UserRepository defines the interface for user data access. Deactivated users are
// invisible to every read.
type UserRepository interface {
	List(ctx context.Context, spec query.Spec) ([]bson.M, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, hashedToken string, now time.Time) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id primitive.ObjectID, set bson.M, unset ...string) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error)
}

// MongoUserRepository implements UserRepository on the users collection
type MongoUserRepository struct {
	*Store[models.User]
}

func NewUserRepository(coll *mongo.Collection) UserRepository {
	return &MongoUserRepository{Store: NewStore[models.User](coll)}
}

func active(filter bson.M) bson.M {
	filter["active"] = bson.M{"$ne": false}
	return filter
}

func (r *MongoUserRepository) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	spec.Protect(privateUserFields...)
	spec.And("active", bson.M{"$ne": false})
	return r.FindRaw(ctx, spec.Filter, spec.FindOptions())
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.FindOne(ctx, active(bson.M{"_id": id}))
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.FindOne(ctx, active(bson.M{"email": email}))
}

// FindByResetToken matches a hashed reset token that has not expired at now.
func (r *MongoUserRepository) FindByResetToken(ctx context.Context, hashedToken string, now time.Time) (*models.User, error) {
	return r.FindOne(ctx, active(bson.M{
		"passwordResetToken":   hashedToken,
		"passwordResetExpires": bson.M{"$gt": now},
	}))
}

// Update sets and unsets fields of an active user and returns the result.
func (r *MongoUserRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M, unset ...string) (*models.User, error) {
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		fields := bson.M{}
		for _, f := range unset {
			fields[f] = ""
		}
		update["$unset"] = fields
	}
	if len(update) == 0 {
		return r.FindByID(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	if err := r.Collection().FindOneAndUpdate(ctx, active(bson.M{"_id": id}), update, opts).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *MongoUserRepository) Delete(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.DeleteByID(ctx, id)
}

// Summaries loads the author fields shown next to reviews and orders.
func (r *MongoUserRepository) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	opts := options.Find().SetProjection(bson.M{"firstName": 1, "lastName": 1, "photo": 1})
	cursor, err := r.Collection().Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	var summaries []models.UserSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, err
	}
	for _, s := range summaries {
		out[s.ID] = s
	}
	return out, nil
}
