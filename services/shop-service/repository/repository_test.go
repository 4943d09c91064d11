package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
)

const ns = "shopnow.test"

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestStore_FindByIDNotFound(t *testing.T) {
	mt := newMock(t)
	mt.Run("missing document", func(mt *mtest.T) {
		store := NewStore[models.Product](mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := store.FindByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_UpdateByIDReturnsUpdated(t *testing.T) {
	mt := newMock(t)
	mt.Run("returns document after update", func(mt *mtest.T) {
		store := NewStore[models.Order](mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "orderStatus", Value: models.OrderStatusDelivered},
		}}))

		order, err := store.UpdateByID(context.Background(), id, bson.M{"$set": bson.M{"orderStatus": models.OrderStatusDelivered}})
		require.NoError(t, err)
		assert.Equal(t, id, order.ID)
		assert.Equal(t, models.OrderStatusDelivered, order.OrderStatus)
	})
}

func TestStore_CreateManyDuplicate(t *testing.T) {
	mt := newMock(t)
	mt.Run("duplicate key", func(mt *mtest.T) {
		store := NewStore[models.Order](mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))

		err := store.CreateMany(context.Background(), []models.Order{{ID: primitive.NewObjectID()}})
		require.Error(t, err)
		assert.True(t, IsDuplicate(err))
	})

	mt.Run("empty batch is a no-op", func(mt *mtest.T) {
		store := NewStore[models.Order](mt.Coll)
		assert.NoError(t, store.CreateMany(context.Background(), nil))
	})
}

func TestProductRepository_Summaries(t *testing.T) {
	mt := newMock(t)
	mt.Run("maps by id", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: a}, {Key: "title", Value: "Runner"}, {Key: "price", Value: 500.0}},
			bson.D{{Key: "_id", Value: b}, {Key: "title", Value: "Walker"}, {Key: "price", Value: 900.0}},
		))

		got, err := repo.Summaries(context.Background(), []primitive.ObjectID{a, b})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Runner", got[a].Title)
		assert.Equal(t, 900.0, got[b].Price)
	})
}

func TestProductRepository_SetRatings(t *testing.T) {
	mt := newMock(t)
	mt.Run("unknown product", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.SetRatings(context.Background(), primitive.NewObjectID(), models.DefaultRatingStats())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	mt.Run("matched", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		err := repo.SetRatings(context.Background(), primitive.NewObjectID(), models.RatingStats{AvgRating: 3.5, RatingsQuantity: 2})
		assert.NoError(t, err)
	})
}

func TestProductRepository_MostPopular(t *testing.T) {
	mt := newMock(t)
	mt.Run("decodes highlights", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "category", Value: "shoes"}, {Key: "image", Value: "shoe.jpg"}},
			bson.D{{Key: "category", Value: "shirts"}, {Key: "image", Value: "shirt.jpg"}},
		))

		got, err := repo.MostPopular(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []models.CategoryHighlight{
			{Category: "shoes", Image: "shoe.jpg"},
			{Category: "shirts", Image: "shirt.jpg"},
		}, got)
	})
}

func TestProductRepository_ListKeepsProjection(t *testing.T) {
	mt := newMock(t)
	mt.Run("raw documents", func(mt *mtest.T) {
		repo := NewProductRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "title", Value: "Runner"}},
		))

		spec, err := query.Parse(map[string][]string{"fields": {"title"}})
		require.NoError(t, err)
		docs, err := repo.List(context.Background(), spec)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, bson.M{"title": "Runner"}, docs[0])
	})
}

func TestReviewRepository_RatingStats(t *testing.T) {
	mt := newMock(t)
	mt.Run("rounds to one decimal", func(mt *mtest.T) {
		repo := NewReviewRepository(mt.Coll)
		product := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: product},
			{Key: "nRating", Value: 3},
			{Key: "avgRating", Value: 3.6666666},
			{Key: "nReviews", Value: 2},
		}))

		stats, found, err := repo.RatingStats(context.Background(), product)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, models.RatingStats{AvgRating: 3.7, RatingsQuantity: 3, ReviewsQuantity: 2}, stats)
	})

	mt.Run("no reviews", func(mt *mtest.T) {
		repo := NewReviewRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		stats, found, err := repo.RatingStats(context.Background(), primitive.NewObjectID())
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, models.DefaultRatingStats(), stats)
	})
}

func TestEventRepository_Claim(t *testing.T) {
	const evt = "checkout.session.completed"
	duplicate := mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}
	mt := newMock(t)

	mt.Run("first delivery", func(mt *mtest.T) {
		repo := NewEventRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		previous, err := repo.Claim(context.Background(), "evt_1", evt, []primitive.ObjectID{primitive.NewObjectID()}, time.Minute)
		require.NoError(t, err)
		assert.Nil(t, previous)
	})

	mt.Run("redelivery without takeover", func(mt *mtest.T) {
		repo := NewEventRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(duplicate))

		_, err := repo.Claim(context.Background(), "evt_1", evt, nil, 0)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	mt.Run("takes over a stale pending marker", func(mt *mtest.T) {
		repo := NewEventRepository(mt.Coll)
		stale := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(duplicate),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: "evt_1"},
				{Key: "status", Value: models.EventStatusPending},
				{Key: "orderIds", Value: bson.A{stale}},
			}}),
		)

		previous, err := repo.Claim(context.Background(), "evt_1", evt, []primitive.ObjectID{primitive.NewObjectID()}, time.Minute)
		require.NoError(t, err)
		require.NotNil(t, previous)
		assert.Equal(t, []primitive.ObjectID{stale}, previous.OrderIDs)
	})

	mt.Run("finished marker is a duplicate", func(mt *mtest.T) {
		repo := NewEventRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(duplicate),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "evt_1"},
				{Key: "status", Value: models.EventStatusDone},
			}),
		)

		_, err := repo.Claim(context.Background(), "evt_1", evt, []primitive.ObjectID{primitive.NewObjectID()}, time.Minute)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	mt.Run("fresh pending marker is in flight", func(mt *mtest.T) {
		repo := NewEventRepository(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(duplicate),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "evt_1"},
				{Key: "status", Value: models.EventStatusPending},
			}),
		)

		_, err := repo.Claim(context.Background(), "evt_1", evt, []primitive.ObjectID{primitive.NewObjectID()}, time.Minute)
		assert.ErrorIs(t, err, ErrEventInFlight)
	})
}

func TestEventRepository_MarkDone(t *testing.T) {
	mt := newMock(t)
	mt.Run("missing marker", func(mt *mtest.T) {
		repo := NewEventRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		assert.ErrorIs(t, repo.MarkDone(context.Background(), "evt_1"), ErrNotFound)
	})

	mt.Run("pending becomes done", func(mt *mtest.T) {
		repo := NewEventRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		assert.NoError(t, repo.MarkDone(context.Background(), "evt_1"))
	})
}

func TestProcessedEventDone(t *testing.T) {
	assert.False(t, models.ProcessedEvent{Status: models.EventStatusPending}.Done())
	assert.True(t, models.ProcessedEvent{Status: models.EventStatusDone}.Done())
	assert.True(t, models.ProcessedEvent{}.Done(), "markers without a status predate pending markers")
}

func TestCartRepository_FindOrCreate(t *testing.T) {
	mt := newMock(t)
	mt.Run("upserts an empty cart", func(mt *mtest.T) {
		repo := NewCartRepository(mt.Coll)
		user := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "user", Value: user},
			{Key: "items", Value: bson.A{}},
			{Key: "totalQuantity", Value: 0},
			{Key: "totalAmount", Value: 0.0},
			{Key: "totalDiscount", Value: 0.0},
		}}))

		cart, err := repo.FindOrCreate(context.Background(), user)
		require.NoError(t, err)
		assert.Equal(t, user, cart.User)
		assert.True(t, cart.IsEmpty())
	})
}

func TestUserRepository_FindByResetTokenExpired(t *testing.T) {
	mt := newMock(t)
	mt.Run("no match", func(mt *mtest.T) {
		repo := NewUserRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.FindByResetToken(context.Background(), "hashed", time.Now())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestNoopTransactor(t *testing.T) {
	var tx Transactor = NoopTransactor{}
	assert.False(t, tx.Atomic())

	called := false
	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
