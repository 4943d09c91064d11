package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
)

func newCartFixture(products ...models.Product) (*CartService, *fakeCarts) {
	carts := newFakeCarts()
	return NewCartService(carts, newFakeProducts(products...), NewMemoryLocker(), zap.NewNop()), carts
}

func TestCartServiceMutateItem(t *testing.T) {
	ctx := context.Background()
	product := models.Product{ID: primitive.NewObjectID(), Title: "Runner", Price: 500, DiscountPrice: 50}
	svc, carts := newCartFixture(product)
	user := primitive.NewObjectID()

	view, err := svc.MutateItem(ctx, user, models.CartIncrement, product.ID, map[string]any{"size": "M"})
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalQuantity)
	assert.Equal(t, 500.0, view.TotalAmount)
	assert.Equal(t, 50.0, view.TotalDiscount)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Runner", view.Items[0].Product.Title)

	view, err = svc.MutateItem(ctx, user, models.CartIncrement, product.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, view.TotalAmount)
	assert.Equal(t, 100.0, view.TotalDiscount)

	view, err = svc.MutateItem(ctx, user, models.CartDecrement, product.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 500.0, view.TotalAmount)

	view, err = svc.MutateItem(ctx, user, models.CartRemove, product.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.TotalQuantity)

	stored, err := carts.FindByUser(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
}

func TestCartServiceMutateItemErrors(t *testing.T) {
	ctx := context.Background()
	product := models.Product{ID: primitive.NewObjectID(), Price: 10}
	svc, carts := newCartFixture(product)
	user := primitive.NewObjectID()

	_, err := svc.MutateItem(ctx, user, models.CartIncrement, product.ID, nil)
	require.NoError(t, err)
	saves := carts.saves

	t.Run("unknown action", func(t *testing.T) {
		_, err := svc.MutateItem(ctx, user, "double", product.ID, nil)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("missing line", func(t *testing.T) {
		for _, action := range []models.CartAction{models.CartDecrement, models.CartRemove} {
			_, err := svc.MutateItem(ctx, user, action, primitive.NewObjectID(), nil)
			assert.True(t, apperrors.IsKind(err, apperrors.KindItemNotFound))
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.MutateItem(ctx, user, models.CartIncrement, primitive.NewObjectID(), nil)
		assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	})

	assert.Equal(t, saves, carts.saves, "failed mutations must not be saved")
	stored, err := carts.FindByUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalQuantity)
}

func TestCartServiceConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	product := models.Product{ID: primitive.NewObjectID(), Price: 3}
	svc, carts := newCartFixture(product)
	user := primitive.NewObjectID()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.MutateItem(ctx, user, models.CartIncrement, product.ID, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := carts.FindByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, n, stored.Items[0].Quantity)
	assert.Equal(t, n, stored.TotalQuantity)
	assert.Equal(t, float64(3*n), stored.TotalAmount)
}

func TestCartServiceGetOrCreate(t *testing.T) {
	svc, carts := newCartFixture()
	user := primitive.NewObjectID()

	first, err := svc.GetOrCreate(context.Background(), user)
	require.NoError(t, err)
	second, err := svc.GetOrCreate(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, first.Items)
	assert.Len(t, carts.carts, 1)
}
