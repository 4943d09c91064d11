package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
)

// CartLockKey is the lock taken around every read-modify-write of a user's cart.
func CartLockKey(user primitive.ObjectID) string {
	return "cart:" + user.Hex()
}

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	locker   Locker
	log      *zap.Logger
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository, locker Locker, log *zap.Logger) *CartService {
	if log == nil {
		log = zap.L()
	}
	return &CartService{carts: carts, products: products, locker: locker, log: log}
}

// GetOrCreate returns the user's cart, creating an empty one on first access.
func (s *CartService) GetOrCreate(ctx context.Context, user primitive.ObjectID) (*models.CartView, error) {
	cart, err := s.carts.FindOrCreate(ctx, user)
	if err != nil {
		return nil, storeError(err, "No cart found for this user")
	}
	return s.view(ctx, cart)
}

// MutateItem applies one cart action while holding the user's cart lock.
func (s *CartService) MutateItem(ctx context.Context, user primitive.ObjectID, action models.CartAction, product primitive.ObjectID, selection map[string]any) (*models.CartView, error) {
	if !action.Valid() {
		return nil, apperrors.Validation("Action must be one of increment, decrement or remove", nil)
	}

	var current *models.ProductSummary
	if action == models.CartIncrement {
		p, err := s.products.FindByID(ctx, product)
		if err != nil {
			return nil, storeError(err, "No product found with that ID")
		}
		summary := p.Summary()
		current = &summary
	}

	unlock, err := s.locker.Lock(ctx, CartLockKey(user))
	if err != nil {
		return nil, apperrors.Upstream("Cart is busy, try again", err)
	}
	defer unlock()

	cart, err := s.carts.FindOrCreate(ctx, user)
	if err != nil {
		return nil, storeError(err, "No cart found for this user")
	}

	if err := cart.Apply(action, product, current, selection); err != nil {
		if errors.Is(err, models.ErrCartItemNotFound) {
			return nil, apperrors.ItemNotFound("Item not found in cart")
		}
		return nil, apperrors.Validation(err.Error(), err)
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, storeError(err, "No cart found for this user")
	}

	s.log.Debug("Cart updated",
		zap.String("user_id", user.Hex()),
		zap.String("action", string(action)),
		zap.Int("total_quantity", cart.TotalQuantity),
	)
	return s.view(ctx, cart)
}

// List returns every cart, for administrators.
func (s *CartService) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	carts, err := s.carts.List(ctx, spec)
	if err != nil {
		return nil, storeError(err, "No carts found")
	}
	return carts, nil
}

func (s *CartService) view(ctx context.Context, cart *models.Cart) (*models.CartView, error) {
	products, err := s.products.Summaries(ctx, cart.ProductIDs())
	if err != nil {
		return nil, storeError(err, "No product found")
	}
	view := cart.View(products)
	return &view, nil
}
