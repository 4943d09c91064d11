package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
)

type CreateReviewRequest struct {
	Rating float64 `json:"rating" validate:"required,min=1,max=5"`
	Review string  `json:"review" validate:"max=2000"`
}

type UpdateReviewRequest struct {
	Rating *float64 `json:"rating" validate:"omitempty,min=1,max=5"`
	Review *string  `json:"review" validate:"omitempty,max=2000"`
}

// ReviewService owns reviews and keeps the rating aggregates of their products current.
type ReviewService struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	users    repository.UserRepository
	tx       repository.Transactor
	cache    *CacheManager
	log      *zap.Logger
}

func NewReviewService(reviews repository.ReviewRepository, products repository.ProductRepository, users repository.UserRepository, tx repository.Transactor, cache *CacheManager, log *zap.Logger) *ReviewService {
	if log == nil {
		log = zap.L()
	}
	if tx == nil {
		tx = repository.NoopTransactor{}
	}
	if cache == nil {
		cache = NewCacheManager(nil, 0, nil)
	}
	return &ReviewService{reviews: reviews, products: products, users: users, tx: tx, cache: cache, log: log}
}

// ListForProduct lists the reviews of product, or all reviews when product is nil.
func (s *ReviewService) ListForProduct(ctx context.Context, product *primitive.ObjectID) ([]models.ReviewView, error) {
	reviews, err := s.reviews.FindByProduct(ctx, product)
	if err != nil {
		return nil, storeError(err, "")
	}
	return expandReviews(ctx, s.products, s.users, reviews)
}

func (s *ReviewService) ListMine(ctx context.Context, user primitive.ObjectID) ([]models.ReviewView, error) {
	reviews, err := s.reviews.FindByUser(ctx, user)
	if err != nil {
		return nil, storeError(err, "")
	}
	return expandReviews(ctx, s.products, s.users, reviews)
}

func (s *ReviewService) CreateMine(ctx context.Context, user, product primitive.ObjectID, req CreateReviewRequest) (*models.ReviewView, error) {
	if _, err := s.products.FindByID(ctx, product); err != nil {
		return nil, storeError(err, "No product found with that ID")
	}

	review := &models.Review{
		ID:        primitive.NewObjectID(),
		Rating:    req.Rating,
		Review:    strings.TrimSpace(req.Review),
		CreatedAt: time.Now().UTC(),
		Product:   product,
		User:      user,
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.reviews.Create(ctx, review); err != nil {
			return err
		}
		if err := s.RecalculateRatings(ctx, product); err != nil {
			s.revert(ctx, review.ID, func(ctx context.Context) error {
				_, err := s.reviews.Delete(ctx, review.ID)
				return err
			})
			return err
		}
		return nil
	})
	if repository.IsDuplicate(err) {
		return nil, apperrors.Conflict("You have already reviewed this product", err)
	}
	if err != nil {
		return nil, storeError(err, "")
	}

	s.cache.InvalidateProduct(ctx, product.Hex())
	return s.expandOne(ctx, review)
}

func (s *ReviewService) GetMine(ctx context.Context, user, id primitive.ObjectID) (*models.ReviewView, error) {
	review, err := s.reviews.FindMineByID(ctx, user, id)
	if err != nil {
		return nil, storeError(err, "No review found with that ID")
	}
	return s.expandOne(ctx, review)
}

// UpdateMine edits the user's own review and flags it as modified.
func (s *ReviewService) UpdateMine(ctx context.Context, user, id primitive.ObjectID, req UpdateReviewRequest) (*models.ReviewView, error) {
	if _, err := s.reviews.FindMineByID(ctx, user, id); err != nil {
		return nil, storeError(err, "No review found with that ID")
	}
	return s.update(ctx, id, req, true)
}

func (s *ReviewService) DeleteMine(ctx context.Context, user, id primitive.ObjectID) error {
	if _, err := s.reviews.FindMineByID(ctx, user, id); err != nil {
		return storeError(err, "No review found with that ID")
	}
	return s.Delete(ctx, id)
}

func (s *ReviewService) Get(ctx context.Context, id primitive.ObjectID) (*models.ReviewView, error) {
	review, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "No review found with that ID")
	}
	return s.expandOne(ctx, review)
}

// Update edits any review without marking it modified.
func (s *ReviewService) Update(ctx context.Context, id primitive.ObjectID, req UpdateReviewRequest) (*models.ReviewView, error) {
	return s.update(ctx, id, req, false)
}

func (s *ReviewService) Delete(ctx context.Context, id primitive.ObjectID) error {
	var product primitive.ObjectID
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		deleted, err := s.reviews.Delete(ctx, id)
		if err != nil {
			return err
		}
		product = deleted.Product
		if err := s.RecalculateRatings(ctx, product); err != nil {
			s.revert(ctx, id, func(ctx context.Context) error {
				return s.reviews.Create(ctx, deleted)
			})
			return err
		}
		return nil
	})
	if err != nil {
		return storeError(err, "No review found with that ID")
	}
	s.cache.InvalidateProduct(ctx, product.Hex())
	return nil
}

// RecalculateRatings writes the current review aggregates onto product. A product with
// no reviews goes back to the default rating.
func (s *ReviewService) RecalculateRatings(ctx context.Context, product primitive.ObjectID) error {
	stats, _, err := s.reviews.RatingStats(ctx, product)
	if err != nil {
		return err
	}
	if err := s.products.SetRatings(ctx, product, stats); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// the product was deleted; nothing to keep in sync
			s.log.Warn("Rating recalculation for missing product", zap.String("product_id", product.Hex()))
			return nil
		}
		return err
	}
	return nil
}

// revert undoes a review write whose rating update failed, so the review and the
// product aggregates never disagree. A transaction already rolls the write back.
func (s *ReviewService) revert(ctx context.Context, review primitive.ObjectID, undo func(context.Context) error) {
	if s.tx.Atomic() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateAfter)
	defer cancel()
	if err := undo(ctx); err != nil {
		s.log.Error("Failed to revert review write", zap.String("review_id", review.Hex()), zap.Error(err))
	}
}

func (s *ReviewService) update(ctx context.Context, id primitive.ObjectID, req UpdateReviewRequest, byAuthor bool) (*models.ReviewView, error) {
	set := bson.M{}
	if req.Rating != nil {
		set["rating"] = *req.Rating
	}
	if req.Review != nil {
		set["review"] = strings.TrimSpace(*req.Review)
	}
	if len(set) == 0 {
		return nil, apperrors.Validation("Nothing to update", nil)
	}
	if byAuthor {
		set["modified"] = true
	}

	previous, err := s.reviews.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "No review found with that ID")
	}

	var updated *models.Review
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = s.reviews.Update(ctx, id, set); err != nil {
			return err
		}
		if err := s.RecalculateRatings(ctx, updated.Product); err != nil {
			s.revert(ctx, id, func(ctx context.Context) error {
				_, err := s.reviews.Update(ctx, id, bson.M{
					"rating":   previous.Rating,
					"review":   previous.Review,
					"modified": previous.Modified,
				})
				return err
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "No review found with that ID")
	}

	s.cache.InvalidateProduct(ctx, updated.Product.Hex())
	return s.expandOne(ctx, updated)
}

func (s *ReviewService) expandOne(ctx context.Context, review *models.Review) (*models.ReviewView, error) {
	views, err := expandReviews(ctx, s.products, s.users, []models.Review{*review})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// expandReviews resolves the product and author of every review with one lookup each.
func expandReviews(ctx context.Context, products repository.ProductRepository, users repository.UserRepository, reviews []models.Review) ([]models.ReviewView, error) {
	productIDs := make([]primitive.ObjectID, 0, len(reviews))
	userIDs := make([]primitive.ObjectID, 0, len(reviews))
	for _, r := range reviews {
		productIDs = append(productIDs, r.Product)
		userIDs = append(userIDs, r.User)
	}

	productSummaries, err := products.Summaries(ctx, productIDs)
	if err != nil {
		return nil, storeError(err, "")
	}
	userSummaries, err := users.Summaries(ctx, userIDs)
	if err != nil {
		return nil, storeError(err, "")
	}

	views := make([]models.ReviewView, 0, len(reviews))
	for i := range reviews {
		r := &reviews[i]
		var product *models.ProductSummary
		if p, ok := productSummaries[r.Product]; ok {
			// reviews show title, brand and image only
			product = &models.ProductSummary{ID: p.ID, Title: p.Title, Brand: p.Brand, Image: p.Image}
		}
		var user *models.UserSummary
		if u, ok := userSummaries[r.User]; ok {
			user = &u
		}
		views = append(views, r.View(product, user))
	}
	return views, nil
}
