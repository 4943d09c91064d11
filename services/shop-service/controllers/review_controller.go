package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/services"
)

// ProductParam names the product id segment when reviews are mounted under /products.
const ProductParam = "Id"

// CreateReviewBody lets the product come from the body on /reviews; the nested route wins.
type CreateReviewBody struct {
	services.CreateReviewRequest
	Product string `json:"product" validate:"omitempty,mongodb"`
}

type ReviewController struct {
	reviews   *services.ReviewService
	validator *RequestValidator
}

func NewReviewController(reviews *services.ReviewService, validator *RequestValidator) *ReviewController {
	return &ReviewController{reviews: reviews, validator: validator}
}

// nestedProduct returns the product from the path, or nil outside /products/:Id/reviews.
func nestedProduct(c *gin.Context) (*primitive.ObjectID, error) {
	if c.Param(ProductParam) == "" {
		return nil, nil
	}
	id, err := ObjectIDParam(c, ProductParam)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (rc *ReviewController) ListForProduct(c *gin.Context) {
	product, err := nestedProduct(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	reviews, err := rc.reviews.ListForProduct(c.Request.Context(), product)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.List(c, len(reviews), gin.H{"reviews": reviews})
}

func (rc *ReviewController) CreateMine(c *gin.Context) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var body CreateReviewBody
	if err := rc.validator.BindJSON(c, &body); err != nil {
		apperrors.Abort(c, err)
		return
	}
	product, err := nestedProduct(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	if product == nil {
		if body.Product == "" {
			apperrors.Abort(c, apperrors.Validation("Review must belong to a product", nil))
			return
		}
		id, _ := primitive.ObjectIDFromHex(body.Product)
		product = &id
	}

	review, err := rc.reviews.CreateMine(c.Request.Context(), user, *product, body.CreateReviewRequest)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusCreated, gin.H{"review": review})
}

func (rc *ReviewController) ListMine(c *gin.Context) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	reviews, err := rc.reviews.ListMine(c.Request.Context(), user)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.List(c, len(reviews), gin.H{"reviews": reviews})
}

func (rc *ReviewController) GetMine(c *gin.Context) {
	user, id, ok := rc.ownReview(c)
	if !ok {
		return
	}
	review, err := rc.reviews.GetMine(c.Request.Context(), user, id)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"review": review})
}

func (rc *ReviewController) UpdateMine(c *gin.Context) {
	user, id, ok := rc.ownReview(c)
	if !ok {
		return
	}
	var req services.UpdateReviewRequest
	if err := rc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	review, err := rc.reviews.UpdateMine(c.Request.Context(), user, id, req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"review": review})
}

func (rc *ReviewController) DeleteMine(c *gin.Context) {
	user, id, ok := rc.ownReview(c)
	if !ok {
		return
	}
	if err := rc.reviews.DeleteMine(c.Request.Context(), user, id); err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, nil)
}

func (rc *ReviewController) Get(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	review, err := rc.reviews.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"doc": review})
}

func (rc *ReviewController) Update(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var req services.UpdateReviewRequest
	if err := rc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	review, err := rc.reviews.Update(c.Request.Context(), id, req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"doc": review})
}

func (rc *ReviewController) Delete(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	if err := rc.reviews.Delete(c.Request.Context(), id); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (rc *ReviewController) ownReview(c *gin.Context) (primitive.ObjectID, primitive.ObjectID, bool) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return user, primitive.NilObjectID, false
	}
	id, err := ObjectIDParam(c, "reviewId")
	if err != nil {
		apperrors.Abort(c, err)
		return user, id, false
	}
	return user, id, true
}
