package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/services"
)

// UpdateCartRequest is the body of PATCH /carts/my-cart.
type UpdateCartRequest struct {
	Action string `json:"action" validate:"required"`
	Item   struct {
		Product     string         `json:"product" validate:"required,mongodb"`
		MySelection map[string]any `json:"mySelection"`
	} `json:"item"`
}

type CartController struct {
	carts     *services.CartService
	validator *RequestValidator
}

func NewCartController(carts *services.CartService, validator *RequestValidator) *CartController {
	return &CartController{carts: carts, validator: validator}
}

// GetMyCart returns the caller's cart, creating it on first access.
func (cc *CartController) GetMyCart(c *gin.Context) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	cart, err := cc.carts.GetOrCreate(c.Request.Context(), user)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"cart": cart})
}

func (cc *CartController) UpdateMyCart(c *gin.Context) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var req UpdateCartRequest
	if err := cc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	product, _ := primitive.ObjectIDFromHex(req.Item.Product)

	cart, err := cc.carts.MutateItem(c.Request.Context(), user, models.CartAction(req.Action), product, req.Item.MySelection)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"cart": cart})
}

func (cc *CartController) List(c *gin.Context) {
	spec, err := query.Parse(c.Request.URL.Query())
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	carts, err := cc.carts.List(c.Request.Context(), spec)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.List(c, len(carts), gin.H{"doc": carts})
}
