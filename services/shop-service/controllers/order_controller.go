package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/services"
)

type OrderController struct {
	orders    *services.OrderService
	checkout  *services.CheckoutService
	validator *RequestValidator
}

func NewOrderController(orders *services.OrderService, checkout *services.CheckoutService, validator *RequestValidator) *OrderController {
	return &OrderController{orders: orders, checkout: checkout, validator: validator}
}

// PaymentIntent charges the caller's cart total and returns the Stripe client secret.
func (oc *OrderController) PaymentIntent(c *gin.Context) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	secret, err := oc.checkout.CreatePaymentIntent(c.Request.Context(), user)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"clientSecret": secret})
}

// CheckoutSession takes the delivery address as the body and returns the hosted
// checkout URL.
func (oc *OrderController) CheckoutSession(c *gin.Context) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var address models.Address
	if err := oc.validator.BindJSON(c, &address); err != nil {
		apperrors.Abort(c, err)
		return
	}
	url, err := oc.checkout.CreateCheckoutSession(c.Request.Context(), user, address)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"url": url})
}

func (oc *OrderController) MyOrders(c *gin.Context) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	orders, err := oc.orders.ListMine(c.Request.Context(), user)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.List(c, len(orders), gin.H{"orders": orders})
}

func (oc *OrderController) MyOrder(c *gin.Context) {
	user, err := CurrentUserID(c)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	id, err := ObjectIDParam(c, "orderId")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	order, err := oc.orders.GetMine(c.Request.Context(), user, id)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"order": order})
}

func (oc *OrderController) List(c *gin.Context) {
	spec, err := query.Parse(c.Request.URL.Query())
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	orders, err := oc.orders.List(c.Request.Context(), spec)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.List(c, len(orders), gin.H{"doc": orders})
}

func (oc *OrderController) Get(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	order, err := oc.orders.Get(c.Request.Context(), id)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"doc": order})
}

func (oc *OrderController) Create(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := oc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	order, err := oc.orders.Create(c.Request.Context(), req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusCreated, gin.H{"doc": order})
}

func (oc *OrderController) Update(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	var req services.UpdateOrderRequest
	if err := oc.validator.BindJSON(c, &req); err != nil {
		apperrors.Abort(c, err)
		return
	}
	order, err := oc.orders.Update(c.Request.Context(), id, req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	apperrors.OK(c, http.StatusOK, gin.H{"doc": order})
}

func (oc *OrderController) Delete(c *gin.Context) {
	id, err := ObjectIDParam(c, "Id")
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	if err := oc.orders.Delete(c.Request.Context(), id); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
