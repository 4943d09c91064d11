package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/common/logger"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/services"
)

// maxWebhookBytes matches Stripe's documented payload ceiling with headroom.
const maxWebhookBytes = 65536

type WebhookController struct {
	checkout *services.CheckoutService
}

func NewWebhookController(checkout *services.CheckoutService) *WebhookController {
	return &WebhookController{checkout: checkout}
}

// StripeCheckout receives Stripe events. The raw body is needed for signature checks, so
// this route must not sit behind the body sanitiser.
func (wc *WebhookController) StripeCheckout(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		apperrors.Abort(c, apperrors.Validation("Failed to read webhook body", err))
		return
	}

	if err := wc.checkout.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		logger.Warn(c, "Stripe webhook not applied", zap.Error(err))
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
