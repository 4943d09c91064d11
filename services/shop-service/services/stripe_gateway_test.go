package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
)

func newTestStripeGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	gw, err := NewStripeGateway(StripeGatewayConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		Backends:      &stripe.Backends{API: backend, Connect: backend, Uploads: backend},
	})
	require.NoError(t, err)
	return gw
}

func TestNewStripeGatewayRequiresSecrets(t *testing.T) {
	_, err := NewStripeGateway(StripeGatewayConfig{WebhookSecret: "whsec"})
	assert.Error(t, err)
	_, err = NewStripeGateway(StripeGatewayConfig{SecretKey: "sk_test"})
	assert.Error(t, err)
}

func TestStripeGatewayCreatePaymentIntent(t *testing.T) {
	gw := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "123450", r.PostForm.Get("amount"))
		assert.Equal(t, "inr", r.PostForm.Get("currency"))
		assert.Equal(t, "true", r.PostForm.Get("automatic_payment_methods[enabled]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","client_secret":"pi_1_secret_abc"}`))
	})

	secret, err := gw.CreatePaymentIntent(context.Background(), 123450, "inr")
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret_abc", secret)
}

func TestStripeGatewayListLineItemsExpandsProduct(t *testing.T) {
	gw := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_1/line_items", r.URL.Path)
		assert.Equal(t, "data.price.product", r.URL.Query().Get("expand[0]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"url": "/v1/checkout/sessions/cs_1/line_items",
			"has_more": false,
			"data": [{
				"id": "li_1",
				"object": "item",
				"amount_total": 100000,
				"quantity": 2,
				"price": {
					"id": "price_1",
					"object": "price",
					"product": {
						"id": "prod_1",
						"object": "product",
						"metadata": {"productId": "64b7f0c2a1b2c3d4e5f60718", "mySelection": "{\"size\":\"M\"}"}
					}
				}
			}]
		}`))
	})

	items, err := gw.ListLineItems(context.Background(), "cs_1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].Quantity)
	assert.Equal(t, int64(100000), items[0].AmountTotal)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", items[0].Price.Product.Metadata[metaProductID])
}

func TestStripeGatewayProviderError(t *testing.T) {
	gw := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Amount must be at least 50"}}`))
	})

	_, err := gw.CreatePaymentIntent(context.Background(), 1, "inr")
	var stripeErr *stripe.Error
	require.ErrorAs(t, err, &stripeErr)
	assert.Equal(t, "Amount must be at least 50", stripeErr.Msg)
}

func TestStripeGatewayConstructEvent(t *testing.T) {
	gw := newTestStripeGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	payload, sig := signedEvent(t, "evt_9", stripe.EventTypeCheckoutSessionCompleted, map[string]any{"id": "cs_9", "object": "checkout.session"})

	event, err := gw.ConstructEvent(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, "evt_9", event.ID)
	assert.Equal(t, stripe.EventTypeCheckoutSessionCompleted, event.Type)

	_, err = gw.ConstructEvent(append(payload, ' '), sig)
	assert.Error(t, err)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(123450), toMinorUnits(1234.5))
	assert.Equal(t, int64(1999), toMinorUnits(19.99))
	assert.Equal(t, int64(0), toMinorUnits(0))
}
