package services

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// PaymentGateway is the payment provider as seen by checkout.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string) (clientSecret string, err error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	ListLineItems(params *stripe.CheckoutSessionListLineItemsParams) *session.LineItemIter
}

type stripeClients struct {
	intents  stripeIntentAPI
	sessions stripeSessionAPI
}

// StripeGatewayConfig configures the StripeGateway. Backends is only set by tests.
type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	Backends      *stripe.Backends
}

// StripeGateway implements PaymentGateway with a per-instance Stripe client.
type StripeGateway struct {
	api           stripeClients
	webhookSecret string
}

func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	sc := client.New(key, cfg.Backends)
	return &StripeGateway{
		api: stripeClients{
			intents:  sc.PaymentIntents,
			sessions: sc.CheckoutSessions,
		},
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreatePaymentIntent requests an intent for amount minor units.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx

	pi, err := g.api.intents.New(params)
	if err != nil {
		return "", err
	}
	return pi.ClientSecret, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return g.api.sessions.New(params)
}

// ListLineItems returns every line item of the session with price.product expanded.
func (g *StripeGateway) ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(sessionID)}
	params.Context = ctx
	params.AddExpand("data.price.product")

	var items []*stripe.LineItem
	iter := g.api.sessions.ListLineItems(params)
	for iter.Next() {
		items = append(items, iter.LineItem())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ConstructEvent verifies the Stripe-Signature header against the webhook secret.
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
