package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/shopnow-backend/pkg/aws"
	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
)

const (
	metaProductID   = "productId"
	metaSelection   = "mySelection"
	metaAddress     = "address"
	publishTimeout  = 5 * time.Second
	compensateAfter = 10 * time.Second

	defaultPendingTimeout = 10 * time.Minute
)

// CheckoutConfig holds the provider-facing settings of checkout.
type CheckoutConfig struct {
	Currency      string
	SuccessURL    string
	CancelURL     string
	PublicBaseURL string
	// PendingTimeout is how long a half-applied event is left alone before a
	// redelivery takes it over. Only used without transactions.
	PendingTimeout time.Duration
}

// CheckoutDeps are the collaborators of CheckoutService.
type CheckoutDeps struct {
	Carts      repository.CartRepository
	Products   repository.ProductRepository
	Orders     repository.OrderRepository
	Events     repository.EventRepository
	Transactor repository.Transactor
	Locker     Locker
	Gateway    PaymentGateway
	Publisher  EventPublisher
	Metrics    awspkg.MetricsRecorder
	Logger     *zap.Logger
}

// CheckoutService turns carts into provider payments and completed payments into orders.
type CheckoutService struct {
	CheckoutDeps
	cfg   CheckoutConfig
	clock func() time.Time
}

func NewCheckoutService(deps CheckoutDeps, cfg CheckoutConfig) *CheckoutService {
	if deps.Logger == nil {
		deps.Logger = zap.L()
	}
	if deps.Publisher == nil {
		deps.Publisher = NoopPublisher{}
	}
	if deps.Transactor == nil {
		deps.Transactor = repository.NoopTransactor{}
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = defaultPendingTimeout
	}
	return &CheckoutService{
		CheckoutDeps: deps,
		cfg:          cfg,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// CreatePaymentIntent charges the cart total and returns the client secret.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, user primitive.ObjectID) (string, error) {
	cart, err := s.Carts.FindByUser(ctx, user)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperrors.EmptyCart("Your cart is empty")
	}
	if err != nil {
		return "", storeError(err, "No cart found for this user")
	}
	if cart.TotalAmount <= 0 {
		return "", apperrors.EmptyCart("Your cart is empty")
	}

	secret, err := s.Gateway.CreatePaymentIntent(ctx, toMinorUnits(cart.TotalAmount), s.cfg.Currency)
	if err != nil {
		return "", apperrors.Upstream("Payment provider request failed", err)
	}
	return secret, nil
}

// CreateCheckoutSession builds a hosted checkout page from the user's cart and returns
// its URL.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, user primitive.ObjectID, address models.Address) (string, error) {
	cart, err := s.Carts.FindByUser(ctx, user)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperrors.EmptyCart("Your cart is empty")
	}
	if err != nil {
		return "", storeError(err, "No cart found for this user")
	}
	if cart.IsEmpty() {
		return "", apperrors.EmptyCart("Your cart is empty")
	}

	products, err := s.Products.Summaries(ctx, cart.ProductIDs())
	if err != nil {
		return "", storeError(err, "No product found")
	}

	addressJSON, err := json.Marshal(address)
	if err != nil {
		return "", apperrors.Internal("Failed to encode delivery address", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(user.Hex()),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		Metadata:          map[string]string{metaAddress: string(addressJSON)},
	}
	for _, item := range cart.Items {
		product, ok := products[item.Product]
		if !ok {
			return "", apperrors.NotFound("A product in your cart is no longer available")
		}
		line, err := s.lineItem(item, product)
		if err != nil {
			return "", err
		}
		params.LineItems = append(params.LineItems, line)
	}
	params.SetIdempotencyKey(uuid.NewString())

	sess, err := s.Gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", apperrors.Upstream("Payment provider request failed", err)
	}

	s.recordCount(ctx, awspkg.MetricCartCheckouts)
	s.Logger.Info("Checkout session created",
		zap.String("user_id", user.Hex()),
		zap.String("session_id", sess.ID),
		zap.Int("line_items", len(params.LineItems)),
	)
	return sess.URL, nil
}

func (s *CheckoutService) lineItem(item models.CartItem, product models.ProductSummary) (*stripe.CheckoutSessionLineItemParams, error) {
	selection, err := json.Marshal(item.MySelection)
	if err != nil {
		return nil, apperrors.Validation("Invalid product selection", err)
	}

	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(product.Title),
		Metadata: map[string]string{
			metaProductID: item.Product.Hex(),
			metaSelection: string(selection),
		},
	}
	if product.Image != "" {
		productData.Images = []*string{stripe.String(productImageURL(s.cfg.PublicBaseURL, product.Image))}
	}

	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(int64(item.Quantity)),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripe.String(s.cfg.Currency),
			UnitAmount:  stripe.Int64(toMinorUnits(item.UnitPrice)),
			ProductData: productData,
		},
	}, nil
}

// HandleWebhook verifies and applies one provider event. Only completed checkout sessions
// change state; every other verified event is acknowledged.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.Gateway.ConstructEvent(payload, signature)
	if err != nil {
		s.recordCount(ctx, awspkg.MetricWebhookRejected)
		s.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		return apperrors.InvalidSignature(err)
	}

	s.Logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		s.Logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
		return nil
	}
	return s.checkoutCompleted(ctx, event)
}

func (s *CheckoutService) checkoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return apperrors.Validation("Malformed checkout session payload", err)
	}

	processed, err := s.Events.IsProcessed(ctx, event.ID)
	if err != nil {
		return storeError(err, "")
	}
	if processed {
		s.duplicate(ctx, event.ID)
		return nil
	}

	user, orders, err := s.buildOrders(ctx, &sess)
	if err != nil {
		return err
	}

	unlock, err := s.Locker.Lock(ctx, CartLockKey(user))
	if err != nil {
		return apperrors.Upstream("Cart is busy, try again", err)
	}
	defer unlock()

	ids := orderIDs(orders)
	staleAfter := s.cfg.PendingTimeout
	if s.Transactor.Atomic() {
		// a rolled back unit leaves no marker behind
		staleAfter = 0
	}

	err = s.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		previous, err := s.Events.Claim(ctx, event.ID, string(event.Type), ids, staleAfter)
		if err != nil {
			return err
		}
		if previous != nil {
			s.Logger.Warn("Taking over abandoned checkout event",
				zap.String("event_id", event.ID),
				zap.Time("started_at", previous.StartedAt),
				zap.Int("stale_orders", len(previous.OrderIDs)),
			)
			if err := s.Orders.DeleteMany(ctx, previous.OrderIDs); err != nil {
				return err
			}
		}
		if err := s.Orders.CreateMany(ctx, orders); err != nil {
			if !s.Transactor.Atomic() {
				s.compensate(event.ID, ids)
			}
			return err
		}
		if err := s.Carts.Clear(ctx, user); err != nil {
			if s.Transactor.Atomic() {
				return err
			}
			// the orders stand even if the cart could not be emptied
			s.Logger.Error("Failed to clear cart after checkout", zap.String("user_id", user.Hex()), zap.Error(err))
		}
		if err := s.Events.MarkDone(ctx, event.ID); err != nil {
			if !s.Transactor.Atomic() {
				s.compensate(event.ID, ids)
			}
			return err
		}
		return nil
	})
	if errors.Is(err, repository.ErrAlreadyProcessed) {
		s.duplicate(ctx, event.ID)
		return nil
	}
	if errors.Is(err, repository.ErrEventInFlight) {
		return apperrors.Conflict("Checkout event is still being processed", err)
	}
	if err != nil {
		return storeError(err, "")
	}

	s.ordersCreated(ctx, event.ID, sess.ID, user, orders)
	return nil
}

// buildOrders turns every line item of the session into an order. Any malformed line
// fails the whole batch.
func (s *CheckoutService) buildOrders(ctx context.Context, sess *stripe.CheckoutSession) (primitive.ObjectID, []models.Order, error) {
	user, err := primitive.ObjectIDFromHex(sess.ClientReferenceID)
	if err != nil {
		return user, nil, apperrors.Validation("Checkout session has no valid client reference", err)
	}

	var address models.Address
	if err := json.Unmarshal([]byte(sess.Metadata[metaAddress]), &address); err != nil {
		return user, nil, apperrors.Validation("Checkout session has no valid delivery address", err)
	}

	items, err := s.Gateway.ListLineItems(ctx, sess.ID)
	if err != nil {
		return user, nil, apperrors.Upstream("Failed to list checkout line items", err)
	}
	if len(items) == 0 {
		return user, nil, apperrors.Validation("Checkout session has no line items", nil)
	}

	now := s.clock()
	orders := make([]models.Order, 0, len(items))
	for i, li := range items {
		if li == nil || li.Price == nil || li.Price.Product == nil {
			return user, nil, apperrors.Validation(fmt.Sprintf("Line item %d has no product", i), nil)
		}
		meta := li.Price.Product.Metadata

		product, err := primitive.ObjectIDFromHex(meta[metaProductID])
		if err != nil {
			return user, nil, apperrors.Validation(fmt.Sprintf("Line item %d has an invalid product id", i), err)
		}

		var selection map[string]any
		if raw := strings.TrimSpace(meta[metaSelection]); raw != "" {
			if err := json.Unmarshal([]byte(raw), &selection); err != nil {
				return user, nil, apperrors.Validation(fmt.Sprintf("Line item %d has an invalid selection", i), err)
			}
		}
		if selection == nil {
			// absent, empty or "null"
			selection = map[string]any{}
		}

		orders = append(orders, models.Order{
			ID:              primitive.NewObjectID(),
			User:            user,
			Product:         product,
			Quantity:        int(li.Quantity),
			MySelection:     selection,
			DeliveryAddress: address,
			OrderDate:       now,
			OrderStatus:     models.OrderStatusOnTheWay,
			TotalAmount:     float64(li.AmountTotal) / 100,
		})
	}
	return user, orders, nil
}

// compensate undoes a failed batch outside any transaction so the event can be retried.
// If the marker cannot be released it stays pending and a later redelivery takes it
// over once PendingTimeout has passed.
func (s *CheckoutService) compensate(eventID string, ids []primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), compensateAfter)
	defer cancel()

	if err := s.Orders.DeleteMany(ctx, ids); err != nil {
		s.Logger.Error("Failed to remove partial order batch", zap.String("event_id", eventID), zap.Error(err))
	}
	if err := s.Events.Unmark(ctx, eventID); err != nil {
		s.Logger.Error("Failed to release processed event marker", zap.String("event_id", eventID), zap.Error(err))
	}
}

func orderIDs(orders []models.Order) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	return ids
}

func (s *CheckoutService) ordersCreated(ctx context.Context, eventID, sessionID string, user primitive.ObjectID, orders []models.Order) {
	evt := models.OrderCreatedEvent{
		EventID:     eventID,
		CheckoutRef: sessionID,
		UserID:      user.Hex(),
		OrderIDs:    make([]string, 0, len(orders)),
		CreatedAt:   s.clock(),
	}
	for _, o := range orders {
		evt.OrderIDs = append(evt.OrderIDs, o.ID.Hex())
		evt.TotalAmount += o.TotalAmount
	}
	evt.TotalAmount = math.Round(evt.TotalAmount*100) / 100

	s.Logger.Info("Orders created from checkout",
		zap.String("event_id", eventID),
		zap.String("user_id", user.Hex()),
		zap.Int("orders", len(orders)),
		zap.Float64("total_amount", evt.TotalAmount),
	)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Publisher.Publish(pubCtx, EventOrderCreated, evt.UserID, evt); err != nil {
		s.Logger.Error("Failed to publish order.created", zap.String("event_id", eventID), zap.Error(err))
	}

	if s.Metrics != nil && s.Metrics.IsEnabled() {
		_ = s.Metrics.RecordValue(pubCtx, awspkg.MetricOrdersCreated, float64(len(orders)), nil)
		_ = s.Metrics.RecordValue(pubCtx, awspkg.MetricOrderValue, evt.TotalAmount, nil)
	}
}

func (s *CheckoutService) duplicate(ctx context.Context, eventID string) {
	s.recordCount(ctx, awspkg.MetricWebhookDuplicates)
	s.Logger.Info("Skipping duplicate checkout webhook", zap.String("event_id", eventID))
}

func (s *CheckoutService) recordCount(ctx context.Context, metric string) {
	if s.Metrics == nil || !s.Metrics.IsEnabled() {
		return
	}
	if err := s.Metrics.RecordCount(ctx, metric, nil); err != nil {
		s.Logger.Warn("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func productImageURL(base, image string) string {
	return strings.TrimRight(base, "/") + "/img/products/" + image
}
