package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
)

var errDuplicate = mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}

// --- products ---

type fakeProducts struct {
	mu            sync.Mutex
	products      map[primitive.ObjectID]models.Product
	setRatingsErr error
}

func newFakeProducts(products ...models.Product) *fakeProducts {
	f := &fakeProducts{products: map[primitive.ObjectID]models.Product{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	return []bson.M{}, nil
}

func (f *fakeProducts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) Create(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = *p
	return nil
}

func (f *fakeProducts) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Product, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeProducts) Delete(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.products, id)
	return &p, nil
}

func (f *fakeProducts) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.ProductSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]models.ProductSummary{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p.Summary()
		}
	}
	return out, nil
}

func (f *fakeProducts) SetRatings(ctx context.Context, id primitive.ObjectID, stats models.RatingStats) error {
	if f.setRatingsErr != nil {
		return f.setRatingsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.AvgRating = stats.AvgRating
	p.RatingsQuantity = stats.RatingsQuantity
	p.ReviewsQuantity = stats.ReviewsQuantity
	f.products[id] = p
	return nil
}

func (f *fakeProducts) MostPopular(ctx context.Context) ([]models.CategoryHighlight, error) {
	return nil, nil
}

// --- carts ---

type fakeCarts struct {
	mu    sync.Mutex
	carts map[primitive.ObjectID]models.Cart
	saves int
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[primitive.ObjectID]models.Cart{}}
}

func cloneCart(c models.Cart) models.Cart {
	c.Items = append([]models.CartItem{}, c.Items...)
	return c
}

func (f *fakeCarts) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	return []bson.M{}, nil
}

func (f *fakeCarts) FindByUser(ctx context.Context, user primitive.ObjectID) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[user]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c = cloneCart(c)
	return &c, nil
}

func (f *fakeCarts) FindOrCreate(ctx context.Context, user primitive.ObjectID) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[user]
	if !ok {
		c = *models.NewCart(user)
		f.carts[user] = c
	}
	c = cloneCart(c)
	return &c, nil
}

func (f *fakeCarts) Save(ctx context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.carts[cart.User] = cloneCart(*cart)
	return nil
}

func (f *fakeCarts) Clear(ctx context.Context, user primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[user]; ok {
		c.Clear()
		f.carts[user] = c
	}
	return nil
}

func (f *fakeCarts) put(cart *models.Cart) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[cart.User] = cloneCart(*cart)
}

// --- orders ---

type fakeOrders struct {
	mu           sync.Mutex
	orders       []models.Order
	createManyFn func([]models.Order) error
	deleted      []primitive.ObjectID
}

func (f *fakeOrders) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	return []bson.M{}, nil
}

func (f *fakeOrders) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == id {
			o := o
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) FindMine(ctx context.Context, user primitive.ObjectID) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Order{}
	for _, o := range f.orders {
		if o.User == user {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) FindMineByID(ctx context.Context, user, id primitive.ObjectID) (*models.Order, error) {
	o, err := f.FindByID(ctx, id)
	if err != nil || o.User != user {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) Create(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, *order)
	return nil
}

func (f *fakeOrders) CreateMany(ctx context.Context, orders []models.Order) error {
	if f.createManyFn != nil {
		if err := f.createManyFn(orders); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, orders...)
	return nil
}

func (f *fakeOrders) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		o := &f.orders[i]
		if o.ID != id {
			continue
		}
		for k, v := range fields {
			switch k {
			case "orderStatus":
				o.OrderStatus = v.(string)
			case "deliveredDate":
				t := v.(time.Time)
				o.DeliveredDate = &t
			case "cancelledDate":
				t := v.(time.Time)
				o.CancelledDate = &t
			case "quantity":
				o.Quantity = v.(int)
			}
		}
		out := *o
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) Delete(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, o := range f.orders {
		if o.ID == id {
			f.orders = append(f.orders[:i], f.orders[i+1:]...)
			return &o, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) DeleteMany(ctx context.Context, ids []primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	drop := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.orders[:0]
	for _, o := range f.orders {
		if !drop[o.ID] {
			kept = append(kept, o)
		}
	}
	f.orders = kept
	return nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// --- processed events ---

type fakeEvents struct {
	mu          sync.Mutex
	seen        map[string]models.ProcessedEvent
	markDoneErr error
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{seen: map[string]models.ProcessedEvent{}}
}

func (f *fakeEvents) Claim(ctx context.Context, id, eventType string, orders []primitive.ObjectID, staleAfter time.Duration) (*models.ProcessedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	current, ok := f.seen[id]
	if !ok {
		f.seen[id] = models.ProcessedEvent{ID: id, Type: eventType, Status: models.EventStatusPending, OrderIDs: orders, StartedAt: now}
		return nil, nil
	}
	switch {
	case staleAfter <= 0 || current.Done():
		return nil, repository.ErrAlreadyProcessed
	case current.StartedAt.After(now.Add(-staleAfter)):
		return nil, repository.ErrEventInFlight
	}
	previous := current
	current.StartedAt = now
	current.OrderIDs = append(append([]primitive.ObjectID{}, current.OrderIDs...), orders...)
	f.seen[id] = current
	return &previous, nil
}

func (f *fakeEvents) MarkDone(ctx context.Context, id string) error {
	if f.markDoneErr != nil {
		return f.markDoneErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	marker, ok := f.seen[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	marker.Status = models.EventStatusDone
	marker.ProcessedAt = &now
	f.seen[id] = marker
	return nil
}

func (f *fakeEvents) Unmark(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, id)
	return nil
}

func (f *fakeEvents) IsProcessed(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	marker, ok := f.seen[id]
	return ok && marker.Done(), nil
}

// put stores a marker as another process left it.
func (f *fakeEvents) put(marker models.ProcessedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[marker.ID] = marker
}

// --- reviews ---

type fakeReviews struct {
	mu      sync.Mutex
	reviews []models.Review
}

func (f *fakeReviews) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reviews {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReviews) FindByProduct(ctx context.Context, product *primitive.ObjectID) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Review{}
	for _, r := range f.reviews {
		if product == nil || r.Product == *product {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReviews) FindByUser(ctx context.Context, user primitive.ObjectID) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Review{}
	for _, r := range f.reviews {
		if r.User == user {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReviews) FindMineByID(ctx context.Context, user, id primitive.ObjectID) (*models.Review, error) {
	r, err := f.FindByID(ctx, id)
	if err != nil || r.User != user {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeReviews) Create(ctx context.Context, review *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reviews {
		if r.User == review.User && r.Product == review.Product {
			return errDuplicate
		}
	}
	f.reviews = append(f.reviews, *review)
	return nil
}

func (f *fakeReviews) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reviews {
		r := &f.reviews[i]
		if r.ID != id {
			continue
		}
		if v, ok := fields["rating"]; ok {
			r.Rating = v.(float64)
		}
		if v, ok := fields["review"]; ok {
			r.Review = v.(string)
		}
		if v, ok := fields["modified"]; ok {
			r.Modified = v.(bool)
		}
		out := *r
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReviews) Delete(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.reviews {
		if r.ID == id {
			f.reviews = append(f.reviews[:i], f.reviews[i+1:]...)
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReviews) RatingStats(ctx context.Context, product primitive.ObjectID) (models.RatingStats, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum float64
	var n, written int
	for _, r := range f.reviews {
		if r.Product != product {
			continue
		}
		n++
		sum += r.Rating
		if len([]rune(r.Review)) > models.MinReviewBodyLength {
			written++
		}
	}
	if n == 0 {
		return models.DefaultRatingStats(), false, nil
	}
	return models.RatingStats{
		AvgRating:       math.Round(sum/float64(n)*10) / 10,
		RatingsQuantity: n,
		ReviewsQuantity: written,
	}, true, nil
}

// --- users (summaries only) ---

type fakeUserSummaries struct {
	repository.UserRepository
	users map[primitive.ObjectID]models.UserSummary
}

func (f *fakeUserSummaries) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := map[primitive.ObjectID]models.UserSummary{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// --- payment gateway ---

type fakeGateway struct {
	mu             sync.Mutex
	secret         string
	intentAmounts  []int64
	sessionParams  []*stripe.CheckoutSessionParams
	lineItems      map[string][]*stripe.LineItem
	listLineErr    error
	createSessions int
}

func newFakeGateway(secret string) *fakeGateway {
	return &fakeGateway{secret: secret, lineItems: map[string][]*stripe.LineItem{}}
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intentAmounts = append(g.intentAmounts, amount)
	return "pi_secret", nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createSessions++
	g.sessionParams = append(g.sessionParams, params)
	return &stripe.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.test/cs_test"}, nil
}

func (g *fakeGateway) ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	if g.listLineErr != nil {
		return nil, g.listLineErr
	}
	return g.lineItems[sessionID], nil
}

func (g *fakeGateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signature, g.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// --- event publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

// --- helpers ---

func lineItem(product primitive.ObjectID, selection map[string]any, quantity, amountTotal int64) *stripe.LineItem {
	sel, _ := json.Marshal(selection)
	return &stripe.LineItem{
		Quantity:    quantity,
		AmountTotal: amountTotal,
		Price: &stripe.Price{
			Product: &stripe.Product{
				Metadata: map[string]string{
					metaProductID: product.Hex(),
					metaSelection: string(sel),
				},
			},
		},
	}
}

var errBoom = errors.New("boom")
