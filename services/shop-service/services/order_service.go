package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/query"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/repository"
)

type CreateOrderRequest struct {
	User            string         `json:"user" validate:"required,mongodb"`
	Product         string         `json:"product" validate:"required,mongodb"`
	Quantity        int            `json:"quantity" validate:"required,min=1"`
	MySelection     map[string]any `json:"mySelection"`
	DeliveryAddress models.Address `json:"deliveryAddress" validate:"required"`
	OrderStatus     string         `json:"orderStatus"`
	TotalAmount     float64        `json:"totalAmount" validate:"gte=0"`
	DeliveryCharges float64        `json:"deliveryCharges" validate:"gte=0"`
	Tax             float64        `json:"tax" validate:"gte=0"`
	Discount        float64        `json:"discount" validate:"gte=0"`
}

type UpdateOrderRequest struct {
	OrderStatus     *string         `json:"orderStatus"`
	Quantity        *int            `json:"quantity" validate:"omitempty,min=1"`
	DeliveryAddress *models.Address `json:"deliveryAddress"`
	TotalAmount     *float64        `json:"totalAmount" validate:"omitempty,gte=0"`
	DeliveryCharges *float64        `json:"deliveryCharges" validate:"omitempty,gte=0"`
	Tax             *float64        `json:"tax" validate:"omitempty,gte=0"`
	Discount        *float64        `json:"discount" validate:"omitempty,gte=0"`
	Reviewed        *bool           `json:"reviewed"`
}

type OrderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	users    repository.UserRepository
	log      *zap.Logger
	clock    func() time.Time
}

func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository, users repository.UserRepository, log *zap.Logger) *OrderService {
	if log == nil {
		log = zap.L()
	}
	return &OrderService{
		orders:   orders,
		products: products,
		users:    users,
		log:      log,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// ListMine returns the user's orders without owner, address or selection.
func (s *OrderService) ListMine(ctx context.Context, user primitive.ObjectID) ([]models.OrderView, error) {
	orders, err := s.orders.FindMine(ctx, user)
	if err != nil {
		return nil, storeError(err, "")
	}
	views, err := s.expand(ctx, orders, false)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i].DeliveryAddress = nil
		views[i].MySelection = nil
	}
	return views, nil
}

// GetMine returns one of the user's orders. Orders of other users are not found.
func (s *OrderService) GetMine(ctx context.Context, user, id primitive.ObjectID) (*models.OrderView, error) {
	order, err := s.orders.FindMineByID(ctx, user, id)
	if err != nil {
		return nil, storeError(err, "No order found with that ID")
	}
	views, err := s.expand(ctx, []models.Order{*order}, false)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *OrderService) List(ctx context.Context, spec query.Spec) ([]bson.M, error) {
	orders, err := s.orders.List(ctx, spec)
	if err != nil {
		return nil, storeError(err, "")
	}
	return orders, nil
}

// Get returns any order with product and user expanded.
func (s *OrderService) Get(ctx context.Context, id primitive.ObjectID) (*models.OrderView, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "No order found with that ID")
	}
	views, err := s.expand(ctx, []models.Order{*order}, true)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	user, err := primitive.ObjectIDFromHex(req.User)
	if err != nil {
		return nil, apperrors.Validation("Invalid user id", err)
	}
	product, err := primitive.ObjectIDFromHex(req.Product)
	if err != nil {
		return nil, apperrors.Validation("Invalid product id", err)
	}

	status := req.OrderStatus
	if status == "" {
		status = models.OrderStatusOnTheWay
	}
	if !models.ValidOrderStatus(status) {
		return nil, apperrors.Validation(fmt.Sprintf("Invalid order status %q", status), nil)
	}

	now := s.clock()
	order := &models.Order{
		ID:              primitive.NewObjectID(),
		User:            user,
		Product:         product,
		Quantity:        req.Quantity,
		MySelection:     req.MySelection,
		DeliveryAddress: req.DeliveryAddress,
		OrderDate:       now,
		OrderStatus:     status,
		TotalAmount:     req.TotalAmount,
		DeliveryCharges: req.DeliveryCharges,
		Tax:             req.Tax,
		Discount:        req.Discount,
	}
	stampStatus(order, status, now)

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, storeError(err, "")
	}
	return order, nil
}

// Update applies an administrative change. Moving into delivered or cancelled stamps the
// matching date; a delivered or cancelled order keeps its status.
func (s *OrderService) Update(ctx context.Context, id primitive.ObjectID, req UpdateOrderRequest) (*models.Order, error) {
	current, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "No order found with that ID")
	}

	set := bson.M{}
	if req.OrderStatus != nil && *req.OrderStatus != current.OrderStatus {
		next := *req.OrderStatus
		if !models.ValidOrderStatus(next) {
			return nil, apperrors.Validation(fmt.Sprintf("Invalid order status %q", next), nil)
		}
		if models.TerminalOrderStatus(current.OrderStatus) {
			return nil, apperrors.Validation(fmt.Sprintf("Order is already %s", current.OrderStatus), nil)
		}
		set["orderStatus"] = next
		now := s.clock()
		switch next {
		case models.OrderStatusDelivered:
			set["deliveredDate"] = now
		case models.OrderStatusCancelled:
			set["cancelledDate"] = now
		}
	}
	if req.Quantity != nil {
		set["quantity"] = *req.Quantity
	}
	if req.DeliveryAddress != nil {
		set["deliveryAddress"] = *req.DeliveryAddress
	}
	if req.TotalAmount != nil {
		set["totalAmount"] = *req.TotalAmount
	}
	if req.DeliveryCharges != nil {
		set["deliveryCharges"] = *req.DeliveryCharges
	}
	if req.Tax != nil {
		set["tax"] = *req.Tax
	}
	if req.Discount != nil {
		set["discount"] = *req.Discount
	}
	if req.Reviewed != nil {
		set["reviewed"] = *req.Reviewed
	}
	if len(set) == 0 {
		return current, nil
	}

	updated, err := s.orders.Update(ctx, id, set)
	if err != nil {
		return nil, storeError(err, "No order found with that ID")
	}
	if status, ok := set["orderStatus"]; ok {
		s.log.Info("Order status changed",
			zap.String("order_id", id.Hex()),
			zap.String("from", current.OrderStatus),
			zap.Any("to", status),
		)
	}
	return updated, nil
}

func (s *OrderService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.orders.Delete(ctx, id); err != nil {
		return storeError(err, "No order found with that ID")
	}
	return nil
}

// expand resolves products (brand image title price) and, for admins, the buyer.
func (s *OrderService) expand(ctx context.Context, orders []models.Order, withUser bool) ([]models.OrderView, error) {
	productIDs := make([]primitive.ObjectID, 0, len(orders))
	userIDs := make([]primitive.ObjectID, 0, len(orders))
	for _, o := range orders {
		productIDs = append(productIDs, o.Product)
		userIDs = append(userIDs, o.User)
	}

	products, err := s.products.Summaries(ctx, productIDs)
	if err != nil {
		return nil, storeError(err, "")
	}
	var users map[primitive.ObjectID]models.UserSummary
	if withUser {
		if users, err = s.users.Summaries(ctx, userIDs); err != nil {
			return nil, storeError(err, "")
		}
	}

	views := make([]models.OrderView, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		var product *models.ProductSummary
		if p, ok := products[o.Product]; ok {
			product = &models.ProductSummary{ID: p.ID, Brand: p.Brand, Image: p.Image, Title: p.Title, Price: p.Price}
		}
		view := o.View(product)
		if withUser {
			if u, ok := users[o.User]; ok {
				view.User = &u
			} else {
				view.User = &models.UserSummary{ID: o.User}
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func stampStatus(order *models.Order, status string, now time.Time) {
	switch status {
	case models.OrderStatusDelivered:
		order.DeliveredDate = &now
	case models.OrderStatusCancelled:
		order.CancelledDate = &now
	}
}
