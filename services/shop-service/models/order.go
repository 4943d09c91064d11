package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderStatusOnTheWay  = "On the way"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusOnTheWay, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// TerminalOrderStatus reports whether an order in status s can no longer change status.
func TerminalOrderStatus(s string) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type Address struct {
	FirstName     string `bson:"firstName" json:"firstName" validate:"required,max=50"`
	LastName      string `bson:"lastName" json:"lastName" validate:"required,max=50"`
	HouseNumber   int    `bson:"houseNumber" json:"houseNumber" validate:"gte=0"`
	StreetAddress string `bson:"streetAddress" json:"streetAddress" validate:"required,max=200"`
	City          string `bson:"city" json:"city" validate:"required"`
	District      string `bson:"district,omitempty" json:"district,omitempty"`
	PostalCode    int    `bson:"postalCode" json:"postalCode" validate:"required,gt=0"`
	State         string `bson:"state" json:"state" validate:"required"`
	PhoneNumber1  string `bson:"phoneNumber1" json:"phoneNumber1" validate:"required,numeric,max=10"`
	PhoneNumber2  string `bson:"phoneNumber2,omitempty" json:"phoneNumber2,omitempty" validate:"omitempty,numeric,max=10"`
}

// Order is one purchased line. A checkout with several items yields several orders.
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User            primitive.ObjectID `bson:"user" json:"user"`
	Product         primitive.ObjectID `bson:"product" json:"product"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	MySelection     map[string]any     `bson:"mySelection" json:"mySelection"`
	DeliveryAddress Address            `bson:"deliveryAddress" json:"deliveryAddress"`
	OrderDate       time.Time          `bson:"orderDate" json:"orderDate"`
	OrderStatus     string             `bson:"orderStatus" json:"orderStatus"`
	TotalAmount     float64            `bson:"totalAmount" json:"totalAmount"`
	DeliveryCharges float64            `bson:"deliveryCharges" json:"deliveryCharges"`
	Tax             float64            `bson:"tax" json:"tax"`
	Discount        float64            `bson:"discount" json:"discount"`
	Reviewed        bool               `bson:"reviewed" json:"reviewed"`
	DeliveredDate   *time.Time         `bson:"deliveredDate" json:"deliveredDate"`
	CancelledDate   *time.Time         `bson:"cancelledDate" json:"cancelledDate"`
}

// OrderView is an order with references expanded. Fields left nil are omitted so the
// same type serves the customer and admin projections.
type OrderView struct {
	ID              primitive.ObjectID `json:"_id"`
	User            *UserSummary       `json:"user,omitempty"`
	Product         *ProductSummary    `json:"product"`
	Quantity        int                `json:"quantity"`
	MySelection     map[string]any     `json:"mySelection,omitempty"`
	DeliveryAddress *Address           `json:"deliveryAddress,omitempty"`
	OrderDate       time.Time          `json:"orderDate"`
	OrderStatus     string             `json:"orderStatus"`
	TotalAmount     float64            `json:"totalAmount"`
	DeliveryCharges float64            `json:"deliveryCharges"`
	Tax             float64            `json:"tax"`
	Discount        float64            `json:"discount"`
	Reviewed        bool               `json:"reviewed"`
	DeliveredDate   *time.Time         `json:"deliveredDate"`
	CancelledDate   *time.Time         `json:"cancelledDate"`
}

// View builds the expanded representation; product falls back to a bare reference.
func (o *Order) View(product *ProductSummary) OrderView {
	if product == nil {
		product = &ProductSummary{ID: o.Product}
	}
	address := o.DeliveryAddress
	return OrderView{
		ID:              o.ID,
		Product:         product,
		Quantity:        o.Quantity,
		MySelection:     o.MySelection,
		DeliveryAddress: &address,
		OrderDate:       o.OrderDate,
		OrderStatus:     o.OrderStatus,
		TotalAmount:     o.TotalAmount,
		DeliveryCharges: o.DeliveryCharges,
		Tax:             o.Tax,
		Discount:        o.Discount,
		Reviewed:        o.Reviewed,
		DeliveredDate:   o.DeliveredDate,
		CancelledDate:   o.CancelledDate,
	}
}
