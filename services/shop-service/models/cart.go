package models

import (
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartAction string

const (
	CartIncrement CartAction = "increment"
	CartDecrement CartAction = "decrement"
	CartRemove    CartAction = "remove"
)

var (
	ErrCartItemNotFound  = errors.New("item not found in cart")
	ErrUnknownCartAction = errors.New("unknown cart action")
	ErrPriceRequired     = errors.New("current product price required")
)

// Valid reports whether a is one of the supported mutations.
func (a CartAction) Valid() bool {
	switch a {
	case CartIncrement, CartDecrement, CartRemove:
		return true
	}
	return false
}

// CartItem keeps the unit price and discount the line was last priced at so the
// cart totals can always be derived from the items alone.
type CartItem struct {
	Product      primitive.ObjectID `bson:"product" json:"productId"`
	Quantity     int                `bson:"quantity" json:"quantity"`
	MySelection  map[string]any     `bson:"mySelection,omitempty" json:"mySelection,omitempty"`
	UnitPrice    float64            `bson:"unitPrice" json:"unitPrice"`
	UnitDiscount float64            `bson:"unitDiscount" json:"unitDiscount"`
}

type Cart struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User          primitive.ObjectID `bson:"user" json:"-"`
	Items         []CartItem         `bson:"items" json:"items"`
	TotalQuantity int                `bson:"totalQuantity" json:"totalQuantity"`
	TotalAmount   float64            `bson:"totalAmount" json:"totalAmount"`
	TotalDiscount float64            `bson:"totalDiscount" json:"totalDiscount"`
	UpdatedAt     time.Time          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// NewCart returns an empty cart owned by user.
func NewCart(user primitive.ObjectID) *Cart {
	return &Cart{
		ID:    primitive.NewObjectID(),
		User:  user,
		Items: []CartItem{},
	}
}

// IndexOf returns the position of the line for product, or -1.
func (c *Cart) IndexOf(product primitive.ObjectID) int {
	for i := range c.Items {
		if c.Items[i].Product == product {
			return i
		}
	}
	return -1
}

// Apply mutates the cart by one action. current carries the catalog price at the time of
// the call and is required for increments only; the line is re-priced to it. On error the
// cart is left untouched.
func (c *Cart) Apply(action CartAction, product primitive.ObjectID, current *ProductSummary, selection map[string]any) error {
	idx := c.IndexOf(product)

	switch action {
	case CartIncrement:
		if current == nil {
			return ErrPriceRequired
		}
		if idx < 0 {
			c.Items = append(c.Items, CartItem{
				Product:      product,
				Quantity:     1,
				MySelection:  selection,
				UnitPrice:    current.Price,
				UnitDiscount: current.DiscountPrice,
			})
			break
		}
		item := &c.Items[idx]
		item.Quantity++
		item.UnitPrice = current.Price
		item.UnitDiscount = current.DiscountPrice

	case CartDecrement:
		if idx < 0 {
			return ErrCartItemNotFound
		}
		c.Items[idx].Quantity--
		if c.Items[idx].Quantity <= 0 {
			c.removeAt(idx)
		}

	case CartRemove:
		if idx < 0 {
			return ErrCartItemNotFound
		}
		c.removeAt(idx)

	default:
		return ErrUnknownCartAction
	}

	c.Recalculate()
	return nil
}

// Clear empties the cart after a completed purchase.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.Recalculate()
}

// Recalculate derives the three aggregates from the current items.
func (c *Cart) Recalculate() {
	var qty int
	var amount, discount float64
	for _, item := range c.Items {
		qty += item.Quantity
		amount += item.UnitPrice * float64(item.Quantity)
		discount += item.UnitDiscount * float64(item.Quantity)
	}
	c.TotalQuantity = qty
	c.TotalAmount = roundCents(amount)
	c.TotalDiscount = roundCents(discount)
}

// IsEmpty reports whether there is nothing to pay for.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0 || c.TotalAmount <= 0
}

func (c *Cart) removeAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// CartItemView is a cart line with its product resolved.
type CartItemView struct {
	Product      *ProductSummary `json:"product"`
	Quantity     int             `json:"quantity"`
	MySelection  map[string]any  `json:"mySelection,omitempty"`
	UnitPrice    float64         `json:"unitPrice"`
	UnitDiscount float64         `json:"unitDiscount"`
}

type CartView struct {
	ID            primitive.ObjectID `json:"_id"`
	Items         []CartItemView     `json:"items"`
	TotalQuantity int                `json:"totalQuantity"`
	TotalAmount   float64            `json:"totalAmount"`
	TotalDiscount float64            `json:"totalDiscount"`
}

// View resolves product references from products. Lines whose product no longer exists
// keep a bare reference.
func (c *Cart) View(products map[primitive.ObjectID]ProductSummary) CartView {
	view := CartView{
		ID:            c.ID,
		Items:         make([]CartItemView, 0, len(c.Items)),
		TotalQuantity: c.TotalQuantity,
		TotalAmount:   c.TotalAmount,
		TotalDiscount: c.TotalDiscount,
	}
	for _, item := range c.Items {
		summary, ok := products[item.Product]
		if !ok {
			summary = ProductSummary{ID: item.Product}
		}
		view.Items = append(view.Items, CartItemView{
			Product:      &summary,
			Quantity:     item.Quantity,
			MySelection:  item.MySelection,
			UnitPrice:    item.UnitPrice,
			UnitDiscount: item.UnitDiscount,
		})
	}
	return view
}

// ProductIDs lists the distinct products referenced by the cart.
func (c *Cart) ProductIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.Product)
	}
	return ids
}
