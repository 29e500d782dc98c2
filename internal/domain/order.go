package domain

import (
	"errors"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

var ErrUnknownOrderStatus = errors.New("unknown order status")

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(s); status {
	case OrderStatusPending, OrderStatusCancelled, OrderStatusExpired, OrderStatusCompleted:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOrderStatus, s)
	}
}

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Order is a persisted checkout attempt. Cart holds the serialized cart as it
// was at submission; Price is the cart total without shipping.
type Order struct {
	Reference   string      `json:"reference"`
	Cart        string      `json:"cart"`
	Status      OrderStatus `json:"status"`
	Customer    Customer    `json:"customer"`
	Destination string      `json:"destination"`
	Price       int64       `json:"price"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CartLines rebuilds the purchased lines from the serialized cart.
func (o *Order) CartLines() ([]CartLine, error) {
	cart, err := DeserializeCart(o.Cart)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.Reference, err)
	}
	return cart.LineList(), nil
}
