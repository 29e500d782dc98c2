package domain

import "time"

type OrderCompletedEvent struct {
	Reference   string      `json:"reference"`
	Status      OrderStatus `json:"status"`
	Customer    Customer    `json:"customer"`
	Destination string      `json:"destination"`
	Lines       []CartLine  `json:"lines"`
	Total       int64       `json:"total"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewOrderCompletedEvent snapshots a completed order for the notification
// pipeline.
func NewOrderCompletedEvent(order *Order, now time.Time) (OrderCompletedEvent, error) {
	lines, err := order.CartLines()
	if err != nil {
		return OrderCompletedEvent{}, err
	}
	return OrderCompletedEvent{
		Reference:   order.Reference,
		Status:      order.Status,
		Customer:    order.Customer,
		Destination: order.Destination,
		Lines:       lines,
		Total:       order.Price,
		Timestamp:   now,
	}, nil
}
