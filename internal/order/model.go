package order

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Confirmed reports whether the order has already passed payment
// confirmation (confirmed or any later fulfilment state).
func (s Status) Confirmed() bool {
	switch s {
	case StatusConfirmed, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"order_number"`
	Email         string `json:"email"`
	Status        Status `json:"status"`
	PaymentMethod string `json:"payment_method"`
	// NUMERIC -> string to avoid float rounding
	Total           string         `json:"total"`
	ShippingAddress map[string]any `json:"shipping_address,omitempty"`
	BillingAddress  map[string]any `json:"billing_address,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ConfirmedAt     *time.Time     `json:"confirmed_at,omitempty"`
	ShippedAt       *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
}

type Item struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}
