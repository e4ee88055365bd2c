package order

// CheckoutItem is one cart line in a checkout request.
// swagger:model CheckoutItem
type CheckoutItem struct {
	ProductID string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity"   example:"2"`
}

// CheckoutRequest creates a pending order from the cart.
// swagger:model CheckoutRequest
type CheckoutRequest struct {
	Email           string         `json:"email" example:"jan@example.com"`
	NameFirst       string         `json:"name_first" example:"Jan"`
	PaymentMethod   string         `json:"payment_method" example:"payfast"`
	Items           []CheckoutItem `json:"items"`
	ShippingAddress map[string]any `json:"shipping_address,omitempty"`
	BillingAddress  map[string]any `json:"billing_address,omitempty"`
}

// View is an order plus its items, as returned to the storefront.
// swagger:model OrderView
type View struct {
	Order *Order `json:"order"`
	Items []Item `json:"items"`
}
