package orders

import "time"

// Order is one purchase transaction. Everything except Status is
// write-once at creation time.
type Order struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id,omitempty"` // empty for guest orders
	CustomerName  string    `json:"customer_name"`
	TotalCents    int       `json:"total_cents"`
	Status        Status    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
}

// OrderItem keeps the quantity and unit price snapshotted at order time;
// later catalog edits never rewrite them.
type OrderItem struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	MenuItemID     string `json:"menu_item_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

// ItemView decorates a snapshotted line with the catalog's current
// display name and image. Name/image are a live join, price/quantity are
// frozen.
type ItemView struct {
	OrderItem
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// OrderView is the denormalized shape the display surfaces poll.
type OrderView struct {
	Order
	UserName  string     `json:"user_name,omitempty"`
	UserEmail string     `json:"user_email,omitempty"`
	Items     []ItemView `json:"items"`
}

// Scope selects which orders a reader sees. Zero value means all orders.
type Scope struct {
	CustomerID string
}

type PopularItem struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Sold       int    `json:"sold"`
}

type StatsSnapshot struct {
	TotalSalesCents int           `json:"total_sales_cents"`
	OrderCount      int           `json:"order_count"`
	PopularItems    []PopularItem `json:"popular_items"`
}

// NewOrder is the validated input handed to the store. LoyaltyPoints is
// already computed; the store applies it in the same transaction as the
// order and item inserts.
type NewOrder struct {
	CustomerID    string
	CustomerName  string
	TotalCents    int
	PaymentStatus string
	LoyaltyPoints int
	Items         []NewOrderItem
}

type NewOrderItem struct {
	MenuItemID     string
	Quantity       int
	UnitPriceCents int
}

const (
	PaymentPaid   = "Paid"
	PaymentUnpaid = "Unpaid"
)
