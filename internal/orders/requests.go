package orders

// CreateOrderRequest is the wire shape for order creation. Clients name
// the same concepts differently, so every aliased field is normalized
// here and nowhere else. Resolution order, first non-empty wins:
//
//	item catalog ref: menu_item_id, product_id, id
//	item quantity:    quantity, qty (default 1)
//	unit price hint:  price_cents, unit_price_cents (0 = resolve via catalog)
//	customer:         customer_id, cashier_id, then the authenticated principal
type CreateOrderRequest struct {
	CustomerName  string        `json:"customer_name"`
	CustomerID    string        `json:"customer_id"`
	CashierID     string        `json:"cashier_id"`
	TotalCents    int           `json:"total_cents"`
	PaymentStatus string        `json:"payment_status"`
	Items         []ItemRequest `json:"items"`
}

type ItemRequest struct {
	MenuItemID     string `json:"menu_item_id"`
	ProductID      string `json:"product_id"`
	ID             string `json:"id"`
	Quantity       int    `json:"quantity"`
	Qty            int    `json:"qty"`
	PriceCents     int    `json:"price_cents"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

// Resolve collapses the aliases into canonical fields.
func (ir ItemRequest) Resolve() (menuItemID string, quantity, priceCents int) {
	menuItemID = firstNonEmpty(ir.MenuItemID, ir.ProductID, ir.ID)

	quantity = ir.Quantity
	if quantity == 0 {
		quantity = ir.Qty
	}
	if quantity == 0 {
		quantity = 1
	}

	priceCents = ir.PriceCents
	if priceCents == 0 {
		priceCents = ir.UnitPriceCents
	}
	return menuItemID, quantity, priceCents
}

// ResolveCustomer picks the customer principal the order (and any loyalty
// accrual) is attributed to.
func (r CreateOrderRequest) ResolveCustomer(principalID string) string {
	return firstNonEmpty(r.CustomerID, r.CashierID, principalID)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
