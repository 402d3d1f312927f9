package orders

import (
	"context"
	"fmt"
)

// Catalog is the read-only menu lookup the writer consults when a caller
// does not supply a unit price hint.
type Catalog interface {
	GetItem(ctx context.Context, id string) (CatalogItem, error)
}

type CatalogItem struct {
	Exists     bool
	Available  bool
	PriceCents int
	Name       string
	ImageURL   string
}

// Store owns durability. CreateOrder must be atomic: order row, item rows
// and the loyalty increment commit together or not at all.
type Store interface {
	CreateOrder(ctx context.Context, o NewOrder) (OrderView, error)
	UpdateStatus(ctx context.Context, orderID string, s Status) (Order, error)
	List(ctx context.Context, scope Scope) ([]OrderView, error)
	Get(ctx context.Context, orderID string) (OrderView, error)
	GetStatus(ctx context.Context, orderID string) (Status, error)
	Stats(ctx context.Context) (StatsSnapshot, error)
}

// Writer validates and prices an incoming request and hands the store one
// atomic write.
type Writer struct {
	Store   Store
	Catalog Catalog
}

// Create builds and persists an order. principalID is the authenticated
// caller, used only as the fallback customer attribution (guests pass "").
func (w *Writer) Create(ctx context.Context, req CreateOrderRequest, principalID string) (OrderView, error) {
	if len(req.Items) == 0 {
		return OrderView{}, fmt.Errorf("%w: order must contain at least one item", ErrInvalidOrder)
	}

	items := make([]NewOrderItem, 0, len(req.Items))
	computed := 0
	for i, ir := range req.Items {
		menuItemID, qty, price := ir.Resolve()
		if menuItemID == "" {
			return OrderView{}, fmt.Errorf("%w: item %d is missing a menu item id", ErrInvalidOrder, i+1)
		}
		if qty < 1 {
			return OrderView{}, fmt.Errorf("%w: item %d has quantity %d", ErrInvalidOrder, i+1, qty)
		}
		if price < 0 {
			return OrderView{}, fmt.Errorf("%w: item %d has negative price", ErrInvalidOrder, i+1)
		}
		if price == 0 {
			// No trusted hint: resolve against the catalog.
			ci, err := w.Catalog.GetItem(ctx, menuItemID)
			if err != nil {
				return OrderView{}, storageErr("resolve price", err)
			}
			if !ci.Exists {
				return OrderView{}, fmt.Errorf("%w: unknown menu item %s", ErrInvalidOrder, menuItemID)
			}
			price = ci.PriceCents
		}
		computed += qty * price
		items = append(items, NewOrderItem{MenuItemID: menuItemID, Quantity: qty, UnitPriceCents: price})
	}

	// A positive declared total wins over the computed one; upstream may
	// have applied a promotion. Otherwise the sum of the lines is the
	// total.
	total := computed
	if req.TotalCents > 0 {
		total = req.TotalCents
	}
	if total <= 0 {
		return OrderView{}, fmt.Errorf("%w: order total must be positive", ErrInvalidOrder)
	}

	payment, err := resolvePayment(req.PaymentStatus)
	if err != nil {
		return OrderView{}, err
	}

	name := req.CustomerName
	if name == "" {
		name = "Guest"
	}

	customerID := req.ResolveCustomer(principalID)
	points := 0
	if customerID != "" {
		points = total / 1000 // floor(total dollars / 10)
	}

	return w.Store.CreateOrder(ctx, NewOrder{
		CustomerID:    customerID,
		CustomerName:  name,
		TotalCents:    total,
		PaymentStatus: payment,
		LoyaltyPoints: points,
		Items:         items,
	})
}

func resolvePayment(s string) (string, error) {
	switch s {
	case "", PaymentPaid:
		return PaymentPaid, nil
	case PaymentUnpaid:
		return PaymentUnpaid, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", ErrInvalidOrder, s)
}
