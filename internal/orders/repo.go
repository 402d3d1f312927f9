package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed Store. Transaction isolation of the
// underlying engine is the only coordination primitive: creation is one
// commit-or-rollback transaction, status updates are single-row writes,
// reads are snapshot-consistent and never block writers.
type Repo struct {
	DB *pgxpool.Pool
}

var _ Store = (*Repo)(nil)

// CreateOrder inserts the order row, its item rows and the loyalty
// increment in one transaction. Any failure rolls back every effect; no
// reader ever observes a partial order.
func (r *Repo) CreateOrder(ctx context.Context, o NewOrder) (OrderView, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return OrderView{}, storageErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	view := OrderView{Order: Order{
		ID:            uuid.NewString(),
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		TotalCents:    o.TotalCents,
		Status:        StatusNew,
		PaymentStatus: o.PaymentStatus,
	}}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, customer_name, total_cents, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, view.ID, nullable(o.CustomerID), o.CustomerName, o.TotalCents, StatusNew, o.PaymentStatus).
		Scan(&view.CreatedAt)
	if err != nil {
		return OrderView{}, storageErr("insert order", err)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), view.ID, it.MenuItemID, it.Quantity, it.UnitPriceCents)
		if err != nil {
			return OrderView{}, storageErr("insert item", err)
		}
	}

	if o.CustomerID != "" && o.LoyaltyPoints > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE users SET loyalty_points = loyalty_points + $1 WHERE id = $2
		`, o.LoyaltyPoints, o.CustomerID)
		if err != nil {
			return OrderView{}, storageErr("add loyalty points", err)
		}
	}

	view.Items, err = r.itemViews(ctx, tx, view.ID)
	if err != nil {
		return OrderView{}, err
	}

	if o.CustomerID != "" {
		err = tx.QueryRow(ctx, `SELECT name, email FROM users WHERE id = $1`, o.CustomerID).
			Scan(&view.UserName, &view.UserEmail)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return OrderView{}, storageErr("join user", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return OrderView{}, storageErr("commit", err)
	}
	return view, nil
}

// UpdateStatus overwrites the status field only; every other column is
// untouched. Returns ErrNotFound when the order does not exist.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, s Status) (Order, error) {
	var (
		o   Order
		uid *string
	)
	err := r.DB.QueryRow(ctx, `
		UPDATE orders SET status = $1 WHERE id = $2
		RETURNING id, user_id, customer_name, total_cents, status, payment_status, created_at
	`, s, orderID).
		Scan(&o.ID, &uid, &o.CustomerName, &o.TotalCents, &o.Status, &o.PaymentStatus, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, storageErr("update status", err)
	}
	o.CustomerID = deref(uid)
	return o, nil
}

// List returns denormalized order views, most recent first. An empty
// scope lists every order; a customer scope is bound to one principal.
func (r *Repo) List(ctx context.Context, scope Scope) ([]OrderView, error) {
	q := `
		SELECT o.id, o.user_id, o.customer_name, o.total_cents, o.status, o.payment_status, o.created_at,
		       COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
	`
	args := []any{}
	if scope.CustomerID != "" {
		q += ` WHERE o.user_id = $1`
		args = append(args, scope.CustomerID)
	}
	q += ` ORDER BY o.created_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	defer rows.Close()

	views := []OrderView{}
	index := map[string]int{}
	ids := []string{}
	for rows.Next() {
		var (
			v   OrderView
			uid *string
		)
		if err := rows.Scan(&v.ID, &uid, &v.CustomerName, &v.TotalCents, &v.Status, &v.PaymentStatus,
			&v.CreatedAt, &v.UserName, &v.UserEmail); err != nil {
			return nil, storageErr("scan order", err)
		}
		v.CustomerID = deref(uid)
		v.Items = []ItemView{}
		index[v.ID] = len(views)
		views = append(views, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list orders", err)
	}
	if len(views) == 0 {
		return views, nil
	}

	irows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.menu_item_id, oi.quantity, oi.unit_price_cents,
		       COALESCE(mi.name, ''), COALESCE(mi.image_url, '')
		FROM order_items oi
		LEFT JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE oi.order_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, storageErr("list items", err)
	}
	defer irows.Close()

	for irows.Next() {
		var iv ItemView
		if err := irows.Scan(&iv.ID, &iv.OrderID, &iv.MenuItemID, &iv.Quantity, &iv.UnitPriceCents,
			&iv.Name, &iv.ImageURL); err != nil {
			return nil, storageErr("scan item", err)
		}
		i := index[iv.OrderID]
		views[i].Items = append(views[i].Items, iv)
	}
	if err := irows.Err(); err != nil {
		return nil, storageErr("list items", err)
	}
	return views, nil
}

func (r *Repo) Get(ctx context.Context, orderID string) (OrderView, error) {
	var (
		v   OrderView
		uid *string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT o.id, o.user_id, o.customer_name, o.total_cents, o.status, o.payment_status, o.created_at,
		       COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`, orderID).
		Scan(&v.ID, &uid, &v.CustomerName, &v.TotalCents, &v.Status, &v.PaymentStatus,
			&v.CreatedAt, &v.UserName, &v.UserEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderView{}, ErrNotFound
	}
	if err != nil {
		return OrderView{}, storageErr("get order", err)
	}
	v.CustomerID = deref(uid)

	v.Items, err = r.itemViews(ctx, r.DB, orderID)
	if err != nil {
		return OrderView{}, err
	}
	return v, nil
}

func (r *Repo) GetStatus(ctx context.Context, orderID string) (Status, error) {
	var s Status
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", storageErr("get status", err)
	}
	return s, nil
}

// Stats aggregates fulfilled orders only: New and In Progress orders are
// not yet revenue.
func (r *Repo) Stats(ctx context.Context) (StatsSnapshot, error) {
	var snap StatsSnapshot
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_cents), 0), COUNT(*)
		FROM orders
		WHERE status IN ($1, $2)
	`, StatusReady, StatusCompleted).Scan(&snap.TotalSalesCents, &snap.OrderCount)
	if err != nil {
		return StatsSnapshot{}, storageErr("stats totals", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.menu_item_id, COALESCE(mi.name, ''), SUM(oi.quantity)::int AS sold
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE o.status IN ($1, $2)
		GROUP BY oi.menu_item_id, mi.name
		ORDER BY sold DESC
		LIMIT 10
	`, StatusReady, StatusCompleted)
	if err != nil {
		return StatsSnapshot{}, storageErr("stats popular items", err)
	}
	defer rows.Close()

	snap.PopularItems = []PopularItem{}
	for rows.Next() {
		var p PopularItem
		if err := rows.Scan(&p.MenuItemID, &p.Name, &p.Sold); err != nil {
			return StatsSnapshot{}, storageErr("scan popular item", err)
		}
		snap.PopularItems = append(snap.PopularItems, p)
	}
	if err := rows.Err(); err != nil {
		return StatsSnapshot{}, storageErr("stats popular items", err)
	}
	return snap, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repo) itemViews(ctx context.Context, q querier, orderID string) ([]ItemView, error) {
	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.menu_item_id, oi.quantity, oi.unit_price_cents,
		       COALESCE(mi.name, ''), COALESCE(mi.image_url, '')
		FROM order_items oi
		LEFT JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE oi.order_id = $1
	`, orderID)
	if err != nil {
		return nil, storageErr("load items", err)
	}
	defer rows.Close()

	items := []ItemView{}
	for rows.Next() {
		var iv ItemView
		if err := rows.Scan(&iv.ID, &iv.OrderID, &iv.MenuItemID, &iv.Quantity, &iv.UnitPriceCents,
			&iv.Name, &iv.ImageURL); err != nil {
			return nil, storageErr("scan item", err)
		}
		items = append(items, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load items", err)
	}
	return items, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
