package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/auth"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/orders"
)

// memStore is an in-memory orders.Store for endpoint tests.
type memStore struct {
	mu    sync.Mutex
	seq   int
	views []orders.OrderView
	names map[string]string
}

func newMemStore() *memStore {
	return &memStore{names: map[string]string{}}
}

func (s *memStore) CreateOrder(ctx context.Context, o orders.NewOrder) (orders.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	v := orders.OrderView{Order: orders.Order{
		ID:            fmt.Sprintf("o%d", s.seq),
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		TotalCents:    o.TotalCents,
		Status:        orders.StatusNew,
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     time.Now().Add(time.Duration(s.seq) * time.Millisecond),
	}}
	for _, it := range o.Items {
		v.Items = append(v.Items, orders.ItemView{
			OrderItem: orders.OrderItem{
				ID:             fmt.Sprintf("o%d-%s", s.seq, it.MenuItemID),
				OrderID:        v.ID,
				MenuItemID:     it.MenuItemID,
				Quantity:       it.Quantity,
				UnitPriceCents: it.UnitPriceCents,
			},
			Name: s.names[it.MenuItemID],
		})
	}
	s.views = append(s.views, v)
	return v, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, orderID string, st orders.Status) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.views {
		if s.views[i].ID == orderID {
			s.views[i].Status = st
			return s.views[i].Order, nil
		}
	}
	return orders.Order{}, orders.ErrNotFound
}

func (s *memStore) List(ctx context.Context, scope orders.Scope) ([]orders.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.OrderView{}
	for _, v := range s.views {
		if scope.CustomerID != "" && v.CustomerID != scope.CustomerID {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) Get(ctx context.Context, orderID string) (orders.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.views {
		if v.ID == orderID {
			return v, nil
		}
	}
	return orders.OrderView{}, orders.ErrNotFound
}

func (s *memStore) GetStatus(ctx context.Context, orderID string) (orders.Status, error) {
	v, err := s.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	return v.Status, nil
}

func (s *memStore) Stats(ctx context.Context) (orders.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := orders.StatsSnapshot{PopularItems: []orders.PopularItem{}}
	sold := map[string]int{}
	for _, v := range s.views {
		if !v.Status.Fulfilled() {
			continue
		}
		snap.TotalSalesCents += v.TotalCents
		snap.OrderCount++
		for _, it := range v.Items {
			sold[it.MenuItemID] += it.Quantity
		}
	}
	for id, n := range sold {
		snap.PopularItems = append(snap.PopularItems, orders.PopularItem{MenuItemID: id, Name: s.names[id], Sold: n})
	}
	sort.Slice(snap.PopularItems, func(i, j int) bool { return snap.PopularItems[i].Sold > snap.PopularItems[j].Sold })
	if len(snap.PopularItems) > 10 {
		snap.PopularItems = snap.PopularItems[:10]
	}
	return snap, nil
}

type emptyCatalog struct{}

func (emptyCatalog) GetItem(ctx context.Context, id string) (orders.CatalogItem, error) {
	return orders.CatalogItem{}, nil
}

func newTestServer(t *testing.T) (*chi.Mux, *memStore, *auth.Service) {
	t.Helper()
	store := newMemStore()
	svc := &auth.Service{Secret: []byte("test-secret"), TokenTTL: time.Hour}

	r := NewRouter(svc.Middleware)
	h := &OrdersHandler{
		Writer:  &orders.Writer{Store: store, Catalog: emptyCatalog{}},
		Machine: &orders.Machine{Store: store},
		Store:   store,
		Service: "test",
	}
	h.Register(r)
	return r, store, svc
}

func token(t *testing.T, svc *auth.Service, id, role string) string {
	t.Helper()
	tok, err := svc.IssueToken(auth.User{ID: id, Name: id, Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, r http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateOrderEndpoint(t *testing.T) {
	r, store, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/orders", "", `{
		"customer_name": "Walk-in",
		"items": [
			{"menu_item_id": "latte", "quantity": 2, "price_cents": 350},
			{"product_id": "cake", "qty": 1, "price_cents": 400}
		]
	}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var view orders.OrderView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.TotalCents != 1100 {
		t.Fatalf("total = %d, want 1100", view.TotalCents)
	}
	if len(view.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(view.Items))
	}
	if len(store.views) != 1 {
		t.Fatalf("persisted orders = %d, want 1", len(store.views))
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	r, store, _ := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/api/orders", "", `{"items": []}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(store.views) != 0 {
		t.Fatalf("rejected order must persist nothing")
	}
}

func TestTransitionEndpointRoles(t *testing.T) {
	r, store, svc := newTestServer(t)
	_, _ = store.CreateOrder(context.Background(), orders.NewOrder{
		CustomerName: "Guest", TotalCents: 500, PaymentStatus: orders.PaymentPaid,
		Items: []orders.NewOrderItem{{MenuItemID: "latte", Quantity: 1, UnitPriceCents: 500}},
	})

	// Anonymous: 401.
	w := doJSON(t, r, http.MethodPatch, "/api/orders/o1/status", "", `{"status":"Ready"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d, want 401", w.Code)
	}

	// Customer: 403.
	w = doJSON(t, r, http.MethodPatch, "/api/orders/o1/status", token(t, svc, "c1", auth.RoleCustomer), `{"status":"Ready"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("customer: status = %d, want 403", w.Code)
	}

	// Staff: permissive jump New -> Ready succeeds.
	w = doJSON(t, r, http.MethodPatch, "/api/orders/o1/status", token(t, svc, "s1", auth.RoleStaff), `{"status":"Ready"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("staff: status = %d, body = %s", w.Code, w.Body.String())
	}
	if got, _ := store.GetStatus(context.Background(), "o1"); got != orders.StatusReady {
		t.Fatalf("order status = %q, want Ready", got)
	}

	// Unknown status string: 400.
	w = doJSON(t, r, http.MethodPatch, "/api/orders/o1/status", token(t, svc, "s1", auth.RoleStaff), `{"status":"Burnt"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: status = %d, want 400", w.Code)
	}

	// Missing order: 404.
	w = doJSON(t, r, http.MethodPatch, "/api/orders/nope/status", token(t, svc, "s1", auth.RoleStaff), `{"status":"Ready"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing order: status = %d, want 404", w.Code)
	}
}

func TestListOrdersScope(t *testing.T) {
	r, store, svc := newTestServer(t)
	_, _ = store.CreateOrder(context.Background(), orders.NewOrder{
		CustomerID: "c1", CustomerName: "Alice", TotalCents: 500, PaymentStatus: orders.PaymentPaid,
		Items: []orders.NewOrderItem{{MenuItemID: "latte", Quantity: 1, UnitPriceCents: 500}},
	})
	_, _ = store.CreateOrder(context.Background(), orders.NewOrder{
		CustomerID: "c2", CustomerName: "Bob", TotalCents: 700, PaymentStatus: orders.PaymentPaid,
		Items: []orders.NewOrderItem{{MenuItemID: "cake", Quantity: 1, UnitPriceCents: 700}},
	})

	// Customer sees only their own orders.
	w := doJSON(t, r, http.MethodGet, "/api/orders", token(t, svc, "c1", auth.RoleCustomer), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var mine []orders.OrderView
	if err := json.Unmarshal(w.Body.Bytes(), &mine); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(mine) != 1 || mine[0].CustomerID != "c1" {
		t.Fatalf("customer scope returned %+v", mine)
	}

	// Staff sees everything, newest first.
	w = doJSON(t, r, http.MethodGet, "/api/orders", token(t, svc, "s1", auth.RoleStaff), "")
	var all []orders.OrderView
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("staff scope returned %d orders, want 2", len(all))
	}
	if all[0].ID != "o2" {
		t.Fatalf("ordering: first = %s, want o2 (newest first)", all[0].ID)
	}

	// Re-reading without intervening writes returns identical results.
	w2 := doJSON(t, r, http.MethodGet, "/api/orders", token(t, svc, "s1", auth.RoleStaff), "")
	if w.Body.String() != w2.Body.String() {
		t.Fatalf("list is not stable across re-reads")
	}
}

func TestStatsEndpoint(t *testing.T) {
	r, store, svc := newTestServer(t)
	store.names["latte"] = "Latte"
	store.names["cake"] = "Carrot Cake"

	_, _ = store.CreateOrder(context.Background(), orders.NewOrder{
		CustomerName: "Guest", TotalCents: 999, PaymentStatus: orders.PaymentPaid,
		Items: []orders.NewOrderItem{{MenuItemID: "latte", Quantity: 3, UnitPriceCents: 333}},
	})
	_, _ = store.CreateOrder(context.Background(), orders.NewOrder{
		CustomerName: "Guest", TotalCents: 500, PaymentStatus: orders.PaymentPaid,
		Items: []orders.NewOrderItem{{MenuItemID: "cake", Quantity: 1, UnitPriceCents: 500}},
	})
	// Only the first order is fulfilled.
	if _, err := store.UpdateStatus(context.Background(), "o1", orders.StatusReady); err != nil {
		t.Fatalf("seed status: %v", err)
	}

	// Customers may not read stats.
	w := doJSON(t, r, http.MethodGet, "/api/stats", token(t, svc, "c1", auth.RoleCustomer), "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("customer stats: status = %d, want 403", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/stats", token(t, svc, "own", auth.RoleOwner), "")
	if w.Code != http.StatusOK {
		t.Fatalf("owner stats: status = %d", w.Code)
	}
	var snap orders.StatsSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TotalSalesCents != 999 || snap.OrderCount != 1 {
		t.Fatalf("snapshot = %+v; New/In Progress orders must not count", snap)
	}
	if len(snap.PopularItems) != 1 || snap.PopularItems[0].MenuItemID != "latte" || snap.PopularItems[0].Sold != 3 {
		t.Fatalf("popular items = %+v", snap.PopularItems)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	r, store, svc := newTestServer(t)
	_, _ = store.CreateOrder(context.Background(), orders.NewOrder{
		CustomerID: "c1", CustomerName: "Alice", TotalCents: 500, PaymentStatus: orders.PaymentPaid,
		Items: []orders.NewOrderItem{{MenuItemID: "latte", Quantity: 1, UnitPriceCents: 500}},
	})

	w := doJSON(t, r, http.MethodGet, "/api/orders/o1", token(t, svc, "c1", auth.RoleCustomer), "")
	if w.Code != http.StatusOK {
		t.Fatalf("owner customer: status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/orders/o1", token(t, svc, "c2", auth.RoleCustomer), "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("other customer: status = %d, want 403", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/orders/o1", token(t, svc, "s1", auth.RoleStaff), "")
	if w.Code != http.StatusOK {
		t.Fatalf("staff: status = %d", w.Code)
	}
}

func TestOrderStatusPoll(t *testing.T) {
	r, store, _ := newTestServer(t)
	_, _ = store.CreateOrder(context.Background(), orders.NewOrder{
		CustomerName: "Guest", TotalCents: 500, PaymentStatus: orders.PaymentPaid,
		Items: []orders.NewOrderItem{{MenuItemID: "latte", Quantity: 1, UnitPriceCents: 500}},
	})

	w := doJSON(t, r, http.MethodGet, "/api/orders/o1/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]orders.Status
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != orders.StatusNew {
		t.Fatalf("status = %q, want New", body["status"])
	}

	w = doJSON(t, r, http.MethodGet, "/api/orders/nope/status", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing order: status = %d, want 404", w.Code)
	}
}
