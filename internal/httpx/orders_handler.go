package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/auth"
	kafkax "github.com/Arthur67-cmd/bita-tgethr-cafe/internal/kafka"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/logging"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/orders"
	"github.com/Arthur67-cmd/bita-tgethr-cafe/internal/redisx"
)

// OrdersHandler exposes the order pipeline. Producer and Redis are
// optional; without them creation and transitions still work, only the
// event feed and the status poll cache are skipped.
type OrdersHandler struct {
	Writer   *orders.Writer
	Machine  *orders.Machine
	Store    orders.Store
	Producer *kafkax.Producer
	Redis    *redis.Client
	Service  string

	log *slog.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	h.log = logging.New("orders")
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/orders/{id}/status", h.getOrderStatus)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleCustomer, auth.RoleStaff, auth.RoleOwner))
		r.Get("/api/orders", h.listOrders)
		r.Get("/api/orders/{id}", h.getOrder)
	})
	r.With(auth.RequireRole(auth.RoleStaff, auth.RoleOwner)).
		Patch("/api/orders/{id}/status", h.updateOrderStatus)
	r.With(auth.RequireRole(auth.RoleOwner)).
		Get("/api/stats", h.getStats)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	principalID := ""
	if p, ok := auth.FromContext(r.Context()); ok {
		principalID = p.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	view, err := h.Writer.Create(ctx, req, principalID)
	if err != nil {
		h.log.Warn("create order failed", "err", err)
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, view.ID, view.Status)
	h.publish(r, orders.TopicOrderCreated, orders.EventOrderCreated, view.ID,
		orders.OrderCreatedPayload{
			OrderID:    view.ID,
			CustomerID: view.CustomerID,
			TotalCents: view.TotalCents,
			Items:      itemLines(view.Items),
		})

	h.log.Info("order created", "order_id", view.ID, "total_cents", view.TotalCents)
	writeJSON(w, http.StatusCreated, view)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	// Customers only ever see their own orders; staff and owner see all.
	scope := orders.Scope{}
	if p.Role == auth.RoleCustomer {
		scope.CustomerID = p.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	views, err := h.Store.List(ctx, scope)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	view, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if p.Role == auth.RoleCustomer && view.CustomerID != p.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// getOrderStatus is the lightweight tracker poll: redis first, store on a
// cache miss.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	status, err := h.Store.GetStatus(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, orderID, status)
	writeJSON(w, http.StatusOK, map[string]orders.Status{"status": status})
}

func (h *OrdersHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	p, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Machine.Transition(ctx, chi.URLParam(r, "id"), req.Status, p.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, order.ID, order.Status)
	h.publish(r, orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, order.ID,
		orders.OrderStatusChangedPayload{OrderID: order.ID, Status: order.Status})

	h.log.Info("order status updated", "order_id", order.ID, "status", order.Status)
	writeJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) getStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap, err := h.Store.Stats(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, s orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	b, _ := json.Marshal(map[string]orders.Status{"status": s})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publish(r *http.Request, topic, eventType, orderID string, payload any) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
	}
	ev.Payload = kafkax.MustMarshal(payload)
	h.Producer.Publish(topic, orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func itemLines(items []orders.ItemView) []orders.ItemLine {
	out := make([]orders.ItemLine, 0, len(items))
	for _, it := range items {
		out = append(out, orders.ItemLine{
			MenuItemID:     it.MenuItemID,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return out
}
