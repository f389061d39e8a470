package httpx

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/actor"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/inventory"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/orders"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"time"
)

type OrdersHandler struct {
	Orders  *orders.Service
	Catalog *inventory.Catalog
	Idem    *redisx.Idempotency // nil disables Idempotency-Key handling
	Log     *zap.Logger
}

type PurchaseReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type OrderResp struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customerId"`
	StoreID     string          `json:"storeId"`
	Items       []orders.Item   `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      orders.Status   `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type PurchaseResp struct {
	Order      OrderResp       `json:"order"`
	Product    *inventory.View `json:"product,omitempty"`
	Idempotent bool            `json:"idempotent"`
}

type StatusReq struct {
	Status orders.Status `json:"status"`
}

func toOrderResp(o orders.Order) OrderResp {
	return OrderResp{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		StoreID:     o.StoreID,
		Items:       o.Items(),
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func toOrderList(list []orders.Order) map[string][]OrderResp {
	out := make([]OrderResp, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResp(o))
	}
	return map[string][]OrderResp{"orders": out}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.purchase)
	r.Get("/orders", h.listMine)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/cancel", h.cancel)
	r.Put("/orders/{id}/status", h.updateStatus)
	r.Get("/stores/{storeId}/orders", h.listStore)
	r.Get("/admin/orders", h.listAll)
	r.Put("/admin/orders/{id}/status", h.forceStatus)
}

func (h *OrdersHandler) purchase(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	// quantity boleh kosong, defaultnya 1
	req := PurchaseReq{Quantity: 1}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.ProductID == "" {
		badRequest(w, "productId is required")
		return
	}

	ctx := r.Context()
	key := r.Header.Get(HeaderIdempotencyKey)
	if key != "" && h.Idem != nil {
		prev, claimed, err := h.Idem.Claim(ctx, a.ID, key)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		if !claimed {
			h.replay(w, r, a, prev)
			return
		}
	}

	o, p, err := h.Orders.Purchase(ctx, a, req.ProductID, req.Quantity)
	if err != nil {
		if key != "" && h.Idem != nil {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), a.ID, key); rerr != nil {
				h.Log.Warn("release idempotency key", zap.Error(rerr))
			}
		}
		writeError(w, h.Log, err)
		return
	}
	if key != "" && h.Idem != nil {
		if err := h.Idem.Complete(context.WithoutCancel(ctx), a.ID, key, o.ID); err != nil {
			h.Log.Warn("store idempotency key", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	v := p.View()
	writeJSON(w, http.StatusCreated, PurchaseResp{Order: toOrderResp(o), Product: &v})
}

// replay answers a repeated Idempotency-Key with the order it created first.
func (h *OrdersHandler) replay(w http.ResponseWriter, r *http.Request, a actor.Actor, orderID string) {
	o, err := h.Orders.Get(r.Context(), a, orderID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	resp := PurchaseResp{Order: toOrderResp(o), Idempotent: true}
	if items := o.Items(); len(items) > 0 {
		if p, err := h.Catalog.Get(r.Context(), items[0].ProductID); err == nil {
			v := p.View()
			resp.Product = &v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// listArgs reads ?status= and ?limit=. Without a status only active orders
// are listed.
func listArgs(r *http.Request) (orders.Filter, int, bool) {
	f := orders.Filter(r.URL.Query().Get("status"))
	if f == "" {
		f = orders.FilterActive
	}
	limit, ok := limitArg(r)
	return f, limit, ok
}

// limitArg reads ?limit=. Zero means the service default.
func limitArg(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > orders.MaxListLimit {
		return 0, false
	}
	return n, true
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	f, limit, ok := listArgs(r)
	if !ok {
		badRequest(w, "limit must be between 1 and 500")
		return
	}
	list, err := h.Orders.ListForCustomer(r.Context(), a, f, limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(list))
}

func (h *OrdersHandler) listStore(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	f, limit, ok := listArgs(r)
	if !ok {
		badRequest(w, "limit must be between 1 and 500")
		return
	}
	list, err := h.Orders.ListForStore(r.Context(), a, chi.URLParam(r, "storeId"), f, limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(list))
}

// listAll is the admin view across every store. Status is a single order
// status or "all", which is also the default.
func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit, ok := limitArg(r)
	if !ok {
		badRequest(w, "limit must be between 1 and 500")
		return
	}
	list, err := h.Orders.ListAll(r.Context(), a, r.URL.Query().Get("status"), limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(list))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.Get(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]OrderResp{"order": toOrderResp(o)})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.Cancel(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]OrderResp{"order": toOrderResp(o)})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req StatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	o, err := h.Orders.UpdateStatus(r.Context(), a, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]OrderResp{"order": toOrderResp(o)})
}

func (h *OrdersHandler) forceStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req StatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	o, err := h.Orders.ForceStatus(r.Context(), a, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]OrderResp{"order": toOrderResp(o)})
}
