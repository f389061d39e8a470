package httpx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/broadcast"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/inventory"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/orders"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/stores"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type testUser struct{ id, role string }

var (
	buyer  = testUser{"cust-1", "customer"}
	owner  = testUser{"seller-1", "seller"}
	ops    = testUser{"ops-1", "admin"}
	nobody = testUser{}
)

func setupServer(t *testing.T) (http.Handler, *inventory.MemoryStore) {
	t.Helper()
	log := zap.NewNop()
	stock := inventory.NewMemoryStore()
	_, err := stock.Create(context.Background(), inventory.Product{
		ID: "p-1", StoreID: "s-1", Name: "Paneer", Price: decimal.RequireFromString("4.50"),
		Quantity: 12, IsAvailable: true,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	dir := stores.NewMemoryDirectory(stores.Store{ID: "s-1", SellerID: owner.id, IsActive: true})

	hub := broadcast.NewHub(16, log)
	b := broadcast.New(64, log, hub)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b.Start(ctx)

	ledger := inventory.NewLedger(stock, 99, log)
	catalog := inventory.NewCatalog(ledger, stock, dir, b, log)
	svc := orders.NewService(ledger, orders.NewMemoryRepo(), dir, b, log, time.Second)

	r := NewRouter([]string{"*"})
	api := WithTimeout(r)
	(&OrdersHandler{Orders: svc, Catalog: catalog, Log: log}).Register(api)
	(&ProductsHandler{Catalog: catalog, Log: log}).Register(api)
	(&StreamHandler{Hub: hub, Heartbeat: time.Hour, Log: log}).Register(r)
	return r, stock
}

func doJSON(t *testing.T, h http.Handler, u testUser, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if u.id != "" {
		req.Header.Set(HeaderUserID, u.id)
		req.Header.Set(HeaderUserRole, u.role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestPurchaseCancelFlow(t *testing.T) {
	h, stock := setupServer(t)

	rec := doJSON(t, h, buyer, http.MethodPost, "/orders", PurchaseReq{ProductID: "p-1", Quantity: 3})
	if rec.Code != http.StatusCreated {
		t.Fatalf("purchase: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[PurchaseResp](t, rec)
	if resp.Product.AvailableQuantity != 9 || resp.Product.StockStatus != inventory.LowStock {
		t.Fatalf("product after purchase: %+v", resp.Product)
	}
	if resp.Order.Status != orders.StatusPlaced || !resp.Order.TotalAmount.Equal(decimal.RequireFromString("13.5")) {
		t.Fatalf("order: %+v", resp.Order)
	}

	rec = doJSON(t, h, buyer, http.MethodPut, "/orders/"+resp.Order.ID+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	if p, _ := stock.Get(context.Background(), "p-1"); p.Quantity != 12 {
		t.Fatalf("stock after cancel: %d", p.Quantity)
	}

	rec = doJSON(t, h, buyer, http.MethodPut, "/orders/"+resp.Order.ID+"/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: %d", rec.Code)
	}
	body := decode[errorBody](t, rec)
	if body.From != orders.StatusCancelled || body.To != orders.StatusCancelled {
		t.Fatalf("transition body: %+v", body)
	}
}

func TestPurchaseDefaultsQuantityToOne(t *testing.T) {
	h, stock := setupServer(t)

	rec := doJSON(t, h, buyer, http.MethodPost, "/orders", map[string]string{"productId": "p-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("purchase without quantity: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[PurchaseResp](t, rec)
	if items := resp.Order.Items; len(items) != 1 || items[0].Quantity != 1 {
		t.Fatalf("order lines: %+v", items)
	}
	if p, _ := stock.Get(context.Background(), "p-1"); p.Quantity != 11 {
		t.Fatalf("stock after default purchase: %d", p.Quantity)
	}
}

func TestOrderListDefaultsToActive(t *testing.T) {
	h, _ := setupServer(t)
	kept := decode[PurchaseResp](t, doJSON(t, h, buyer, http.MethodPost, "/orders", PurchaseReq{ProductID: "p-1", Quantity: 1}))
	gone := decode[PurchaseResp](t, doJSON(t, h, buyer, http.MethodPost, "/orders", PurchaseReq{ProductID: "p-1", Quantity: 1}))
	if rec := doJSON(t, h, buyer, http.MethodPut, "/orders/"+gone.Order.ID+"/cancel", nil); rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d", rec.Code)
	}

	for _, path := range []string{"/orders", "/stores/s-1/orders"} {
		u := buyer
		if path != "/orders" {
			u = owner
		}
		list := decode[map[string][]OrderResp](t, doJSON(t, h, u, http.MethodGet, path, nil))["orders"]
		if len(list) != 1 || list[0].ID != kept.Order.ID {
			t.Fatalf("%s without status: %+v", path, list)
		}
		list = decode[map[string][]OrderResp](t, doJSON(t, h, u, http.MethodGet, path+"?status=all", nil))["orders"]
		if len(list) != 2 {
			t.Fatalf("%s?status=all: %d orders", path, len(list))
		}
	}
}

func TestAdminOrderList(t *testing.T) {
	h, _ := setupServer(t)
	first := decode[PurchaseResp](t, doJSON(t, h, buyer, http.MethodPost, "/orders", PurchaseReq{ProductID: "p-1", Quantity: 1}))
	decode[PurchaseResp](t, doJSON(t, h, buyer, http.MethodPost, "/orders", PurchaseReq{ProductID: "p-1", Quantity: 2}))
	doJSON(t, h, buyer, http.MethodPut, "/orders/"+first.Order.ID+"/cancel", nil)

	rec := doJSON(t, h, ops, http.MethodGet, "/admin/orders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list: %d %s", rec.Code, rec.Body.String())
	}
	if list := decode[map[string][]OrderResp](t, rec)["orders"]; len(list) != 2 {
		t.Fatalf("admin default should list every status: %d", len(list))
	}
	rec = doJSON(t, h, ops, http.MethodGet, "/admin/orders?status=cancelled&limit=5", nil)
	if list := decode[map[string][]OrderResp](t, rec)["orders"]; len(list) != 1 || list[0].ID != first.Order.ID {
		t.Fatalf("cancelled only: %+v", list)
	}

	cases := []struct {
		user testUser
		path string
		want int
	}{
		{owner, "/admin/orders", http.StatusForbidden},
		{nobody, "/admin/orders", http.StatusUnauthorized},
		{ops, "/admin/orders?status=shipped", http.StatusBadRequest},
		{ops, "/admin/orders?limit=501", http.StatusBadRequest},
	}
	for _, c := range cases {
		if rec := doJSON(t, h, c.user, http.MethodGet, c.path, nil); rec.Code != c.want {
			t.Fatalf("%s as %q: got %d want %d", c.path, c.user.role, rec.Code, c.want)
		}
	}
}

func TestSellerFulfilment(t *testing.T) {
	h, _ := setupServer(t)
	resp := decode[PurchaseResp](t, doJSON(t, h, buyer, http.MethodPost, "/orders", PurchaseReq{ProductID: "p-1", Quantity: 1}))

	path := "/orders/" + resp.Order.ID + "/status"
	if rec := doJSON(t, h, buyer, http.MethodPut, path, StatusReq{Status: orders.StatusReady}); rec.Code != http.StatusConflict {
		t.Fatalf("customer ready: %d", rec.Code)
	}
	if rec := doJSON(t, h, owner, http.MethodPut, path, StatusReq{Status: orders.StatusReady}); rec.Code != http.StatusOK {
		t.Fatalf("seller ready: %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, owner, http.MethodPut, path, StatusReq{Status: orders.StatusCompleted}); rec.Code != http.StatusOK {
		t.Fatalf("seller complete: %d", rec.Code)
	}
	if rec := doJSON(t, h, owner, http.MethodPut, path, StatusReq{Status: "bogus"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus status: %d", rec.Code)
	}
	if rec := doJSON(t, h, owner, http.MethodPut, "/admin/orders/"+resp.Order.ID+"/status", StatusReq{Status: orders.StatusPlaced}); rec.Code != http.StatusForbidden {
		t.Fatalf("seller override: %d", rec.Code)
	}

	rec := doJSON(t, h, owner, http.MethodGet, "/stores/s-1/orders?status=completed", nil)
	list := decode[map[string][]OrderResp](t, rec)
	if len(list["orders"]) != 1 {
		t.Fatalf("completed orders: %+v", list)
	}
}

func TestPurchaseErrors(t *testing.T) {
	h, _ := setupServer(t)

	cases := []struct {
		name string
		user testUser
		req  PurchaseReq
		want int
	}{
		{"anonymous", nobody, PurchaseReq{ProductID: "p-1", Quantity: 1}, http.StatusUnauthorized},
		{"too many", buyer, PurchaseReq{ProductID: "p-1", Quantity: 100}, http.StatusBadRequest},
		{"zero", buyer, PurchaseReq{ProductID: "p-1", Quantity: 0}, http.StatusBadRequest},
		{"missing product", buyer, PurchaseReq{ProductID: "nope", Quantity: 1}, http.StatusNotFound},
		{"more than shelf", buyer, PurchaseReq{ProductID: "p-1", Quantity: 13}, http.StatusConflict},
		{"seller buying", owner, PurchaseReq{ProductID: "p-1", Quantity: 1}, http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doJSON(t, h, c.user, http.MethodPost, "/orders", c.req)
			if rec.Code != c.want {
				t.Fatalf("got %d want %d: %s", rec.Code, c.want, rec.Body.String())
			}
		})
	}

	rec := doJSON(t, h, buyer, http.MethodPost, "/orders", PurchaseReq{ProductID: "p-1", Quantity: 13})
	if body := decode[errorBody](t, rec); body.Available == nil || *body.Available != 12 {
		t.Fatalf("insufficient stock body: %+v", body)
	}
	if rec := doJSON(t, h, buyer, http.MethodGet, "/orders?limit=0", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=0: %d", rec.Code)
	}
}

func TestProductsEndpoints(t *testing.T) {
	h, _ := setupServer(t)

	rec := doJSON(t, h, owner, http.MethodPost, "/stores/s-1/products", inventory.Draft{
		Name: "Ghee", Price: decimal.RequireFromString("9.99"), Quantity: 0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[map[string]inventory.View](t, rec)["product"]
	if created.StockStatus != inventory.OutOfStock {
		t.Fatalf("new product status: %s", created.StockStatus)
	}

	if rec := doJSON(t, h, buyer, http.MethodPost, "/stores/s-1/products", inventory.Draft{Name: "x"}); rec.Code != http.StatusForbidden {
		t.Fatalf("customer create: %d", rec.Code)
	}

	qty := 10
	rec = doJSON(t, h, owner, http.MethodPut, "/products/"+created.ID, inventory.Edit{Quantity: &qty})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	if v := decode[map[string]inventory.View](t, rec)["product"]; v.StockStatus != inventory.InStock {
		t.Fatalf("status after restock edit: %s", v.StockStatus)
	}

	rec = doJSON(t, h, nobody, http.MethodGet, "/stores/s-1/products", nil)
	if list := decode[map[string][]inventory.View](t, rec)["products"]; len(list) != 2 {
		t.Fatalf("public list: %d products", len(list))
	}

	if rec := doJSON(t, h, owner, http.MethodDelete, "/products/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := doJSON(t, h, nobody, http.MethodGet, "/products/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", rec.Code)
	}
}

func TestStreamReceivesStockUpdates(t *testing.T) {
	h, _ := setupServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stores/s-1/stream", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type: %s", ct)
	}

	lines := bufio.NewScanner(res.Body)
	waitFor := func(prefix string) string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, lines.Err())
		return ""
	}
	waitFor("event:ready")

	if rec := doJSON(t, h, buyer, http.MethodPost, "/orders", PurchaseReq{ProductID: "p-1", Quantity: 2}); rec.Code != http.StatusCreated {
		t.Fatalf("purchase: %d", rec.Code)
	}
	waitFor("event:" + broadcast.EventName)
	data := strings.TrimPrefix(waitFor("data:"), "data:")

	ev, err := broadcast.DecodeEvent([]byte(data))
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != broadcast.TypeUpsert || ev.Product.Quantity != 10 {
		t.Fatalf("event: %+v", ev)
	}
}

func TestHealthz(t *testing.T) {
	h, _ := setupServer(t)
	rec := doJSON(t, h, nobody, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}
