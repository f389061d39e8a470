package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/actor"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/inventory"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ProductsHandler struct {
	Catalog *inventory.Catalog
	Log     *zap.Logger
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/stores/{storeId}/products", h.list)
	r.Post("/stores/{storeId}/products", h.create)
	r.Get("/products/{id}", h.get)
	r.Put("/products/{id}", h.update)
	r.Delete("/products/{id}", h.delete)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	// anonymous callers may browse; ?all=true is for the owning seller
	a, _ := actor.FromContext(r.Context())
	all := r.URL.Query().Get("all") == "true"
	ps, err := h.Catalog.List(r.Context(), a, chi.URLParam(r, "storeId"), all)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	out := make([]inventory.View, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.View())
	}
	writeJSON(w, http.StatusOK, map[string][]inventory.View{"products": out})
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]inventory.View{"product": p.View()})
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	var d inventory.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		badRequest(w, "invalid json")
		return
	}
	p, err := h.Catalog.Create(r.Context(), a, chi.URLParam(r, "storeId"), d)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]inventory.View{"product": p.View()})
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	var e inventory.Edit
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		badRequest(w, "invalid json")
		return
	}
	p, err := h.Catalog.Update(r.Context(), a, chi.URLParam(r, "id"), e)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]inventory.View{"product": p.View()})
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	a, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.Catalog.Delete(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
