package shop

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/modules/strategy"
)

// Handler exposes shop, product and order HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts reads openly and every write behind guard.
func (h *Handler) RegisterRoutes(r *chi.Mux, guard func(http.Handler) http.Handler) {
	r.Get("/api/v1/shops", h.listShops)
	r.Get("/api/v1/shops/{shop}", h.getShop)
	r.Get("/api/v1/shops/{shop}/products", h.listProducts)
	r.Get("/api/v1/shops/{shop}/products/{id}", h.getProduct)
	r.Get("/api/v1/shops/{shop}/orders", h.listOrders)
	r.Get("/api/v1/shops/{shop}/orders/{id}", h.getOrder)

	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Post("/api/v1/shops", h.createShop)
		r.Post("/api/v1/shops/{shop}/products", h.createProduct)
		r.Put("/api/v1/shops/{shop}/products/{id}", h.updateProduct)
		r.Post("/api/v1/shops/{shop}/products/{id}/pause", h.pause)
		r.Post("/api/v1/shops/{shop}/products/{id}/unpause", h.unpause)
		r.Put("/api/v1/shops/{shop}/products/{id}/strategies/{category}", h.setProductStrategy)
		r.Post("/api/v1/shops/{shop}/strategies/{category}", h.registerStrategy)
		r.Post("/api/v1/shops/{shop}/orders/claim", h.claimOrders)
		r.Post("/api/v1/shops/{shop}/orders/{id}/refund", h.refundOrder)
		r.Post("/api/v1/shops/{shop}/orders/{id}/complete", h.completeOrder)
	})
}

// ── shops ─────────────────────────────────────────────────────────────────────

func (h *Handler) listShops(w http.ResponseWriter, r *http.Request) {
	var owner *common.Address
	if v := r.URL.Query().Get("owner"); v != "" {
		addr, err := chain.ParseAddress(v)
		if err != nil {
			apperr.Write(w, apperr.ValidationField("owner", "owner must be an address"))
			return
		}
		owner = &addr
	}
	shops, err := h.service.ListShops(r.Context(), owner)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, shops)
}

func (h *Handler) getShop(w http.ResponseWriter, r *http.Request) {
	shop, ok := shopParam(w, r)
	if !ok {
		return
	}
	s, err := h.service.GetShop(r.Context(), shop)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, s)
}

func (h *Handler) createShop(w http.ResponseWriter, r *http.Request) {
	var req CreateShopRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.CreateShop(r.Context(), req)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusCreated, res)
}

// ── products ──────────────────────────────────────────────────────────────────

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	shop, ok := shopParam(w, r)
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}
	products, err := h.service.ListProducts(r.Context(), shop, page)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	shop, id, ok := shopAndID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), shop, id)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	shop, ok := shopParam(w, r)
	if !ok {
		return
	}
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.CreateProduct(r.Context(), shop, req)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusCreated, res)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	shop, id, ok := shopAndID(w, r)
	if !ok {
		return
	}
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.UpdateProduct(r.Context(), shop, id, req)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request)   { h.setPaused(w, r, true) }
func (h *Handler) unpause(w http.ResponseWriter, r *http.Request) { h.setPaused(w, r, false) }

func (h *Handler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	shop, id, ok := shopAndID(w, r)
	if !ok {
		return
	}
	res, err := h.service.SetPaused(r.Context(), shop, id, paused)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) setProductStrategy(w http.ResponseWriter, r *http.Request) {
	shop, id, ok := shopAndID(w, r)
	if !ok {
		return
	}
	category, err := strategy.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	var req StrategyRequest
	if !decode(w, r, &req) {
		return
	}
	// An empty address detaches the current strategy.
	var addr common.Address
	if req.Address != "" {
		if addr, err = chain.ParseAddress(req.Address); err != nil {
			apperr.Write(w, apperr.ValidationField("address", "address must be an address"))
			return
		}
	}
	res, err := h.service.SetProductStrategy(r.Context(), shop, id, category, addr)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) registerStrategy(w http.ResponseWriter, r *http.Request) {
	shop, ok := shopParam(w, r)
	if !ok {
		return
	}
	category, err := strategy.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	var req StrategyRequest
	if !decode(w, r, &req) {
		return
	}
	addr, err := chain.ParseAddress(req.Address)
	if err != nil {
		apperr.Write(w, apperr.ValidationField("address", "address must be an address"))
		return
	}
	res, err := h.service.RegisterStrategy(r.Context(), shop, category, addr)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusCreated, res)
}

// ── orders ────────────────────────────────────────────────────────────────────

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	shop, ok := shopParam(w, r)
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}
	orders, err := h.service.ListOrders(r.Context(), shop, page)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	shop, id, ok := shopAndID(w, r)
	if !ok {
		return
	}
	o, err := h.service.GetOrder(r.Context(), shop, id)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, o)
}

func (h *Handler) claimOrders(w http.ResponseWriter, r *http.Request) {
	shop, ok := shopParam(w, r)
	if !ok {
		return
	}
	var req ClaimRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.ClaimOrders(r.Context(), shop, req.OrderIDs)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	shop, id, ok := shopAndID(w, r)
	if !ok {
		return
	}
	var req RefundRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := chain.ParseEther(req.Amount)
	if err != nil {
		apperr.Write(w, apperr.ValidationField("amount", "amount must be an ETH amount"))
		return
	}
	res, err := h.service.RefundOrder(r.Context(), shop, id, amount)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	shop, id, ok := shopAndID(w, r)
	if !ok {
		return
	}
	res, err := h.service.CompleteOrder(r.Context(), shop, id)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func shopParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	shop, err := chain.ParseAddress(chi.URLParam(r, "shop"))
	if err != nil {
		apperr.Write(w, apperr.ValidationField("shop", "shop must be an address"))
		return common.Address{}, false
	}
	return shop, true
}

func shopAndID(w http.ResponseWriter, r *http.Request) (common.Address, uint64, bool) {
	shop, ok := shopParam(w, r)
	if !ok {
		return common.Address{}, 0, false
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apperr.Write(w, apperr.ValidationField("id", "id must be a non-negative integer"))
		return common.Address{}, 0, false
	}
	return shop, id, true
}

func pageParams(w http.ResponseWriter, r *http.Request) (Page, bool) {
	var page Page
	for _, p := range []struct {
		name string
		dst  *uint64
	}{{"offset", &page.Offset}, {"limit", &page.Limit}} {
		v := r.URL.Query().Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			apperr.Write(w, apperr.ValidationField(p.name, p.name+" must be a non-negative integer"))
			return Page{}, false
		}
		*p.dst = n
	}
	return page, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apperr.Write(w, apperr.ValidationField("body", err.Error()))
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
