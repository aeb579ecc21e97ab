package purchase

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

type Handler struct {
	service Service
	wallet  interface{ From() common.Address }
	decoder *schema.Decoder
}

// NewHandler builds the purchase endpoints. wallet supplies the default buyer
// for quotes that name none.
func NewHandler(service Service, wallet interface{ From() common.Address }) *Handler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &Handler{service: service, wallet: wallet, decoder: decoder}
}

func (h *Handler) RegisterRoutes(r *chi.Mux, guard func(http.Handler) http.Handler) {
	r.Get("/api/v1/shops/{shop}/products/{id}/quote", h.quote)
	r.Post("/api/v1/purchases/prepare", h.prepare)
	r.Get("/api/v1/purchases", h.list)
	r.Get("/api/v1/purchases/{id}", h.get)
	r.With(guard).Post("/api/v1/shops/{shop}/products/{id}/purchase", h.submit)
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	shop, id, ok := shopAndID(w, r)
	if !ok {
		return
	}
	var q QuoteQuery
	if err := h.decoder.Decode(&q, r.URL.Query()); err != nil {
		apperr.Write(w, apperr.ValidationField("query", err.Error()))
		return
	}
	buyer := h.wallet.From()
	if q.Buyer != "" {
		addr, err := chain.ParseAddress(q.Buyer)
		if err != nil {
			apperr.Write(w, apperr.ValidationField("buyer", "buyer must be an address"))
			return
		}
		buyer = addr
	}
	res, err := h.service.Quote(r.Context(), shop, id, q.Count, buyer)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) {
	var req PrepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.ValidationField("body", err.Error()))
		return
	}
	res, err := h.service.Prepare(r.Context(), req)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	shop, id, ok := shopAndID(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.ValidationField("body", err.Error()))
		return
	}
	res, err := h.service.Submit(r.Context(), shop, id, req)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusCreated, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	buyer, err := chain.ParseAddress(r.URL.Query().Get("buyer"))
	if err != nil {
		apperr.Write(w, apperr.ValidationField("buyer", "buyer must be an address"))
		return
	}
	purchases, err := h.service.ListByBuyer(r.Context(), buyer)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, purchases)
}

func shopAndID(w http.ResponseWriter, r *http.Request) (common.Address, uint64, bool) {
	shop, err := chain.ParseAddress(chi.URLParam(r, "shop"))
	if err != nil {
		apperr.Write(w, apperr.ValidationField("shop", "shop must be an address"))
		return common.Address{}, 0, false
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apperr.Write(w, apperr.ValidationField("id", "id must be a non-negative integer"))
		return common.Address{}, 0, false
	}
	return shop, id, true
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
