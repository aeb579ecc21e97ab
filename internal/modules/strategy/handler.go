package strategy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

// Handler exposes strategy HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts reads openly and action execution behind guard.
func (h *Handler) RegisterRoutes(r *chi.Mux, guard func(http.Handler) http.Handler) {
	r.Get("/api/v1/strategies/types", h.types)
	r.Get("/api/v1/shops/{shop}/strategies/{category}", h.list)
	r.Get("/api/v1/shops/{shop}/strategies/{category}/{address}", h.get)
	r.Get("/api/v1/shops/{shop}/strategies/{category}/{address}/dialog", h.dialog)
	r.With(guard).Post("/api/v1/shops/{shop}/strategies/{category}/{address}/actions/{action}", h.execute)
}

func (h *Handler) types(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, h.service.Types())
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	shop, category, err := shopAndCategory(r)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	rows, err := h.service.List(r.Context(), shop, category)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, rows)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	shop, category, addr, err := strategyParams(r)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	row, err := h.service.Get(r.Context(), shop, category, addr)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, row)
}

func (h *Handler) dialog(w http.ResponseWriter, r *http.Request) {
	shop, category, addr, err := strategyParams(r)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	d, err := h.service.Dialog(r.Context(), shop, category, addr)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, d)
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	shop, category, addr, err := strategyParams(r)
	if err != nil {
		apperr.Write(w, err)
		return
	}

	var body map[string]interface{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		apperr.Write(w, apperr.ValidationField("body", "request body must be a JSON object"))
		return
	}
	form := make(map[string]string, len(body))
	for k, v := range body {
		if v != nil {
			form[k] = fmt.Sprint(v)
		}
	}

	res, err := h.service.Execute(r.Context(), ExecuteRequest{
		Shop:     shop,
		Category: category,
		Strategy: addr,
		Action:   chi.URLParam(r, "action"),
		Form:     form,
	})
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func shopAndCategory(r *http.Request) (common.Address, Category, error) {
	shop, err := chain.ParseAddress(chi.URLParam(r, "shop"))
	if err != nil {
		return common.Address{}, "", apperr.ValidationField("shop", "shop must be an address")
	}
	category, err := ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		return common.Address{}, "", err
	}
	return shop, category, nil
}

func strategyParams(r *http.Request) (common.Address, Category, common.Address, error) {
	shop, category, err := shopAndCategory(r)
	if err != nil {
		return common.Address{}, "", common.Address{}, err
	}
	addr, err := chain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return common.Address{}, "", common.Address{}, apperr.ValidationField("address", "strategy must be an address")
	}
	return shop, category, addr, nil
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
