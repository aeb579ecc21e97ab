package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/chain"
	"github.com/georgemunganga/onchain-storefront/internal/platform/session"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router *chi.Mux) {
	router.Get("/api/v1/auth/nonce", h.nonce)
	router.Post("/api/v1/auth/verify", h.verify)
	router.With(Authenticate(h.service)).Post("/api/v1/auth/logout", h.logout)
}

func (h *Handler) nonce(w http.ResponseWriter, r *http.Request) {
	address, err := chain.ParseAddress(r.URL.Query().Get("address"))
	if err != nil {
		apperr.Write(w, apperr.ValidationField("address", "address must be an address"))
		return
	}
	c, err := h.service.Challenge(r.Context(), address)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.ValidationField("body", err.Error()))
		return
	}
	token, err := h.service.Verify(r.Context(), req)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, token)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ident, _ := session.FromContext(r.Context())
	if err := h.service.Logout(r.Context(), ident.SessionID); err != nil {
		apperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
