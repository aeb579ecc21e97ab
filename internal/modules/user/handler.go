package user

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
	"github.com/georgemunganga/onchain-storefront/internal/platform/session"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the profile endpoints behind authenticate. A session
// may only read or change its own user.
func (h *Handler) RegisterRoutes(router *chi.Mux, authenticate func(http.Handler) http.Handler) {
	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/api/users/{id}", h.getUser)
		r.Patch("/api/users/{id}", h.updateUser)
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := ownID(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := ownID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.ValidationField("body", err.Error()))
		return
	}
	user, err := h.service.UpdateUser(r.Context(), id, req)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, user)
}

func ownID(w http.ResponseWriter, r *http.Request) (string, bool) {
	ident, ok := session.FromContext(r.Context())
	if !ok {
		apperr.Write(w, apperr.Unauthorized("sign in required"))
		return "", false
	}
	id := chi.URLParam(r, "id")
	if id != ident.UserID.String() {
		apperr.Write(w, apperr.Forbidden("session does not belong to this user"))
		return "", false
	}
	return id, true
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
