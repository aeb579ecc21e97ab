package metadata

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/onchain-storefront/internal/apperr"
)

const maxUploadSize = 32 << 20

// Handler exposes metadata HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts the read route openly and the pin routes behind guard.
func (h *Handler) RegisterRoutes(r *chi.Mux, guard func(http.Handler) http.Handler) {
	r.Get("/api/v1/metadata/{cid}", h.fetch)
	r.With(guard).Post("/api/v1/metadata", h.pinJSON)
	r.With(guard).Post("/api/v1/metadata/files", h.pinFile)
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Fetch(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Raw)
}

func (h *Handler) pinJSON(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		apperr.Write(w, apperr.ValidationField("body", err.Error()))
		return
	}
	cid, err := h.service.Pin(r.Context(), json.RawMessage(raw))
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusCreated, PinResponse{CID: cid})
}

func (h *Handler) pinFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		apperr.Write(w, apperr.ValidationField("file", "expected a multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		apperr.Write(w, apperr.ValidationField("file", "file is required"))
		return
	}
	defer file.Close()

	cid, err := h.service.PinFile(r.Context(), header.Filename, file)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	respond(w, http.StatusCreated, PinResponse{CID: cid})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
