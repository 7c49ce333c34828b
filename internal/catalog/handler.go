// internal/catalog/handler.go
package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nftmarket/internal/eventstore"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/search", h.HandleSearch)
	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.handleListAssets)
		r.Post("/", h.handleCreateAsset)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetAsset)
			r.Post("/purchase", h.handlePurchaseAsset)
			r.Get("/activity", h.handleActivity)
		})
	})
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing search query", http.StatusBadRequest)
		return
	}

	assets, err := h.service.Search(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, assets)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) handleListAssets(w http.ResponseWriter, r *http.Request) {
	var (
		assets []*Asset
		err    error
	)

	q := r.URL.Query()
	switch {
	case q.Get("creator") != "" && q.Get("owner") != "":
		http.Error(w, "filter by creator or owner, not both", http.StatusBadRequest)
		return
	case q.Get("creator") != "":
		assets, err = h.service.GetByCreator(r.Context(), q.Get("creator"))
	case q.Get("owner") != "":
		assets, err = h.service.GetByOwner(r.Context(), q.Get("owner"))
	default:
		assets, err = h.service.ListAll(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, assets)
}

// CreateRequest is the body of POST /assets.
type CreateRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	ImageURL         string   `json:"image_url"`
	AdditionalImages []string `json:"additional_images,omitempty"`
	Creator          string   `json:"creator"`
	Price            string   `json:"price"`
}

func (h *Handler) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	asset, err := h.service.Create(r.Context(), req.Title, req.Description, req.ImageURL, req.Creator, req.Price, req.AdditionalImages...)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}

func (h *Handler) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

// PurchaseRequest is the body of POST /assets/{id}/purchase.
type PurchaseRequest struct {
	Buyer string `json:"buyer"`
	Price string `json:"price"`
}

func (h *Handler) handlePurchaseAsset(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	asset, err := h.service.Purchase(r.Context(), chi.URLParam(r, "id"), req.Buyer, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Activity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// StatusCode maps a service error onto an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusCode(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
