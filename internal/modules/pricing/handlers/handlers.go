// Package handlers provides HTTP handlers for cached quote access.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mkarath/folio/internal/modules/pricing"
)

// Handler handles pricing HTTP requests
type Handler struct {
	cache *pricing.Cache
	log   zerolog.Logger
}

// NewHandler creates a new pricing handler
func NewHandler(cache *pricing.Cache, log zerolog.Logger) *Handler {
	return &Handler{
		cache: cache,
		log:   log.With().Str("handler", "pricing").Logger(),
	}
}

// RegisterRoutes registers pricing routes on the given router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/prices", h.HandleGetPrices)
	r.Get("/prices/{assetKey}", h.HandleGetPrice)
}

// HandleGetPrices handles GET /api/prices
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	quotes := h.cache.GetAll()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"quotes": quotes,
			"count":  len(quotes),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetPrice handles GET /api/prices/{assetKey}
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	assetKey := chi.URLParam(r, "assetKey")

	quote := h.cache.Get(assetKey)
	if quote == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "no quote for asset",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": quote,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
