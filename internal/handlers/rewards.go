package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kdashto/spinwheel/internal/auth"
)

// handleGetRewards lists the caller's rewards with a summary
func (h *Handlers) handleGetRewards(w http.ResponseWriter, r *http.Request) {
	list, err := h.Rewards.List(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	respondOK(w, list)
}

// handleGetRewardQR returns the claim QR code for one reward as PNG
func (h *Handlers) handleGetRewardQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, BadRequest("Missing id parameter"))
		return
	}

	png, err := h.Rewards.ClaimQR(r.Context(), auth.UserFromContext(r.Context()), id)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(png)
}
