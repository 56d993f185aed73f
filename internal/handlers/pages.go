package handlers

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kdashto/spinwheel/internal/auth"
	"github.com/kdashto/spinwheel/internal/errors"
	"github.com/kdashto/spinwheel/internal/models"
	"github.com/kdashto/spinwheel/internal/services"
)

// WheelPageData holds the data passed to the wheel template
type WheelPageData struct {
	Title  string
	UserID string
	View   services.WheelView
	Page   PageOptions
}

// RewardsPageData holds the data passed to the rewards template
type RewardsPageData struct {
	Title  string
	UserID string
	List   *services.RewardList
}

// ClaimPageData holds the data passed to the claim template
type ClaimPageData struct {
	Title  string
	UserID string
	Reward *models.SpinHistoryRecord
	Error  string
}

func render(w http.ResponseWriter, status int, tmpl *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		InternalError(err)
	}
}

// handleIndex renders the wheel page
func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	render(w, http.StatusOK, h.templates.Wheel, WheelPageData{
		Title:  "Spin the Wheel",
		UserID: userID,
		View:   h.Spin.View(r.Context(), userID),
		Page:   h.Page,
	})
}

// handleRewardsPage renders the caller's rewards
func (h *Handlers) handleRewardsPage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	data := RewardsPageData{Title: "My Rewards", UserID: userID}
	if userID != "" {
		list, err := h.Rewards.List(r.Context(), userID)
		if err != nil {
			apiErr := ToAPIError(err)
			http.Error(w, apiErr.Message, apiErr.Status)
			return
		}
		data.List = list
	}
	render(w, http.StatusOK, h.templates.Rewards, data)
}

// handleClaimPage is where a reward claim QR code points
func (h *Handlers) handleClaimPage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	data := ClaimPageData{Title: "Claim Reward", UserID: userID}
	if userID == "" {
		data.Error = "Sign in to view this reward."
		render(w, http.StatusUnauthorized, h.templates.Claim, data)
		return
	}

	rec, err := h.Rewards.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		data.Error = "Could not load this reward."
		if errors.IsKind(err, errors.ErrNotFound) {
			status = http.StatusNotFound
			data.Error = "Reward not found."
		}
		render(w, status, h.templates.Claim, data)
		return
	}

	data.Reward = rec
	render(w, http.StatusOK, h.templates.Claim, data)
}
