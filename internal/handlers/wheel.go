package handlers

import (
	"net/http"

	"github.com/kdashto/spinwheel/internal/auth"
)

// handleGetWheel returns the wheel as the caller sees it
func (h *Handlers) handleGetWheel(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.Spin.View(r.Context(), auth.UserFromContext(r.Context())))
}

// handleSpin starts a spin. The result arrives over the websocket or from
// GET /api/wheel/result.
func (h *Handlers) handleSpin(w http.ResponseWriter, r *http.Request) {
	var req SpinRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	started, err := h.Spin.StartSpin(r.Context(), auth.UserFromContext(r.Context()), req.TargetID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, started)
}

// handleGetResult waits for the caller's current spin to finish
func (h *Handlers) handleGetResult(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.Spin.AwaitResult(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	respondOK(w, outcome)
}

// handleNudge turns the idle wheel one step for keyboard arrows
func (h *Handlers) handleNudge(w http.ResponseWriter, r *http.Request) {
	var req NudgeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	userID := auth.UserFromContext(r.Context())
	if err := h.Spin.Nudge(r.Context(), userID, req.Direction); err != nil {
		respondError(w, err)
		return
	}

	respondOK(w, h.Spin.View(r.Context(), userID))
}

// handleGetHistory lists the caller's spins, newest first
func (h *Handlers) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimitQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}

	history, err := h.Spin.History(r.Context(), auth.UserFromContext(r.Context()), limit)
	if err != nil {
		respondError(w, err)
		return
	}

	respondOK(w, HistoryResponse{History: history})
}

// handleGetSettings returns the public settings
func (h *Handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.AllSettings(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondOK(w, settings)
}

// handleHealth pings the store
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.Hub != nil {
		resp.Clients = h.Hub.ClientCount()
	}
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondOK(w, resp)
}
