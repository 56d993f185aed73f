package handlers

import (
	"net/http"

	"github.com/kdashto/spinwheel/internal/auth"
)

// handleLogin signs a user in with the site access code
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	token, err := h.Auth.Login(req.UserID, req.AccessCode)
	if err != nil {
		respondError(w, NewAPIError(http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid user id or access code"))
		return
	}

	auth.SetSessionCookie(w, token)
	userID, _ := h.Auth.ValidateSession(token)
	respondOK(w, LoginResponse{UserID: userID, Token: token})
}

// handleLogout clears the session
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Auth.Logout(cookie.Value)
	}

	auth.ClearSessionCookie(w)
	respondSuccess(w, "Signed out")
}

// handleMe reports who the caller is
func (h *Handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	respondOK(w, MeResponse{UserID: userID, SignedIn: userID != ""})
}
