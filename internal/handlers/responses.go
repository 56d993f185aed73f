package handlers

import "github.com/kdashto/spinwheel/internal/models"

// LoginResponse is the response for a successful sign-in
type LoginResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// MeResponse describes the caller
type MeResponse struct {
	UserID   string `json:"user_id,omitempty"`
	SignedIn bool   `json:"signed_in"`
}

// HistoryResponse is the response for the spin history endpoint
type HistoryResponse struct {
	History []models.SpinHistoryRecord `json:"history"`
}

// HealthResponse is the response for the health check
type HealthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Error   string `json:"error,omitempty"`
}
