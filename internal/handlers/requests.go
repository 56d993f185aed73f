package handlers

// LoginRequest represents a sign-in with the site access code
type LoginRequest struct {
	UserID     string `json:"user_id"`
	AccessCode string `json:"access_code"`
}

// SpinRequest starts a spin. TargetID optionally names the segment the
// wheel should aim for.
type SpinRequest struct {
	TargetID string `json:"target_id,omitempty"`
}

// NudgeRequest turns the idle wheel one step; direction is -1 or 1
type NudgeRequest struct {
	Direction int `json:"direction"`
}
