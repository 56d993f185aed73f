package models

import "time"

// SpinMeta is the per-user spin record, keyed by user id
type SpinMeta struct {
	UserID         string     `json:"user_id"`
	SpinsCount     int        `json:"spins_count"`
	LastWinnerName string     `json:"last_winner_name"`
	LastSpinTime   *time.Time `json:"last_spin_time"` // nil means never spun
	UpdatedAt      time.Time  `json:"updated_at,omitempty"`
}

// SpinHistoryRecord is one completed spin. Records are append-only.
type SpinHistoryRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SegmentID   string    `json:"segment_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	Value       string    `json:"value,omitempty"`
	SpinNumber  int       `json:"spin_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocket message types
const (
	MsgWheelState = "wheel_state"
	MsgFrame      = "frame"
	MsgCountdown  = "countdown"
	MsgSpinResult = "spin_result"
)

// FramePayload is pushed for each animation frame
type FramePayload struct {
	Angle    float64 `json:"angle"`
	Velocity float64 `json:"velocity"`
	Pointer  int     `json:"pointer"`
}

// CountdownPayload is pushed once per second while cooling down
type CountdownPayload struct {
	Allowed  bool   `json:"allowed"`
	WaitTime string `json:"wait_time"`
}
