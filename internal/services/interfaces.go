package services

import (
	"context"

	"github.com/kdashto/spinwheel/internal/models"
)

// Broadcaster pushes presentation updates to a user's connected clients
type Broadcaster interface {
	SendToUser(userID, msgType string, payload interface{})
}

// Presence is implemented by broadcasters that know whether a user still
// has clients connected. Sessions of connected users are never evicted.
type Presence interface {
	Connected(userID string) bool
}

// SpinServicer defines the interface for wheel operations
type SpinServicer interface {
	SignIn(ctx context.Context, userID string) error
	SignOut(userID string)
	View(ctx context.Context, userID string) WheelView
	StartSpin(ctx context.Context, userID, targetID string) (*SpinStarted, error)
	AwaitResult(ctx context.Context, userID string) (*SpinOutcome, error)
	Nudge(ctx context.Context, userID string, direction int) error
	History(ctx context.Context, userID string, limit int) ([]models.SpinHistoryRecord, error)
	SetBroadcaster(b Broadcaster)
	Close()
}

// RewardServicer defines the interface for the rewards page
type RewardServicer interface {
	List(ctx context.Context, userID string) (*RewardList, error)
	Get(ctx context.Context, userID, recordID string) (*models.SpinHistoryRecord, error)
	ClaimQR(ctx context.Context, userID, recordID string) ([]byte, error)
}

// SettingsServicer defines the interface for settings operations
type SettingsServicer interface {
	GetBaseURL(ctx context.Context) (string, error)
	SetBaseURL(ctx context.Context, url string) error
	AllSettings(ctx context.Context) (map[string]interface{}, error)
}

// Ensure concrete types implement interfaces
var (
	_ SpinServicer     = (*SpinService)(nil)
	_ RewardServicer   = (*RewardService)(nil)
	_ SettingsServicer = (*SettingsService)(nil)
)
