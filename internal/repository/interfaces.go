package repository

import (
	"context"
	"time"

	"github.com/kdashto/spinwheel/internal/models"
)

// SpinMetaRepository stores the per-user spin record
type SpinMetaRepository interface {
	GetSpinMeta(ctx context.Context, userID string) (*models.SpinMeta, error)
	// CreateSpinMeta inserts a zero record, leaving an existing one untouched
	CreateSpinMeta(ctx context.Context, userID string) error
	// IncrementSpinMeta bumps spins_count in place. It returns ErrNotFound
	// when the user has no record yet.
	IncrementSpinMeta(ctx context.Context, userID, winnerName string, spunAt time.Time) error
	// SetSpinMeta creates the record or merges meta into the existing one
	SetSpinMeta(ctx context.Context, meta models.SpinMeta) error
}

// HistoryRepository stores completed spins, append-only
type HistoryRepository interface {
	AppendHistory(ctx context.Context, rec *models.SpinHistoryRecord) error
	ListHistory(ctx context.Context, userID string, limit int) ([]models.SpinHistoryRecord, error)
	GetHistoryRecord(ctx context.Context, userID, id string) (*models.SpinHistoryRecord, error)
	CountHistory(ctx context.Context, userID string) (int, error)
}

// SettingsRepository defines settings data operations
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	SpinMetaRepository
	HistoryRepository
	SettingsRepository
	Ping(ctx context.Context) error
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
