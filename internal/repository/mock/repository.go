package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kdashto/spinwheel/internal/models"
	"github.com/kdashto/spinwheel/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.SetError(&mockRepo.AppendHistoryError, errors.New("database error"))
//	svc := services.NewSpinService(log, mockRepo, ...)
//	// the next completed spin logs the failure and keeps its optimistic state
type Repository struct {
	repository.FullRepository

	mu sync.Mutex

	// ===== Spin Meta Errors =====
	GetSpinMetaError       error
	CreateSpinMetaError    error
	IncrementSpinMetaError error
	SetSpinMetaError       error

	// ===== History Errors =====
	AppendHistoryError    error
	ListHistoryError      error
	GetHistoryRecordError error
	CountHistoryError     error

	// ===== Settings Errors =====
	GetSettingError error
	SetSettingError error

	PingError error

	// Calls counts persistence attempts by method name
	Calls map[string]int
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
		Calls:          map[string]int{},
	}
}

// SetError sets one of the injected errors while holding the lock, for
// tests that change failures while background goroutines run
func (m *Repository) SetError(field *error, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field = err
}

// CallCount returns how many times method was invoked
func (m *Repository) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[method]
}

func (m *Repository) record(method string, injected *error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[method]++
	return *injected
}

// ===== Spin Meta Methods =====

func (m *Repository) GetSpinMeta(ctx context.Context, userID string) (*models.SpinMeta, error) {
	if err := m.record("GetSpinMeta", &m.GetSpinMetaError); err != nil {
		return nil, err
	}
	return m.FullRepository.GetSpinMeta(ctx, userID)
}

func (m *Repository) CreateSpinMeta(ctx context.Context, userID string) error {
	if err := m.record("CreateSpinMeta", &m.CreateSpinMetaError); err != nil {
		return err
	}
	return m.FullRepository.CreateSpinMeta(ctx, userID)
}

func (m *Repository) IncrementSpinMeta(ctx context.Context, userID, winnerName string, spunAt time.Time) error {
	if err := m.record("IncrementSpinMeta", &m.IncrementSpinMetaError); err != nil {
		return err
	}
	return m.FullRepository.IncrementSpinMeta(ctx, userID, winnerName, spunAt)
}

func (m *Repository) SetSpinMeta(ctx context.Context, meta models.SpinMeta) error {
	if err := m.record("SetSpinMeta", &m.SetSpinMetaError); err != nil {
		return err
	}
	return m.FullRepository.SetSpinMeta(ctx, meta)
}

// ===== History Methods =====

func (m *Repository) AppendHistory(ctx context.Context, rec *models.SpinHistoryRecord) error {
	if err := m.record("AppendHistory", &m.AppendHistoryError); err != nil {
		return err
	}
	return m.FullRepository.AppendHistory(ctx, rec)
}

func (m *Repository) ListHistory(ctx context.Context, userID string, limit int) ([]models.SpinHistoryRecord, error) {
	if err := m.record("ListHistory", &m.ListHistoryError); err != nil {
		return nil, err
	}
	return m.FullRepository.ListHistory(ctx, userID, limit)
}

func (m *Repository) GetHistoryRecord(ctx context.Context, userID, id string) (*models.SpinHistoryRecord, error) {
	if err := m.record("GetHistoryRecord", &m.GetHistoryRecordError); err != nil {
		return nil, err
	}
	return m.FullRepository.GetHistoryRecord(ctx, userID, id)
}

func (m *Repository) CountHistory(ctx context.Context, userID string) (int, error) {
	if err := m.record("CountHistory", &m.CountHistoryError); err != nil {
		return 0, err
	}
	return m.FullRepository.CountHistory(ctx, userID)
}

// ===== Settings Methods =====

func (m *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	if err := m.record("GetSetting", &m.GetSettingError); err != nil {
		return "", err
	}
	return m.FullRepository.GetSetting(ctx, key)
}

func (m *Repository) SetSetting(ctx context.Context, key, value string) error {
	if err := m.record("SetSetting", &m.SetSettingError); err != nil {
		return err
	}
	return m.FullRepository.SetSetting(ctx, key, value)
}

func (m *Repository) Ping(ctx context.Context) error {
	if err := m.record("Ping", &m.PingError); err != nil {
		return err
	}
	return m.FullRepository.Ping(ctx)
}

var _ repository.FullRepository = (*Repository)(nil)
