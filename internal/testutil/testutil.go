// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/kdashto/spinwheel/internal/models"
	"github.com/kdashto/spinwheel/internal/repository"
)

// Epoch is the fixed "now" mock clocks start from
var Epoch = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

// NewTestRepository opens a fresh in-memory sqlite store with the schema
// applied. It is closed when the test ends.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// SeedSpinMeta stores a spin record for a user who has already spun
// count times, the last one ago before Epoch
func SeedSpinMeta(t *testing.T, repo repository.SpinMetaRepository, userID string, count int, ago time.Duration) models.SpinMeta {
	t.Helper()

	meta := models.SpinMeta{UserID: userID, SpinsCount: count}
	if count > 0 {
		last := Epoch.Add(-ago)
		meta.LastSpinTime = &last
	}
	if err := repo.SetSpinMeta(context.Background(), meta); err != nil {
		t.Fatalf("seeding spin meta: %v", err)
	}
	return meta
}

// AppendRecord stores a history record, filling ID and CreatedAt if unset
func AppendRecord(t *testing.T, repo repository.HistoryRepository, rec *models.SpinHistoryRecord) *models.SpinHistoryRecord {
	t.Helper()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = Epoch.Add(time.Duration(rec.SpinNumber) * time.Hour)
	}
	if err := repo.AppendHistory(context.Background(), rec); err != nil {
		t.Fatalf("appending history: %v", err)
	}
	return rec
}
