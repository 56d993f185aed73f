package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kdashto/spinwheel/internal/logger"
	"github.com/kdashto/spinwheel/internal/repository/mock"
	"github.com/kdashto/spinwheel/internal/services"
	"github.com/kdashto/spinwheel/internal/testutil"
)

func TestSettingsService_BaseURL(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewSettingsService(logger.Discard(), repo)
	ctx := context.Background()

	// Not configured yet
	url, err := svc.GetBaseURL(ctx)
	if err != nil {
		t.Fatalf("GetBaseURL failed: %v", err)
	}
	if url != "" {
		t.Errorf("expected empty base url, got %q", url)
	}

	if err := svc.SetBaseURL(ctx, "http://192.168.1.20:8080"); err != nil {
		t.Fatalf("SetBaseURL failed: %v", err)
	}
	url, err = svc.GetBaseURL(ctx)
	if err != nil {
		t.Fatalf("GetBaseURL failed: %v", err)
	}
	if url != "http://192.168.1.20:8080" {
		t.Errorf("expected stored base url, got %q", url)
	}

	all, err := svc.AllSettings(ctx)
	if err != nil {
		t.Fatalf("AllSettings failed: %v", err)
	}
	if all["base_url"] != url {
		t.Errorf("AllSettings base_url = %v", all["base_url"])
	}
}

func TestSettingsService_DatabaseErrors(t *testing.T) {
	mockRepo := mock.NewRepository(testutil.NewTestRepository(t))
	mockRepo.GetSettingError = errors.New("database locked")
	svc := services.NewSettingsService(logger.Discard(), mockRepo)
	ctx := context.Background()

	if _, err := svc.GetBaseURL(ctx); err == nil {
		t.Error("expected GetBaseURL to propagate database errors")
	}
	if _, err := svc.AllSettings(ctx); err == nil {
		t.Error("expected AllSettings to propagate database errors")
	}
}
