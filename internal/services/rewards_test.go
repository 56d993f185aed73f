package services_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/kdashto/spinwheel/internal/errors"
	"github.com/kdashto/spinwheel/internal/logger"
	"github.com/kdashto/spinwheel/internal/models"
	"github.com/kdashto/spinwheel/internal/repository/mock"
	"github.com/kdashto/spinwheel/internal/services"
	"github.com/kdashto/spinwheel/internal/testutil"
)

func newRewardService(t *testing.T) (*services.RewardService, *services.SettingsService, *mock.Repository) {
	t.Helper()
	repo := mock.NewRepository(testutil.NewTestRepository(t))
	settings := services.NewSettingsService(logger.Discard(), repo)
	return services.NewRewardService(logger.Discard(), repo, settings), settings, repo
}

func appendReward(t *testing.T, repo *mock.Repository, userID, name, value string, n int) *models.SpinHistoryRecord {
	t.Helper()
	return testutil.AppendRecord(t, repo, &models.SpinHistoryRecord{
		UserID:     userID,
		SegmentID:  name,
		Name:       name,
		Value:      value,
		SpinNumber: n,
	})
}

func TestRewardService_List(t *testing.T) {
	svc, _, repo := newRewardService(t)
	ctx := context.Background()

	appendReward(t, repo, "u1", "10 K-Coins", "10", 1)
	appendReward(t, repo, "u1", "Try Again", "", 2)
	appendReward(t, repo, "u1", "50 K-Coins", "50", 3)
	appendReward(t, repo, "u1", "10 K-Coins", "10", 4)
	appendReward(t, repo, "u2", "Movie Ticket", "", 1)

	list, err := svc.List(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Rewards) != 4 || list.Rewards[0].SpinNumber != 4 {
		t.Fatalf("expected 4 rewards newest first, got %+v", list.Rewards)
	}

	sum := list.Summary
	if sum.Total != 4 {
		t.Errorf("total = %d", sum.Total)
	}
	if sum.Counts["10 K-Coins"] != 2 || sum.Counts["Try Again"] != 1 || sum.Counts["50 K-Coins"] != 1 {
		t.Errorf("unexpected counts %v", sum.Counts)
	}
	if sum.KCoins.String() != "70" {
		t.Errorf("kcoins = %s, want 70", sum.KCoins)
	}
	if sum.RedemptionValue.StringFixed(2) != "0.70" {
		t.Errorf("redemption value = %s, want 0.70", sum.RedemptionValue.StringFixed(2))
	}
	if sum.Currency != "INR" {
		t.Errorf("currency = %q", sum.Currency)
	}
}

func TestRewardService_ListErrors(t *testing.T) {
	svc, _, repo := newRewardService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, ""); !stderrors.Is(err, services.ErrLoginRequired) {
		t.Errorf("expected ErrLoginRequired, got %v", err)
	}

	repo.ListHistoryError = stderrors.New("no such table")
	if _, err := svc.List(ctx, "u1"); err == nil {
		t.Error("expected list error to propagate")
	}
}

func TestSummarize_IgnoresNonNumericValues(t *testing.T) {
	sum := services.Summarize([]models.SpinHistoryRecord{
		{Name: "Shoe Reward", Value: "voucher"},
		{Name: "10 K-Coins", Value: "10"},
	})
	if sum.KCoins.String() != "10" {
		t.Errorf("kcoins = %s", sum.KCoins)
	}

	empty := services.Summarize(nil)
	if empty.Total != 0 || !empty.KCoins.IsZero() || len(empty.Counts) != 0 {
		t.Errorf("unexpected empty summary %+v", empty)
	}
}

func TestRewardService_ClaimQR(t *testing.T) {
	svc, settings, repo := newRewardService(t)
	ctx := context.Background()
	rec := appendReward(t, repo, "u1", "Shoe Reward", "", 12)

	// base_url not configured yet
	if _, err := svc.ClaimQR(ctx, "u1", rec.ID); err != services.ErrBaseURLNotSet {
		t.Errorf("expected ErrBaseURLNotSet, got %v", err)
	}

	if err := settings.SetBaseURL(ctx, "http://wheel.local:8080/"); err != nil {
		t.Fatal(err)
	}
	png, err := svc.ClaimQR(ctx, "u1", rec.ID)
	if err != nil {
		t.Fatalf("ClaimQR failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("expected PNG data")
	}

	// another user's reward is not visible
	if _, err := svc.ClaimQR(ctx, "u2", rec.ID); !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := svc.ClaimQR(ctx, "", rec.ID); !stderrors.Is(err, services.ErrLoginRequired) {
		t.Errorf("expected ErrLoginRequired, got %v", err)
	}

	repo.GetHistoryRecordError = stderrors.New("disk I/O error")
	if _, err := svc.ClaimQR(ctx, "u1", rec.ID); err == nil || errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestRewardService_Get(t *testing.T) {
	svc, _, repo := newRewardService(t)
	ctx := context.Background()
	rec := appendReward(t, repo, "u1", "Movie Ticket", "", 5)

	got, err := svc.Get(ctx, "u1", rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Movie Ticket" || got.SpinNumber != 5 {
		t.Errorf("unexpected record %+v", got)
	}

	if _, err := svc.Get(ctx, "u1", "missing"); !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
