package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/kdashto/spinwheel/internal/errors"
	"github.com/kdashto/spinwheel/internal/logger"
	"github.com/kdashto/spinwheel/internal/models"
	"github.com/kdashto/spinwheel/internal/repository"
)

// KCoinRate is the rupee value of one K-Coin
var KCoinRate = decimal.New(1, -2)

// RewardSummary aggregates a user's rewards
type RewardSummary struct {
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
	// KCoins is the sum of every reward value that parses as a number
	KCoins          decimal.Decimal `json:"kcoins"`
	RedemptionValue decimal.Decimal `json:"redemption_value"`
	Currency        string          `json:"currency"`
}

// RewardList is the "my rewards" page
type RewardList struct {
	Rewards []models.SpinHistoryRecord `json:"rewards"`
	Summary RewardSummary              `json:"summary"`
}

// RewardService serves the rewards page and reward claim codes
type RewardService struct {
	log      logger.Logger
	repo     repository.HistoryRepository
	settings SettingsServicer
}

// NewRewardService creates a new RewardService
func NewRewardService(log logger.Logger, repo repository.HistoryRepository, settings SettingsServicer) *RewardService {
	return &RewardService{log: log, repo: repo, settings: settings}
}

// List returns every reward the user won, newest first, with a summary
func (s *RewardService) List(ctx context.Context, userID string) (*RewardList, error) {
	if userID == "" {
		return nil, ErrLoginRequired
	}
	records, err := s.repo.ListHistory(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	return &RewardList{Rewards: records, Summary: Summarize(records)}, nil
}

// Summarize counts rewards by name and totals their K-Coin value
func Summarize(records []models.SpinHistoryRecord) RewardSummary {
	coins := lo.Reduce(records, func(sum decimal.Decimal, r models.SpinHistoryRecord, _ int) decimal.Decimal {
		if r.Value == "" {
			return sum
		}
		v, err := decimal.NewFromString(r.Value)
		if err != nil {
			return sum
		}
		return sum.Add(v)
	}, decimal.Zero)

	return RewardSummary{
		Total:           len(records),
		Counts:          lo.CountValuesBy(records, func(r models.SpinHistoryRecord) string { return r.Name }),
		KCoins:          coins,
		RedemptionValue: coins.Mul(KCoinRate).Round(2),
		Currency:        "INR",
	}
}

// Get returns one of the user's rewards
func (s *RewardService) Get(ctx context.Context, userID, recordID string) (*models.SpinHistoryRecord, error) {
	if userID == "" {
		return nil, ErrLoginRequired
	}
	rec, err := s.repo.GetHistoryRecord(ctx, userID, recordID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFoundf("reward %s not found", recordID)
		}
		return nil, err
	}
	return rec, nil
}

// ClaimQR returns a PNG QR code pointing at the claim page for one reward
func (s *RewardService) ClaimQR(ctx context.Context, userID, recordID string) ([]byte, error) {
	rec, err := s.Get(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}

	baseURL, err := s.settings.GetBaseURL(ctx)
	if err != nil || baseURL == "" {
		return nil, ErrBaseURLNotSet
	}
	claimURL := fmt.Sprintf("%s/rewards/%s", strings.TrimSuffix(baseURL, "/"), rec.ID)
	return qrcode.Encode(claimURL, qrcode.Medium, 256)
}
