// Package eligibility decides whether a user may spin and formats the
// remaining cooldown.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/kdashto/spinwheel/internal/models"
)

// DefaultCooldown is the minimum time between two spins by the same user
const DefaultCooldown = 24 * time.Hour

// Reason explains why a spin is not allowed
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonLoginRequired Reason = "login_required"
	ReasonCooldown      Reason = "cooldown"
)

// Status is the result of an eligibility check
type Status struct {
	Allowed   bool          `json:"allowed"`
	Reason    Reason        `json:"reason,omitempty"`
	Remaining time.Duration `json:"remaining"`
	WaitTime  string        `json:"wait_time,omitempty"`
}

// Check evaluates whether userID may spin at now
func Check(userID string, meta models.SpinMeta, now time.Time, window time.Duration) Status {
	if userID == "" {
		return Status{Reason: ReasonLoginRequired}
	}
	if meta.LastSpinTime == nil {
		return Status{Allowed: true}
	}

	elapsed := now.Sub(*meta.LastSpinTime)
	if elapsed >= window {
		return Status{Allowed: true}
	}

	remaining := window - elapsed
	return Status{
		Reason:    ReasonCooldown,
		Remaining: remaining,
		WaitTime:  FormatCountdown(remaining),
	}
}

// FormatCountdown renders d as "Hh Mm Ss", flooring each unit
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// Countdown recomputes eligibility on a fixed interval until the user may
// spin again.
type Countdown struct {
	Clock    Clock
	Window   time.Duration
	Interval time.Duration
}

// NewCountdown returns a once-per-second countdown over window
func NewCountdown(clock Clock, window time.Duration) *Countdown {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Countdown{Clock: clock, Window: window, Interval: time.Second}
}

// Run calls onTick immediately and then on every interval. It returns after
// reporting an allowed status, or when ctx is cancelled.
func (c *Countdown) Run(ctx context.Context, userID string, meta models.SpinMeta, onTick func(Status)) {
	status := Check(userID, meta, c.Clock.Now(), c.Window)
	onTick(status)
	if status.Allowed || status.Reason == ReasonLoginRequired {
		return
	}

	interval := c.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status = Check(userID, meta, c.Clock.Now(), c.Window)
			onTick(status)
			if status.Allowed {
				return
			}
		}
	}
}
