// Package events publishes spin outcomes to downstream consumers such as
// reward fulfilment.
package events

import (
	"context"
	"time"
)

// TypeSpinCompleted is the event type sent after each finished spin
const TypeSpinCompleted = "spin.completed"

// SpinCompleted describes a finished spin
type SpinCompleted struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	UserID      string    `json:"user_id"`
	HistoryID   string    `json:"history_id,omitempty"`
	SegmentID   string    `json:"segment_id"`
	SegmentName string    `json:"segment_name"`
	Value       string    `json:"value,omitempty"`
	Tier        string    `json:"tier"`
	SpinNumber  int       `json:"spin_number"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher sends spin events
type Publisher interface {
	PublishSpinCompleted(ctx context.Context, e SpinCompleted) error
	Close() error
}

// Noop discards events. It is used when no brokers are configured.
type Noop struct{}

func (Noop) PublishSpinCompleted(context.Context, SpinCompleted) error { return nil }
func (Noop) Close() error                                             { return nil }
