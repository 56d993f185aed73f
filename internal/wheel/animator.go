package wheel

import (
	"context"
	"time"
)

// DefaultFrameRate is the display cadence the Animator ticks at
const DefaultFrameRate = 60

// Clock supplies the time used to measure frame gaps
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Driver runs a started wheel to completion, calling onFrame for each frame.
// It returns the final frame, or ctx.Err() if cancelled first.
type Driver interface {
	Run(ctx context.Context, w *Wheel, onFrame func(Frame)) (Frame, error)
}

// Animator drives a wheel from a ticker at display cadence
type Animator struct {
	clock    Clock
	interval time.Duration
}

var _ Driver = (*Animator)(nil)

// NewAnimator creates an animator ticking frameRate times per second.
// A nil clock uses the wall clock.
func NewAnimator(clock Clock, frameRate int) *Animator {
	if clock == nil {
		clock = systemClock{}
	}
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Animator{clock: clock, interval: time.Second / time.Duration(frameRate)}
}

func (a *Animator) Run(ctx context.Context, w *Wheel, onFrame func(Frame)) (Frame, error) {
	if !w.Spinning() {
		return Frame{Winner: -1, State: StateIdle}, ErrNotSpinning
	}
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	// the first frame has no previous timestamp and so no elapsed time
	last := a.clock.Now()
	frame := w.Advance(0)
	if onFrame != nil {
		onFrame(frame)
	}

	for !frame.Done {
		select {
		case <-ctx.Done():
			w.Cancel()
			return frame, ctx.Err()
		case <-ticker.C:
			now := a.clock.Now()
			frame = w.Advance(now.Sub(last))
			last = now
			if interrupted(frame) {
				return frame, ErrNotSpinning
			}
			if onFrame != nil {
				onFrame(frame)
			}
		}
	}
	return frame, nil
}

// StepAnimator advances a wheel synchronously with a fixed frame gap
type StepAnimator struct {
	Elapsed   time.Duration
	MaxFrames int
}

var _ Driver = (*StepAnimator)(nil)

// NewStepAnimator returns a step animator using NominalFrame gaps
func NewStepAnimator() *StepAnimator {
	return &StepAnimator{Elapsed: NominalFrame, MaxFrames: 100000}
}

func (s *StepAnimator) Run(ctx context.Context, w *Wheel, onFrame func(Frame)) (Frame, error) {
	if !w.Spinning() {
		return Frame{Winner: -1, State: StateIdle}, ErrNotSpinning
	}
	frame := w.Advance(0)
	if onFrame != nil {
		onFrame(frame)
	}

	for n := 0; !frame.Done; n++ {
		if err := ctx.Err(); err != nil {
			w.Cancel()
			return frame, err
		}
		if s.MaxFrames > 0 && n >= s.MaxFrames {
			w.Cancel()
			return frame, context.DeadlineExceeded
		}
		frame = w.Advance(s.Elapsed)
		if interrupted(frame) {
			return frame, ErrNotSpinning
		}
		if onFrame != nil {
			onFrame(frame)
		}
	}
	return frame, nil
}

// interrupted reports a wheel that went idle without finishing, which
// happens when another goroutine calls Cancel
func interrupted(f Frame) bool {
	return !f.Done && f.State == StateIdle
}
