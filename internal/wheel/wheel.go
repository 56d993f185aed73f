// Package wheel runs the friction-decay spin of a single wheel instance.
package wheel

import (
	"math"
	"sync"
	"time"

	"github.com/kdashto/spinwheel/internal/errors"
	"github.com/kdashto/spinwheel/internal/geometry"
	"github.com/kdashto/spinwheel/internal/selection"
)

const (
	// Friction is applied to the velocity once per frame
	Friction = 0.99
	// MinVelocity stops the spin once |v| falls to or below it
	MinVelocity = 0.0025
	// NominalFrame is the frame length velocities are expressed against
	NominalFrame = 16670 * time.Microsecond
	// SettleVelocity marks the last slow frames before a stop
	SettleVelocity = 0.02
)

// State of the wheel's spin
type State string

const (
	StateIdle     State = "idle"
	StateSpinning State = "spinning"
	StateSettling State = "settling"
)

var (
	ErrSpinInProgress = errors.Conflict("spin already in progress")
	ErrNoSegments     = errors.Configuration("wheel has no segments")
	ErrNotSpinning    = errors.Conflict("wheel is not spinning")
)

// Frame is the result of one Advance call
type Frame struct {
	Angle    float64 `json:"angle"`
	Velocity float64 `json:"velocity"`
	Pointer  int     `json:"pointer"`
	State    State   `json:"state"`
	Done     bool    `json:"done"`
	Winner   int     `json:"winner"` // valid only when Done
}

// Snapshot is a read-only copy of the wheel's state
type Snapshot struct {
	Angle    float64 `json:"angle"`
	Velocity float64 `json:"velocity"`
	State    State   `json:"state"`
	Pointer  int     `json:"pointer"`
	Winner   int     `json:"winner"` // -1 until a spin completes
	Frames   int     `json:"frames"`
}

// Wheel owns the runtime spin state for one instance
type Wheel struct {
	mu       sync.Mutex
	count    int
	angle    float64
	velocity float64
	state    State
	winner   int
	frames   int
}

// New creates an idle wheel with segmentCount wedges
func New(segmentCount int) *Wheel {
	return &Wheel{count: segmentCount, state: StateIdle, winner: -1}
}

// Start begins a spin according to plan
func (w *Wheel) Start(plan selection.Plan) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateIdle {
		return ErrSpinInProgress
	}
	if w.count < 1 {
		return ErrNoSegments
	}

	v := plan.BaseVelocity
	if plan.Targeted() {
		delta := geometry.DeterministicDelta(geometry.DeltaParams{
			CurrentAngle:   w.angle,
			TargetIndex:    plan.TargetIndex,
			SegmentCount:   w.count,
			ExtraRotations: plan.ExtraRotations,
		})
		frames := float64(plan.Duration) / float64(NominalFrame)
		if frames < 1 {
			frames = 1
		}
		v = delta / frames
	}

	w.velocity = v
	w.state = StateSpinning
	w.winner = -1
	w.frames = 0
	return nil
}

// Advance moves the wheel forward by elapsed time. When the velocity has
// decayed to MinVelocity the spin stops and the winner is read from the
// final angle.
func (w *Wheel) Advance(elapsed time.Duration) Frame {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateIdle {
		return w.frameLocked(false)
	}

	if math.Abs(w.velocity) <= MinVelocity {
		w.velocity = 0
		w.state = StateIdle
		w.winner = geometry.SegmentIndexForAngle(w.angle, w.count)
		return w.frameLocked(true)
	}

	if elapsed < 0 {
		elapsed = 0
	}
	w.velocity *= Friction
	w.angle += w.velocity * (float64(elapsed) / float64(NominalFrame))
	w.frames++

	if math.Abs(w.velocity) < SettleVelocity {
		w.state = StateSettling
	}
	return w.frameLocked(false)
}

func (w *Wheel) frameLocked(done bool) Frame {
	f := Frame{
		Angle:    w.angle,
		Velocity: w.velocity,
		Pointer:  geometry.SegmentIndexForAngle(w.angle, w.count),
		State:    w.state,
		Done:     done,
		Winner:   -1,
	}
	if done {
		f.Winner = w.winner
	}
	return f
}

// Cancel aborts a running spin without producing a winner
func (w *Wheel) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateIdle {
		return false
	}
	w.velocity = 0
	w.state = StateIdle
	w.winner = -1
	return true
}

// Nudge rotates an idle wheel by an eighth of a wedge in the sign of
// direction. It reports whether the wheel moved.
func (w *Wheel) Nudge(direction int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateIdle || w.count < 1 || direction == 0 {
		return false
	}
	step := geometry.SegmentWidth(w.count) / 8
	if direction < 0 {
		step = -step
	}
	w.angle += step
	return true
}

// Spinning reports whether a spin is running
func (w *Wheel) Spinning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state != StateIdle
}

func (w *Wheel) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		Angle:    w.angle,
		Velocity: w.velocity,
		State:    w.state,
		Pointer:  geometry.SegmentIndexForAngle(w.angle, w.count),
		Winner:   w.winner,
		Frames:   w.frames,
	}
}
