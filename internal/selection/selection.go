// Package selection decides where a spin should land before the wheel moves.
package selection

import (
	"math/rand/v2"
	"time"

	"github.com/samber/lo"

	"github.com/kdashto/spinwheel/internal/catalog"
	"github.com/kdashto/spinwheel/internal/errors"
)

// Tier identifies which rule produced a plan
type Tier string

const (
	TierGuaranteed Tier = "guaranteed"
	TierSuppressed Tier = "suppressed"
	TierNormal     Tier = "normal"
)

// Spin durations and extra full turns for aimed spins
const (
	TargetDuration        = 3500 * time.Millisecond
	ReducedTargetDuration = 900 * time.Millisecond
	ExtraRotations        = 4
	ReducedExtraRotations = 1
	ReducedBaseVelocity   = 0.35
	minBaseVelocity       = 0.5
	baseVelocitySpread    = 0.6
)

var (
	ErrCatalogInvalid = errors.Configuration("catalog is not valid")
	ErrCatalogEmpty   = errors.Configuration("catalog has no segments")
)

// Options tune the policy
type Options struct {
	// GuaranteedFrom and GuaranteedTo bound, inclusively, the spin numbers
	// that always land on a guaranteed prize.
	GuaranteedFrom  int
	GuaranteedTo    int
	GuaranteedNames []string
	ReducedMotion   bool
}

// DefaultOptions returns the production thresholds
func DefaultOptions() Options {
	return Options{
		GuaranteedFrom:  10,
		GuaranteedTo:    15,
		GuaranteedNames: []string{catalog.MovieTicket, catalog.ShoeReward},
	}
}

// Plan is what the engine needs to start a spin
type Plan struct {
	Tier           Tier          `json:"tier"`
	TargetIndex    int           `json:"target_index"` // -1 when free-spinning
	Duration       time.Duration `json:"duration"`
	ExtraRotations int           `json:"extra_rotations"`
	BaseVelocity   float64       `json:"base_velocity"`
}

// Targeted reports whether the plan aims at a specific segment
func (p Plan) Targeted() bool {
	return p.TargetIndex >= 0
}

// Random is the source of randomness used for picks and velocities
type Random interface {
	IntN(n int) int
	Float64() float64
}

type defaultRandom struct{}

func (defaultRandom) IntN(n int) int   { return rand.IntN(n) }
func (defaultRandom) Float64() float64 { return rand.Float64() }

// Policy chooses a plan for each spin
type Policy struct {
	opts Options
	rng  Random
}

// NewPolicy creates a policy. A nil rng uses math/rand.
func NewPolicy(opts Options, rng Random) *Policy {
	if rng == nil {
		rng = defaultRandom{}
	}
	return &Policy{opts: opts, rng: rng}
}

// Options returns the policy's configuration
func (p *Policy) Options() Options {
	return p.opts
}

// Choose picks the plan for the upcoming spin number (1-based). The first
// matching tier wins: guaranteed, then suppressed, then normal.
func (p *Policy) Choose(upcoming int, cat *catalog.Catalog, overrideTargetID string) (Plan, error) {
	if cat == nil || cat.Err() != nil {
		return Plan{}, ErrCatalogInvalid
	}
	if cat.Len() == 0 {
		return Plan{}, ErrCatalogEmpty
	}

	if upcoming >= p.opts.GuaranteedFrom && upcoming <= p.opts.GuaranteedTo && len(p.opts.GuaranteedNames) > 0 {
		name := p.opts.GuaranteedNames[p.rng.IntN(len(p.opts.GuaranteedNames))]
		if idx := cat.IndexOfName(name); idx >= 0 {
			return p.targeted(TierGuaranteed, idx), nil
		}
	}

	if upcoming < p.opts.GuaranteedFrom {
		pool := lo.FilterMap(cat.Segments(), func(s catalog.Segment, i int) (int, bool) {
			return i, !lo.Contains(p.opts.GuaranteedNames, s.Name)
		})
		if len(pool) > 0 {
			return p.targeted(TierSuppressed, pool[p.rng.IntN(len(pool))]), nil
		}
	}

	if overrideTargetID != "" {
		if idx := cat.IndexOfID(overrideTargetID); idx >= 0 {
			return p.targeted(TierNormal, idx), nil
		}
	}

	return Plan{
		Tier:         TierNormal,
		TargetIndex:  -1,
		BaseVelocity: p.baseVelocity(),
	}, nil
}

func (p *Policy) targeted(tier Tier, idx int) Plan {
	plan := Plan{
		Tier:           tier,
		TargetIndex:    idx,
		Duration:       TargetDuration,
		ExtraRotations: ExtraRotations,
	}
	if p.opts.ReducedMotion {
		plan.Duration = ReducedTargetDuration
		plan.ExtraRotations = ReducedExtraRotations
	}
	return plan
}

func (p *Policy) baseVelocity() float64 {
	if p.opts.ReducedMotion {
		return ReducedBaseVelocity
	}
	return minBaseVelocity + p.rng.Float64()*baseVelocitySpread
}
