// Package geometry maps wheel rotation angles to segments and computes the
// rotation needed to land on a chosen segment.
package geometry

import "math"

// Tau is one full turn in radians
const Tau = 2 * math.Pi

// NormalizeAngle wraps angle into [0, Tau). NaN and infinities map to 0.
func NormalizeAngle(angle float64) float64 {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0
	}
	a := math.Mod(angle, Tau)
	if a < 0 {
		a += Tau
	}
	// a tiny negative remainder plus Tau can round up to exactly Tau
	if a >= Tau {
		a = 0
	}
	return a
}

// SegmentWidth returns the angular width of one of segmentCount equal wedges
func SegmentWidth(segmentCount int) float64 {
	if segmentCount < 1 {
		return 0
	}
	return Tau / float64(segmentCount)
}

// SegmentIndexForAngle returns the index of the segment under the pointer
// for an absolute wheel rotation. Wedge i covers [i*w, (i+1)*w).
// It returns -1 when there are no segments.
func SegmentIndexForAngle(angle float64, segmentCount int) int {
	if segmentCount < 1 {
		return -1
	}
	idx := int(math.Floor(NormalizeAngle(angle) / SegmentWidth(segmentCount)))
	if idx >= segmentCount {
		idx = segmentCount - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// DeltaParams describes an aimed spin
type DeltaParams struct {
	CurrentAngle   float64
	TargetIndex    int
	SegmentCount   int
	ExtraRotations int
}

// DeterministicDelta returns the extra rotation that brings CurrentAngle to the
// middle of the target wedge after ExtraRotations full turns. Aiming at the
// middle keeps the re-derived index exact at wedge boundaries.
func DeterministicDelta(p DeltaParams) float64 {
	if p.SegmentCount < 1 || p.TargetIndex < 0 || p.TargetIndex >= p.SegmentCount {
		return 0
	}
	width := SegmentWidth(p.SegmentCount)
	mid := (float64(p.TargetIndex) + 0.5) * width

	base := mid - NormalizeAngle(p.CurrentAngle)
	if base < 0 {
		base += Tau
	}

	extra := p.ExtraRotations
	if extra < 0 {
		extra = 0
	}
	return base + float64(extra)*Tau
}
