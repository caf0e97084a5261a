package main

import "math"

// smoother is a per-axis single-pole IIR low-pass filter over a bounded
// window of the most recent raw values. The smaller the alpha, the more each
// previous value affects the following value, so a smaller alpha smooths
// more but settles slower.
//
// The filter pass is deliberately re-derived over the whole window on every
// call instead of being updated incrementally: when the loop re-feeds the
// last known sample during an input gap, each repeat displaces an older
// value and pulls the output further toward the held sample. That full
// recompute IS the coasting/idle-hold behavior, not an inefficiency.
//
// This is intended to be called only by the sampling loop (single-owner).
type smoother struct {
	values []float64
	alpha  float64

	output     float64
	prevOutput float64
	calls      int
}

// newSmoother creates a smoother over the last window values. A window of
// 0 or 1 yields an identity pass-through. The window seeds with zeros, so
// early output ramps up from zero rather than jumping to the first sample.
func newSmoother(window int, alpha float64) *smoother {
	if window < 0 {
		window = 0
	}
	return &smoother{
		values: make([]float64, window),
		alpha:  alpha,
	}
}

// smooth appends v to the window, evicting the oldest value, and returns the
// low-pass output of the full window.
func (s *smoother) smooth(v float64) float64 {
	s.prevOutput = s.output
	s.calls++

	if len(s.values) <= 1 {
		s.output = v
		return v
	}

	copy(s.values, s.values[1:])
	s.values[len(s.values)-1] = v

	// y[0] := alpha * x[0]; y[i] := y[i-1] + alpha * (x[i] - y[i-1])
	y := s.values[0] * s.alpha
	for _, x := range s.values[1:] {
		y += s.alpha * (x - y)
	}
	s.output = y
	return y
}

// settled reports whether the output has stopped moving: the last two
// outputs differ by less than tol. Used by the loop to decide when an axis
// is exhausted and synthetic repeats can stop.
func (s *smoother) settled(tol float64) bool {
	if s.calls < 2 {
		return false
	}
	return math.Abs(s.output-s.prevOutput) < tol
}
