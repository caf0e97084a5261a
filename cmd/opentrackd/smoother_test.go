package main

import (
	"math"
	"testing"
)

// TestSmoother_PassThrough tests that a window of 0 or 1 disables smoothing
func TestSmoother_PassThrough(t *testing.T) {
	for _, window := range []int{0, 1} {
		s := newSmoother(window, 0.1)
		for _, v := range []float64{0, 5, -12.5, 90} {
			got := s.smooth(v)
			if got != v {
				t.Errorf("window=%d: expected pass-through of %v, got %v", window, v, got)
			}
		}
	}
}

// TestSmoother_RampsFromZero tests that the zero-seeded window ramps the
// output up from zero instead of jumping to the first sample
func TestSmoother_RampsFromZero(t *testing.T) {
	s := newSmoother(10, 0.1)

	first := s.smooth(50)
	if first >= 50 {
		t.Errorf("expected first output well below the input, got %v", first)
	}
	if first < 0 {
		t.Errorf("expected first output >= 0, got %v", first)
	}
}

// TestSmoother_MonotoneConvergence tests that repeated identical input pulls
// the output monotonically toward it without ever overshooting
func TestSmoother_MonotoneConvergence(t *testing.T) {
	const target = 5.0
	s := newSmoother(100, 0.1)

	prev := s.smooth(target)
	for i := 0; i < 299; i++ {
		out := s.smooth(target)
		if out < prev {
			t.Fatalf("output regressed at call %d: %v -> %v", i+2, prev, out)
		}
		if out > target {
			t.Fatalf("output overshot target at call %d: %v", i+2, out)
		}
		prev = out
	}

	if math.Abs(prev-target) > 0.001 {
		t.Errorf("expected output to converge near %v, got %v", target, prev)
	}
}

// TestSmoother_NegativeConvergence tests convergence toward a negative value
func TestSmoother_NegativeConvergence(t *testing.T) {
	s := newSmoother(50, 0.2)

	var out float64
	for i := 0; i < 200; i++ {
		out = s.smooth(-30)
	}
	if math.Abs(out-(-30)) > 0.001 {
		t.Errorf("expected output near -30, got %v", out)
	}
}

// TestSmoother_Settled tests the exhaustion criterion
func TestSmoother_Settled(t *testing.T) {
	s := newSmoother(20, 0.1)

	if s.settled(0.1) {
		t.Error("expected settled=false before any call")
	}
	s.smooth(40)
	if s.settled(0.1) {
		t.Error("expected settled=false after one call")
	}

	// Early in the ramp the output still moves more than the tolerance.
	s.smooth(40)
	if s.settled(0.1) {
		t.Error("expected settled=false while output is still moving")
	}

	// After enough repeats the output stops moving.
	for i := 0; i < 500; i++ {
		s.smooth(40)
	}
	if !s.settled(0.1) {
		t.Error("expected settled=true after convergence")
	}

	// A fresh value unsettles it again.
	s.smooth(-40)
	if s.settled(0.1) {
		t.Error("expected settled=false after a step change")
	}
}

// TestSmoother_PassThroughAlwaysMoves tests that a pass-through smoother
// reports settled only when the input itself repeats
func TestSmoother_PassThroughAlwaysMoves(t *testing.T) {
	s := newSmoother(0, 0.1)

	s.smooth(1)
	s.smooth(2)
	if s.settled(0.1) {
		t.Error("expected settled=false while input changes")
	}
	s.smooth(2)
	if !s.settled(0.1) {
		t.Error("expected settled=true when input repeats")
	}
}
