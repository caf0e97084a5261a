package main

import (
	"time"
)

// centerPolicy selects what triggers the one-shot centering action.
//
// - dwell: fire when every monitored axis has stayed within the zone for the
//   dwell duration after having been off center.
// - release: fire when a hat or button-pair target releases back to its
//   neutral state.
//
// Exactly one policy is active; the two triggers are never mixed, so the
// detector cannot double-fire.
type centerPolicy string

const (
	centerPolicyDwell   centerPolicy = "dwell"
	centerPolicyRelease centerPolicy = "release"
)

// centerDetector watches the raw pose stream for re-centering. The reference
// pose is captured from the first sample ever observed, on the assumption
// the user is stationary and centered at startup, and is never recalculated.
//
// Owned by the sampling loop; the "fire needed" flag lives here, not in a
// package-level variable.
type centerDetector struct {
	zone   float64
	dwell  time.Duration
	policy centerPolicy
	fields []poseField

	ref        PoseSample
	calibrated bool

	centered  bool
	enteredAt time.Time // zero = not yet (re-)entered the zone
	pending   bool      // release-policy fire request
}

func newCenterDetector(zone, dwellSeconds float64, policy centerPolicy, fields []poseField) *centerDetector {
	return &centerDetector{
		zone:   zone,
		dwell:  time.Duration(dwellSeconds * float64(time.Second)),
		policy: policy,
		fields: fields,
	}
}

// observe advances the state machine with one raw sample. calibrated is true
// exactly once, on the first sample, when the reference pose is captured.
// fire is true when the dwell policy decides a centering action is due.
func (d *centerDetector) observe(s PoseSample, now time.Time) (calibrated, fire bool) {
	if !d.calibrated {
		d.ref = s
		d.calibrated = true
		d.centered = true
		return true, false
	}
	if d.zone <= 0 {
		return false, false
	}

	for _, f := range d.fields {
		diff := s.field(f) - d.ref.field(f)
		if diff <= -d.zone || diff >= d.zone {
			d.centered = false
			d.enteredAt = time.Time{}
			return false, false
		}
	}

	if d.centered {
		// Still centered since the last fire (or since startup); nothing to do.
		return false, false
	}
	if d.enteredAt.IsZero() {
		d.enteredAt = now
		return false, false
	}
	if now.Sub(d.enteredAt) < d.dwell {
		// Waiting to see if we stay in the center long enough.
		return false, false
	}

	d.centered = true
	d.enteredAt = time.Time{}
	return false, d.policy == centerPolicyDwell
}

// noteRelease records a hat/button release-to-neutral edge. Only the release
// policy acts on it.
func (d *centerDetector) noteRelease() {
	if d.policy == centerPolicyRelease && d.calibrated {
		d.pending = true
	}
}

// consumeFire returns and clears the release-policy fire request.
func (d *centerDetector) consumeFire() bool {
	fire := d.pending
	d.pending = false
	return fire
}

func (d *centerDetector) reference() PoseSample { return d.ref }
func (d *centerDetector) isCalibrated() bool    { return d.calibrated }
func (d *centerDetector) isCentered() bool      { return d.centered }
