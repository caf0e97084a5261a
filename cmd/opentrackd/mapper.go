package main

import (
	"log/slog"
	"math"
	"time"
)

// sendResult reports what one mapper send did.
type sendResult struct {
	// wrote is true when at least one device event was queued.
	wrote bool
	// centerRelease is true when an edge-triggered target returned to its
	// neutral state this cycle. The loop forwards it to the center detector;
	// there is no process-wide flag.
	centerRelease bool
}

// outputTarget cooks a smoothed axis value into device events. One instance
// per bound pose field; instances are never shared. Each variant caches the
// last quantized value it sent and suppresses redundant re-sends, except
// continuous variants, which resend every cycle because downstream consumers
// may rely on the periodic refresh.
type outputTarget interface {
	// send cooks the smoothed value and queues device events on the sink.
	send(sink eventSink, smoothed float64) (sendResult, error)
	// setReference installs the captured center pose value for this axis.
	// Dead zones are computed relative to it.
	setReference(ref float64)
	// continuous reports whether exhaustion is driven by smoother settling
	// (true) or the target is edge-triggered and exhausted once sent (false).
	continuous() bool
	// declareCaps records the device capabilities this target needs.
	declareCaps(caps *deviceCaps)
}

// pulseTarget can emit the one-shot press+release pair used for center
// firing. Only button-style targets qualify.
type pulseTarget interface {
	pulse(sink eventSink, hold time.Duration) error
}

// axisRange is the nominal source range of a pose field, used only by
// linear rescale targets.
type axisRange struct {
	min, max float64
}

// absInfo is the declared device range of an absolute axis.
type absInfo struct {
	min, max   int32
	fuzz, flat int32
}

// cookLinear rescales v from the source range into the device range.
// No clamping: input beyond the nominal source bounds produces output
// beyond the device bounds, and consumers must tolerate that.
func cookLinear(v float64, src axisRange, dev absInfo) int32 {
	scaled := (v - src.min) / (src.max - src.min) * float64(dev.max-dev.min)
	return dev.min + int32(math.Round(scaled))
}

// triState quantizes a reference-relative value into -1/0/+1 with a dead
// zone. A dead zone of 0 degenerates to the sign of the rounded value.
func triState(diff, deadZone float64) int32 {
	d := math.Round(diff)
	if math.Abs(d) < deadZone {
		return 0
	}
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	}
	return 0
}

// ----------------------------------------------------------------------------
// ContinuousAxis
// ----------------------------------------------------------------------------

// stickAxis drives one absolute joystick axis with a linear rescale.
type stickAxis struct {
	name string
	code uint16
	src  axisRange
	dev  absInfo

	last int32
}

func (a *stickAxis) send(sink eventSink, smoothed float64) (sendResult, error) {
	cooked := cookLinear(smoothed, a.src, a.dev)
	// Always resent, even when unchanged.
	if err := sink.Write(EV_ABS, a.code, cooked); err != nil {
		return sendResult{}, err
	}
	a.last = cooked
	return sendResult{wrote: true}, nil
}

func (a *stickAxis) setReference(float64) {}
func (a *stickAxis) continuous() bool     { return true }

func (a *stickAxis) declareCaps(caps *deviceCaps) {
	caps.addAbs(a.code, a.dev)
}

// ----------------------------------------------------------------------------
// Hat
// ----------------------------------------------------------------------------

// hatAxis quantizes an axis into a tri-state hat direction. Writes are
// edge-triggered: the state is only sent when it changes.
type hatAxis struct {
	name     string
	code     uint16
	deadZone float64
	ref      float64

	last int32
	sent bool
}

func (h *hatAxis) send(sink eventSink, smoothed float64) (sendResult, error) {
	state := triState(smoothed-h.ref, h.deadZone)
	if h.sent && state == h.last {
		return sendResult{}, nil
	}
	if err := sink.Write(EV_ABS, h.code, state); err != nil {
		return sendResult{}, err
	}
	release := h.sent && state == 0
	h.last = state
	h.sent = true
	return sendResult{wrote: true, centerRelease: release}, nil
}

func (h *hatAxis) setReference(ref float64) { h.ref = ref }
func (h *hatAxis) continuous() bool         { return false }

func (h *hatAxis) declareCaps(caps *deviceCaps) {
	caps.addAbs(h.code, absInfo{min: -1, max: 1})
}

// ----------------------------------------------------------------------------
// ButtonPair
// ----------------------------------------------------------------------------

// buttonPair maps the sign of an axis onto one of two mutually exclusive
// button codes. Re-sending the same (code, value) is suppressed, but a
// direction reversal while held emits a release of the old code followed by
// a fresh press of the new one, so the two codes are never down together.
type buttonPair struct {
	name     string
	posCode  uint16
	negCode  uint16
	deadZone float64
	ref      float64

	downCode uint16 // 0 when neither code is down
}

func (p *buttonPair) send(sink eventSink, smoothed float64) (sendResult, error) {
	state := triState(smoothed-p.ref, p.deadZone)

	switch {
	case state == 0:
		if p.downCode == 0 {
			return sendResult{}, nil
		}
		if err := sink.Write(EV_KEY, p.downCode, 0); err != nil {
			return sendResult{}, err
		}
		p.downCode = 0
		return sendResult{wrote: true, centerRelease: true}, nil

	default:
		code := p.posCode
		if state < 0 {
			code = p.negCode
		}
		if p.downCode == code {
			return sendResult{}, nil
		}
		if p.downCode != 0 {
			// Direction reversal: release the old code first.
			if err := sink.Write(EV_KEY, p.downCode, 0); err != nil {
				return sendResult{}, err
			}
		}
		if err := sink.Write(EV_KEY, code, 1); err != nil {
			return sendResult{}, err
		}
		p.downCode = code
		return sendResult{wrote: true}, nil
	}
}

func (p *buttonPair) setReference(ref float64) { p.ref = ref }
func (p *buttonPair) continuous() bool         { return false }

func (p *buttonPair) declareCaps(caps *deviceCaps) {
	caps.addKey(p.posCode)
	caps.addKey(p.negCode)
}

// pulse emits the synthetic center-fire press+release on the primary code.
func (p *buttonPair) pulse(sink eventSink, hold time.Duration) error {
	if err := sink.Write(EV_KEY, p.posCode, 1); err != nil {
		return err
	}
	if err := sink.Sync(); err != nil {
		return err
	}
	time.Sleep(hold)
	if err := sink.Write(EV_KEY, p.posCode, 0); err != nil {
		return err
	}
	if err := sink.Sync(); err != nil {
		return err
	}
	p.downCode = 0
	return nil
}

// ----------------------------------------------------------------------------
// TrainingDummy
// ----------------------------------------------------------------------------

// trainingDummy records sign edges without touching the device. Bind it (or
// enable training mode) to learn which pose axis is "active" while mapping
// controls inside a game, without axis noise leaking through.
type trainingDummy struct {
	name     string
	deadZone float64
	ref      float64
	logger   *slog.Logger

	last int32
	sent bool
}

func (d *trainingDummy) send(_ eventSink, smoothed float64) (sendResult, error) {
	state := triState(smoothed-d.ref, d.deadZone)
	if d.sent && state == d.last {
		return sendResult{}, nil
	}
	d.logger.Info("training edge", "axis", d.name, "state", state, "value", smoothed)
	release := d.sent && state == 0
	d.last = state
	d.sent = true
	return sendResult{centerRelease: release}, nil
}

func (d *trainingDummy) setReference(ref float64) { d.ref = ref }
func (d *trainingDummy) continuous() bool         { return false }
func (d *trainingDummy) declareCaps(*deviceCaps)  {}

func (d *trainingDummy) pulse(eventSink, time.Duration) error {
	d.logger.Info("training center fire", "axis", d.name)
	return nil
}

// ----------------------------------------------------------------------------
// Relative axis (mouse deltas)
// ----------------------------------------------------------------------------

// relAxis emits relative deltas between consecutive smoothed values, scaled
// by a sensitivity factor. Used for mouse-style REL_X/REL_Y/REL_WHEEL
// output. Zero deltas are not written.
type relAxis struct {
	name   string
	code   uint16
	scale  float64
	invert bool
	wheel  bool // quantize to ±1 per cycle (scroll wheel)

	prev float64
}

func (r *relAxis) send(sink eventSink, smoothed float64) (sendResult, error) {
	diff := r.scale * (smoothed - r.prev)
	r.prev = smoothed
	if r.invert {
		diff = -diff
	}
	// Crude wrap guard: a jump larger than a half turn is a tracker wrap,
	// not a movement.
	if math.Abs(diff) > 180.0*r.scale {
		return sendResult{}, nil
	}
	delta := int32(math.Round(diff))
	if delta == 0 {
		return sendResult{}, nil
	}
	if r.wheel {
		if delta < 0 {
			delta = -1
		} else {
			delta = 1
		}
	}
	if err := sink.Write(EV_REL, r.code, delta); err != nil {
		return sendResult{}, err
	}
	return sendResult{wrote: true}, nil
}

func (r *relAxis) setReference(float64) {}
func (r *relAxis) continuous() bool     { return true }

func (r *relAxis) declareCaps(caps *deviceCaps) {
	caps.addRel(r.code)
}
