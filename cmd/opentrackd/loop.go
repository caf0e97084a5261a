package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ============================================================================
// Sampling loop - the pipeline orchestrator
// ============================================================================
//
// One cooperative loop owns the datagram source, the device sink, every
// smoother/mapper pair and the center detector. There are no locks: the only
// suspension point is the bounded wait for the next datagram.
//
// Cadence rules:
//   - While any bound output is still moving ("not exhausted"), poll the
//     source with a wait_seconds timeout and, on timeout, re-feed the last
//     sample so the smoothed output coasts toward it.
//   - Emissions are paced to at least min_send_interval = wait_seconds / 2.
//   - Once every bound output is exhausted (continuous axes settled,
//     edge-triggered targets sent), stop emitting and block for fresh data.
//
// ============================================================================

// samplingLoop drives pose samples through smoothing, mapping and center
// detection, and commits one device frame per cycle.
type samplingLoop struct {
	src      poseSource
	sink     eventSink
	bindings *bindingSet
	center   *centerDetector

	wait      time.Duration
	minSend   time.Duration
	pulseHold time.Duration
	settleTol float64
	debug     bool
	logger    *slog.Logger

	// snapshots receives one state frame per cycle; nil when the monitor
	// feed is disabled. Sends never block the loop.
	snapshots chan<- stateSnapshot

	current   PoseSample
	havePose  bool
	exhausted bool
	lastSent  time.Time
	cycles    uint64
}

func newSamplingLoop(src poseSource, sink eventSink, bindings *bindingSet, center *centerDetector,
	waitSeconds float64, debug bool, logger *slog.Logger, snapshots chan<- stateSnapshot) *samplingLoop {

	wait := time.Duration(waitSeconds * float64(time.Second))
	return &samplingLoop{
		src:       src,
		sink:      sink,
		bindings:  bindings,
		center:    center,
		wait:      wait,
		minSend:   wait / 2,
		pulseHold: centerPulseHoldMS * time.Millisecond,
		settleTol: settleTolerance,
		debug:     debug,
		logger:    logger,
		snapshots: snapshots,
	}
}

// run processes datagrams until ctx is canceled or the device sink fails.
// Malformed packets are dropped; any other source or sink error is fatal.
func (l *samplingLoop) run(ctx context.Context) error {
	l.logger.Info("sampling loop starting",
		"wait", l.wait, "min_send_interval", l.minSend,
		"bound_axes", len(l.bindings.axes), "center_bound", l.bindings.center != nil)

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("sampling loop stopping (context canceled)")
			return nil
		}

		// Exhausted means nothing left to emit: block for fresh data, in
		// bounded slices so cancellation is still observed.
		timeout := l.wait
		if l.exhausted || !l.havePose {
			timeout = idleBlockSliceMS * time.Millisecond
		}

		sample, ok, err := l.src.receive(timeout)
		if err != nil {
			if errors.Is(err, errBadPacket) {
				l.logger.Debug("dropping packet", "error", err)
				continue
			}
			return fmt.Errorf("pose source: %w", err)
		}
		if ok {
			l.current = sample
			l.havePose = true
			l.exhausted = false
		}
		if l.exhausted || !l.havePose {
			continue
		}

		// Pace output: never emit faster than the minimum send interval,
		// even when fresh datagrams arrive back to back.
		if remaining := l.minSend - time.Since(l.lastSent); remaining > 0 {
			time.Sleep(remaining)
		}

		if err := l.cycle(time.Now()); err != nil {
			return err
		}
	}
}

// cycle runs one full pipeline pass over the current sample.
func (l *samplingLoop) cycle(now time.Time) error {
	l.cycles++

	justCalibrated, dwellFire := l.center.observe(l.current, now)
	if justCalibrated {
		// The captured reference seeds every dead-zone target.
		for _, b := range l.bindings.axes {
			b.target.setReference(l.current.field(b.field))
		}
		l.logger.Info("center reference captured", "pose", l.current.values())
	}
	if dwellFire {
		// Skip this cycle's axis writes: moving right after recentering
		// can cause a visible jink.
		if err := l.fireCenter(); err != nil {
			return err
		}
		l.lastSent = time.Now()
		return nil
	}

	allExhausted := true
	for _, b := range l.bindings.axes {
		smoothed := b.smoother.smooth(l.current.field(b.field))
		res, err := b.target.send(l.sink, smoothed)
		if err != nil {
			return fmt.Errorf("device write (%s): %w", b.field, err)
		}
		if res.centerRelease {
			l.center.noteRelease()
		}
		if b.target.continuous() && !b.smoother.settled(l.settleTol) {
			allExhausted = false
		}
	}
	if err := l.sink.Sync(); err != nil {
		return fmt.Errorf("device sync: %w", err)
	}

	if l.center.consumeFire() {
		if err := l.fireCenter(); err != nil {
			return err
		}
	}

	l.lastSent = time.Now()
	l.exhausted = allExhausted

	l.publish(now)
	if l.debug {
		l.logger.Debug("cycle",
			"n", l.cycles,
			"pose", l.current.values(),
			"exhausted", allExhausted,
			"centered", l.center.isCentered())
	}
	return nil
}

// fireCenter emits the one-shot centering press+release. With no bound
// center target (training / pure observation) the event is advisory only.
func (l *samplingLoop) fireCenter() error {
	if l.bindings.center == nil {
		l.logger.Info("center fire (advisory, no center binding)")
		return nil
	}
	l.logger.Info("center fire", "output", l.bindings.centerIndex)
	if err := l.bindings.center.pulse(l.sink, l.pulseHold); err != nil {
		return fmt.Errorf("center fire: %w", err)
	}
	return nil
}

// publish hands a state frame to the monitor feed without ever blocking.
func (l *samplingLoop) publish(now time.Time) {
	if l.snapshots == nil {
		return
	}
	snap := stateSnapshot{
		At:         now,
		Cycle:      l.cycles,
		Pose:       l.current.values(),
		Exhausted:  l.exhausted,
		Calibrated: l.center.isCalibrated(),
		Centered:   l.center.isCentered(),
	}
	if l.center.isCalibrated() {
		snap.Reference = l.center.reference().values()
	}
	select {
	case l.snapshots <- snap:
	default:
		// Monitor consumers lagging; drop the frame.
	}
}
