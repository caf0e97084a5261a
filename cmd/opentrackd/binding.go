package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Output catalog indices, fixed at startup. 0 discards the axis.
//
//	1-6   absolute stick axes (RX RY RZ X Y Z)
//	7-8   hats (HAT0X HAT0Y)
//	9-12  button pairs (A/B, X/Y, TL/TR, SELECT/START)
//	13    training dummy
//	14-16 relative mouse outputs (X, Y inverted, wheel)
const (
	outputDiscard = 0
	outputMax     = 16
)

// sourceRangeFor returns the nominal opentrack range for a pose field.
// Position axes span ±75 units, angle axes ±90 degrees.
func sourceRangeFor(f poseField) axisRange {
	if f <= fieldZ {
		return axisRange{min: positionMin, max: positionMax}
	}
	return axisRange{min: angleMin, max: angleMax}
}

// axisBinding couples one pose field with its own smoother and output
// target. Smoothers and targets are never shared between fields.
type axisBinding struct {
	field    poseField
	smoother *smoother
	target   outputTarget
}

// bindingSet is the full validated binding table: up to six driven axes and
// an optional center-fire target that is not driven by any pose field.
type bindingSet struct {
	axes []*axisBinding

	center      pulseTarget
	centerIndex int
}

// mappingParams carries the knobs the catalog needs to construct targets.
type mappingParams struct {
	window   int
	alpha    float64
	deadZone float64
	scale    float64
	training bool
	logger   *slog.Logger
}

// parseBindingCSV splits a binding string like "9,0,1,4,5,0,12" into the six
// per-field output indices plus the optional seventh center-fire index.
func parseBindingCSV(s string) (fields [poseFieldCount]int, center int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != poseFieldCount && len(parts) != poseFieldCount+1 {
		return fields, 0, fmt.Errorf("bindings %q: want %d or %d comma-separated indices, got %d",
			s, poseFieldCount, poseFieldCount+1, len(parts))
	}
	for i, p := range parts {
		idx, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil {
			return fields, 0, fmt.Errorf("bindings %q: field %d: %v", s, i, convErr)
		}
		if idx < outputDiscard || idx > outputMax {
			return fields, 0, fmt.Errorf("bindings %q: field %d: output index %d out of range 0..%d",
				s, i, idx, outputMax)
		}
		if i < poseFieldCount {
			fields[i] = idx
		} else {
			center = idx
		}
	}
	return fields, center, nil
}

// newOutputTarget constructs a fresh target for one catalog index.
func newOutputTarget(idx int, name string, p mappingParams) (outputTarget, error) {
	src := axisRange{min: angleMin, max: angleMax} // placeholder for center binding
	if f, err := poseFieldByName(name); err == nil {
		src = sourceRangeFor(f)
	}

	wideAbs := absInfo{min: -32767, max: 32767, fuzz: 16, flat: 128}
	byteAbs := absInfo{min: 0, max: 255}

	switch idx {
	case 1:
		return &stickAxis{name: name, code: ABS_RX, src: src, dev: wideAbs}, nil
	case 2:
		return &stickAxis{name: name, code: ABS_RY, src: src, dev: wideAbs}, nil
	case 3:
		return &stickAxis{name: name, code: ABS_RZ, src: src, dev: byteAbs}, nil
	case 4:
		return &stickAxis{name: name, code: ABS_X, src: src, dev: wideAbs}, nil
	case 5:
		return &stickAxis{name: name, code: ABS_Y, src: src, dev: wideAbs}, nil
	case 6:
		return &stickAxis{name: name, code: ABS_Z, src: src, dev: byteAbs}, nil
	case 7:
		return &hatAxis{name: name, code: ABS_HAT0X, deadZone: p.deadZone}, nil
	case 8:
		return &hatAxis{name: name, code: ABS_HAT0Y, deadZone: p.deadZone}, nil
	case 9:
		return &buttonPair{name: name, posCode: BTN_A, negCode: BTN_B, deadZone: p.deadZone}, nil
	case 10:
		return &buttonPair{name: name, posCode: BTN_X, negCode: BTN_Y, deadZone: p.deadZone}, nil
	case 11:
		return &buttonPair{name: name, posCode: BTN_TL, negCode: BTN_TR, deadZone: p.deadZone}, nil
	case 12:
		return &buttonPair{name: name, posCode: BTN_SELECT, negCode: BTN_START, deadZone: p.deadZone}, nil
	case 13:
		return &trainingDummy{name: name, deadZone: p.deadZone, logger: p.logger}, nil
	case 14:
		return &relAxis{name: name, code: REL_X, scale: p.scale}, nil
	case 15:
		// Screen Y grows downward; looking up must move the pointer up.
		return &relAxis{name: name, code: REL_Y, scale: p.scale, invert: true}, nil
	case 16:
		return &relAxis{name: name, code: REL_WHEEL, scale: p.scale / 3, wheel: true}, nil
	}
	return nil, fmt.Errorf("output index %d out of range 0..%d", idx, outputMax)
}

// buildBindings turns the binding CSV into a validated table. Each bound
// field gets its own smoother and target instance. In training mode every
// target is replaced with a training dummy so nothing reaches the device.
func buildBindings(csv string, p mappingParams) (*bindingSet, error) {
	fields, centerIdx, err := parseBindingCSV(csv)
	if err != nil {
		return nil, err
	}

	set := &bindingSet{centerIndex: centerIdx}
	for i, idx := range fields {
		if idx == outputDiscard {
			continue
		}
		f := poseField(i)
		target, err := newOutputTarget(idx, f.String(), p)
		if err != nil {
			return nil, fmt.Errorf("axis %s: %w", f, err)
		}
		if p.training {
			target = &trainingDummy{name: f.String(), deadZone: p.deadZone, logger: p.logger}
		}
		set.axes = append(set.axes, &axisBinding{
			field:    f,
			smoother: newSmoother(p.window, p.alpha),
			target:   target,
		})
	}

	if centerIdx != outputDiscard {
		target, err := newOutputTarget(centerIdx, "center", p)
		if err != nil {
			return nil, fmt.Errorf("center binding: %w", err)
		}
		if p.training {
			target = &trainingDummy{name: "center", deadZone: p.deadZone, logger: p.logger}
		}
		pt, ok := target.(pulseTarget)
		if !ok {
			return nil, fmt.Errorf("center binding: output index %d cannot emit a press+release pair (bind a button pair)", centerIdx)
		}
		set.center = pt
	}

	return set, nil
}

// capabilities collects every device capability the binding set needs. The
// fixed gamepad button block is always declared alongside absolute axes so
// the kernel identifies the device as a joystick; relative outputs get the
// mouse buttons for the same reason.
func (b *bindingSet) capabilities() deviceCaps {
	var caps deviceCaps
	for _, ab := range b.axes {
		ab.target.declareCaps(&caps)
	}
	if b.center != nil {
		if t, ok := b.center.(outputTarget); ok {
			t.declareCaps(&caps)
		}
	}

	if len(caps.abs) > 0 {
		for _, code := range []uint16{
			BTN_A, BTN_B, BTN_X, BTN_Y,
			BTN_TL, BTN_TR, BTN_SELECT, BTN_START,
			BTN_MODE, BTN_THUMBL, BTN_THUMBR, BTN_TRIGGER,
		} {
			caps.addKey(code)
		}
	}
	if len(caps.rel) > 0 {
		for _, code := range []uint16{BTN_LEFT, BTN_RIGHT, BTN_MIDDLE} {
			caps.addKey(code)
		}
	}
	return caps
}
