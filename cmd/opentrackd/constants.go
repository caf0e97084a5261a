package main

// Linux input event types and codes (from <linux/input-event-codes.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_ABS = 0x03

	SYN_REPORT = 0x00

	ABS_X     = 0x00
	ABS_Y     = 0x01
	ABS_Z     = 0x02
	ABS_RX    = 0x03
	ABS_RY    = 0x04
	ABS_RZ    = 0x05
	ABS_HAT0X = 0x10
	ABS_HAT0Y = 0x11

	REL_X     = 0x00
	REL_Y     = 0x01
	REL_WHEEL = 0x08

	BTN_LEFT   = 0x110
	BTN_RIGHT  = 0x111
	BTN_MIDDLE = 0x112

	BTN_TRIGGER = 0x120

	BTN_A      = 0x130 // BTN_SOUTH
	BTN_B      = 0x131 // BTN_EAST
	BTN_X      = 0x133 // BTN_NORTH
	BTN_Y      = 0x134 // BTN_WEST
	BTN_TL     = 0x136
	BTN_TR     = 0x137
	BTN_SELECT = 0x13a
	BTN_START  = 0x13b
	BTN_MODE   = 0x13c
	BTN_THUMBL = 0x13d
	BTN_THUMBR = 0x13e
)

// uinput ioctl requests (from <linux/uinput.h>)
const (
	UI_DEV_CREATE  = 0x5501
	UI_DEV_DESTROY = 0x5502

	UI_SET_EVBIT  = 0x40045564 // _IOW('U', 100, int)
	UI_SET_KEYBIT = 0x40045565 // _IOW('U', 101, int)
	UI_SET_RELBIT = 0x40045566 // _IOW('U', 102, int)
	UI_SET_ABSBIT = 0x40045567 // _IOW('U', 103, int)
)

// Pipeline defaults
const (
	defaultListenAddress = "127.0.0.1"
	defaultListenPort    = 5005

	defaultWaitSeconds  = 0.001 // max poll interval; min send interval is half this
	defaultSmoothWindow = 100
	defaultSmoothAlpha  = 0.1
	defaultDeadZone     = 15.0
	defaultScale        = 30.0

	defaultCenterZone  = 5.0
	defaultCenterDwell = 1.0

	// Settle tolerance for the smoothed output: once two consecutive outputs
	// differ by less than this, the axis is considered exhausted and the loop
	// may stop re-feeding the last sample.
	settleTolerance = 0.1

	// Hold time between the synthetic press and release of a center fire.
	// About one mouse-click interval.
	centerPulseHoldMS = 50

	// While all outputs are exhausted the loop blocks for new data in bounded
	// slices so shutdown signals are still observed.
	idleBlockSliceMS = 250

	// Opentrack wire format: 6 little-endian float64 values per datagram.
	posePacketSize = 48
)

// Nominal opentrack source ranges: position in tracker units, angles in
// degrees. These match the ranges opentrack itself clamps its output to.
const (
	positionMin = -75.0
	positionMax = 75.0
	angleMin    = -90.0
	angleMax    = 90.0
)
