package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// eventSink is the device output interface: queue individual events with
// Write, then commit them atomically as one input frame with Sync. The sink
// is owned exclusively by the sampling loop; mappers receive it per call and
// never store it.
type eventSink interface {
	Write(typ, code uint16, value int32) error
	Sync() error
	Close() error
}

// deviceCaps is the capability declaration a sink needs before it can accept
// writes: which absolute axes (with ranges), relative axes, and buttons the
// virtual device exposes.
type deviceCaps struct {
	abs  []absCap
	rel  []uint16
	keys []uint16
}

type absCap struct {
	code uint16
	info absInfo
}

func (c *deviceCaps) addAbs(code uint16, info absInfo) {
	for _, a := range c.abs {
		if a.code == code {
			return
		}
	}
	c.abs = append(c.abs, absCap{code: code, info: info})
}

func (c *deviceCaps) addRel(code uint16) {
	for _, r := range c.rel {
		if r == code {
			return
		}
	}
	c.rel = append(c.rel, code)
}

func (c *deviceCaps) addKey(code uint16) {
	for _, k := range c.keys {
		if k == code {
			return
		}
	}
	c.keys = append(c.keys, code)
}

// inputEvent mirrors struct input_event on 64-bit Linux:
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

const uinputMaxNameSize = 80
const absCnt = 0x40

// uinputUserDev mirrors struct uinput_user_dev from <linux/uinput.h>,
// written to /dev/uinput before UI_DEV_CREATE.
type uinputUserDev struct {
	Name [uinputMaxNameSize]byte
	ID   struct {
		BusType uint16
		Vendor  uint16
		Product uint16
		Version uint16
	}
	FFEffectsMax uint32
	AbsMax       [absCnt]int32
	AbsMin       [absCnt]int32
	AbsFuzz      [absCnt]int32
	AbsFlat      [absCnt]int32
}

// uinputDevice injects events into the Linux input subsystem through
// /dev/uinput. Events appear at the HID level, indistinguishable from a real
// joystick or mouse, so they work under X11, Wayland and Steam Proton alike.
type uinputDevice struct {
	f *os.File
}

// newUInputDevice declares the capability set and creates the virtual
// device. The declaration must be complete before the first write; evdev
// consumers enumerate it at create time.
func newUInputDevice(name string, caps deviceCaps) (*uinputDevice, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w (is the uinput module loaded, and do you have write access?)", err)
	}
	fd := int(f.Fd())

	fail := func(err error) (*uinputDevice, error) {
		f.Close()
		return nil, err
	}

	if len(caps.keys) > 0 {
		if err := unix.IoctlSetInt(fd, UI_SET_EVBIT, EV_KEY); err != nil {
			return fail(fmt.Errorf("UI_SET_EVBIT EV_KEY: %w", err))
		}
		for _, code := range caps.keys {
			if err := unix.IoctlSetInt(fd, UI_SET_KEYBIT, int(code)); err != nil {
				return fail(fmt.Errorf("UI_SET_KEYBIT 0x%x: %w", code, err))
			}
		}
	}
	if len(caps.abs) > 0 {
		if err := unix.IoctlSetInt(fd, UI_SET_EVBIT, EV_ABS); err != nil {
			return fail(fmt.Errorf("UI_SET_EVBIT EV_ABS: %w", err))
		}
		for _, a := range caps.abs {
			if err := unix.IoctlSetInt(fd, UI_SET_ABSBIT, int(a.code)); err != nil {
				return fail(fmt.Errorf("UI_SET_ABSBIT 0x%x: %w", a.code, err))
			}
		}
	}
	if len(caps.rel) > 0 {
		if err := unix.IoctlSetInt(fd, UI_SET_EVBIT, EV_REL); err != nil {
			return fail(fmt.Errorf("UI_SET_EVBIT EV_REL: %w", err))
		}
		for _, code := range caps.rel {
			if err := unix.IoctlSetInt(fd, UI_SET_RELBIT, int(code)); err != nil {
				return fail(fmt.Errorf("UI_SET_RELBIT 0x%x: %w", code, err))
			}
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:], name)
	dev.ID.BusType = unix.BUS_VIRTUAL
	dev.ID.Vendor = 0x045e
	dev.ID.Product = 0x028e
	dev.ID.Version = 1
	for _, a := range caps.abs {
		dev.AbsMin[a.code] = a.info.min
		dev.AbsMax[a.code] = a.info.max
		dev.AbsFuzz[a.code] = a.info.fuzz
		dev.AbsFlat[a.code] = a.info.flat
	}
	if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
		return fail(fmt.Errorf("write uinput_user_dev: %w", err))
	}

	if err := unix.IoctlSetInt(fd, UI_DEV_CREATE, 0); err != nil {
		return fail(fmt.Errorf("UI_DEV_CREATE: %w", err))
	}

	return &uinputDevice{f: f}, nil
}

// Write queues one event. It is not visible to consumers until Sync.
func (d *uinputDevice) Write(typ, code uint16, value int32) error {
	now := time.Now()
	ev := inputEvent{
		Sec:   now.Unix(),
		Usec:  int64(now.Nanosecond() / 1000),
		Type:  typ,
		Code:  code,
		Value: value,
	}
	if err := binary.Write(d.f, binary.LittleEndian, &ev); err != nil {
		return fmt.Errorf("uinput write (type=0x%x code=0x%x): %w", typ, code, err)
	}
	return nil
}

// Sync commits all queued events as one input frame.
func (d *uinputDevice) Sync() error {
	if err := d.Write(EV_SYN, SYN_REPORT, 0); err != nil {
		return fmt.Errorf("uinput sync: %w", err)
	}
	return nil
}

// Close destroys the virtual device.
func (d *uinputDevice) Close() error {
	fd := int(d.f.Fd())
	if err := unix.IoctlSetInt(fd, UI_DEV_DESTROY, 0); err != nil {
		d.f.Close()
		return fmt.Errorf("UI_DEV_DESTROY: %w", err)
	}
	return d.f.Close()
}
