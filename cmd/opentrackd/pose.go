package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PoseSample is one opentrack reading: head position plus orientation.
// Position is in tracker distance units, angles are in degrees.
// Immutable once decoded; samples have no identity beyond arrival order.
type PoseSample struct {
	X     float64
	Y     float64
	Z     float64
	Yaw   float64
	Pitch float64
	Roll  float64
}

// poseField indexes one of the six pose scalars, in wire order.
type poseField int

const (
	fieldX poseField = iota
	fieldY
	fieldZ
	fieldYaw
	fieldPitch
	fieldRoll

	poseFieldCount = 6
)

var poseFieldNames = [poseFieldCount]string{"x", "y", "z", "yaw", "pitch", "roll"}

func (f poseField) String() string {
	if f < 0 || int(f) >= poseFieldCount {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return poseFieldNames[f]
}

// poseFieldByName resolves a config axis name to its field index.
func poseFieldByName(name string) (poseField, error) {
	for i, n := range poseFieldNames {
		if n == name {
			return poseField(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pose axis %q", name)
}

func (s PoseSample) field(f poseField) float64 {
	switch f {
	case fieldX:
		return s.X
	case fieldY:
		return s.Y
	case fieldZ:
		return s.Z
	case fieldYaw:
		return s.Yaw
	case fieldPitch:
		return s.Pitch
	case fieldRoll:
		return s.Roll
	}
	return 0
}

func (s PoseSample) values() [poseFieldCount]float64 {
	return [poseFieldCount]float64{s.X, s.Y, s.Z, s.Yaw, s.Pitch, s.Roll}
}

// decodePose unpacks one opentrack datagram: exactly 6 little-endian doubles
// in x, y, z, yaw, pitch, roll order. Anything that is not exactly 48 bytes
// is a protocol error; the caller drops it and keeps listening.
func decodePose(data []byte) (PoseSample, error) {
	if len(data) != posePacketSize {
		return PoseSample{}, fmt.Errorf("%w: got %d bytes, want %d", errBadPacket, len(data), posePacketSize)
	}
	var s PoseSample
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &s); err != nil {
		return PoseSample{}, fmt.Errorf("%w: %v", errBadPacket, err)
	}
	return s, nil
}
