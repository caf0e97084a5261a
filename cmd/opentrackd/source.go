package main

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// errBadPacket marks a malformed datagram. Datagram loss and garbage are
// expected and tolerated; the loop drops the packet and keeps going.
var errBadPacket = errors.New("malformed pose packet")

// poseSource delivers pose samples from some non-blocking datagram transport.
// receive waits up to timeout for the next sample; ok is false when the
// timeout elapsed without data. A returned error wrapping errBadPacket is
// recoverable; any other error is fatal.
type poseSource interface {
	receive(timeout time.Duration) (sample PoseSample, ok bool, err error)
	close() error
}

// udpSource listens for opentrack UDP-output packets on a raw datagram
// socket. A raw fd plus select(2) gives us a receive-with-timeout without
// fiddling with read deadlines on every call.
type udpSource struct {
	fd  int
	buf []byte
}

func newUDPSource(address string, port int) (*udpSource, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, fmt.Errorf("invalid listen address %q", address)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("listen address %q is not IPv4", address)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s:%d: %w", address, port, err)
	}

	return &udpSource{
		fd: fd,
		// Oversized packets must be detectable, so read more than one
		// packet's worth and let decodePose reject the length.
		buf: make([]byte, posePacketSize*2),
	}, nil
}

// receive waits up to timeout for a datagram and decodes it.
func (s *udpSource) receive(timeout time.Duration) (PoseSample, bool, error) {
	var fds unix.FdSet
	fds.Zero()
	fds.Set(s.fd)

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(s.fd+1, &fds, nil, nil, &tv)
	if err != nil {
		// Interrupted by a signal; report "no data" and let the loop decide.
		if err == unix.EINTR {
			return PoseSample{}, false, nil
		}
		return PoseSample{}, false, fmt.Errorf("select: %w", err)
	}
	if n == 0 {
		return PoseSample{}, false, nil
	}

	nr, _, err := unix.Recvfrom(s.fd, s.buf, 0)
	if err != nil {
		if err == unix.EINTR || err == unix.EAGAIN {
			return PoseSample{}, false, nil
		}
		return PoseSample{}, false, fmt.Errorf("recvfrom: %w", err)
	}

	sample, err := decodePose(s.buf[:nr])
	if err != nil {
		return PoseSample{}, false, err
	}
	return sample, true, nil
}

func (s *udpSource) close() error {
	return unix.Close(s.fd)
}
