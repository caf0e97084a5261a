// otsend is a test pose sender for opentrackd. It emits the same 48-byte
// UDP datagrams opentrack's "UDP over network" output produces (6 little-
// endian doubles: x, y, z, yaw, pitch, roll), either as a fixed pose or as
// a sine sweep, so the daemon can be exercised without a tracker attached.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var (
		addr  = flag.String("addr", "127.0.0.1:5005", "opentrackd UDP address")
		rate  = flag.Int("rate", 120, "Datagrams per second")
		count = flag.Int("count", 0, "Stop after this many datagrams (0 = run until Ctrl+C)")

		x     = flag.Float64("x", 0, "Fixed x offset, cm")
		y     = flag.Float64("y", 0, "Fixed y offset, cm")
		z     = flag.Float64("z", 0, "Fixed z offset, cm")
		yaw   = flag.Float64("yaw", 0, "Fixed yaw, degrees")
		pitch = flag.Float64("pitch", 0, "Fixed pitch, degrees")
		roll  = flag.Float64("roll", 0, "Fixed roll, degrees")

		sweep     = flag.Bool("sweep", false, "Sine-sweep yaw and pitch instead of holding a fixed pose")
		amplitude = flag.Float64("amplitude", 45, "Sweep amplitude, degrees")
		period    = flag.Float64("period", 4, "Sweep period, seconds")

		truncate = flag.Bool("truncate", false, "Send a short (malformed) datagram each second, for drop testing")
	)
	flag.Parse()

	if *rate <= 0 {
		log.Fatalf("rate must be > 0")
	}
	if *period <= 0 {
		log.Fatalf("period must be > 0")
	}

	raddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		log.Fatalf("invalid address %q: %v", *addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		log.Fatalf("failed to dial %s: %v", *addr, err)
	}
	defer conn.Close()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	interval := time.Second / time.Duration(*rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("sending to %s at %d Hz (press Ctrl+C to stop)", *addr, *rate)

	buf := make([]byte, 48)
	start := time.Now()
	sent := 0
	lastRunt := start

	for {
		select {
		case <-sigc:
			log.Printf("stopping after %d datagrams", sent)
			return
		case now := <-ticker.C:
			pose := [6]float64{*x, *y, *z, *yaw, *pitch, *roll}
			if *sweep {
				phase := 2 * math.Pi * now.Sub(start).Seconds() / *period
				pose[3] = *amplitude * math.Sin(phase)
				pose[4] = *amplitude * math.Cos(phase)
			}
			for i, v := range pose {
				binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
			}
			if _, err := conn.Write(buf); err != nil {
				log.Fatalf("send failed: %v", err)
			}
			sent++

			if *truncate && now.Sub(lastRunt) >= time.Second {
				if _, err := conn.Write(buf[:20]); err != nil {
					log.Fatalf("send failed: %v", err)
				}
				lastRunt = now
			}

			if *count > 0 && sent >= *count {
				log.Printf("sent %d datagrams", sent)
				return
			}
		}
	}
}
