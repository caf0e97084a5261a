package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// NOTE: These tests cover hub behavior (fanout + slow-client disconnection)
// without standing up a real websocket server. Clients are constructed with a
// nil websocket.Conn; the hub never writes to the conn itself.

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestMonitorHub_FanoutToAllClients tests that one snapshot reaches every
// registered client as a state envelope
func TestMonitorHub_FanoutToAllClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newMonitorHub(discardLogger())
	snapshots := make(chan stateSnapshot, 4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.run(ctx, snapshots)
	}()

	c1 := &monitorClient{send: make(chan []byte, 4)}
	c2 := &monitorClient{send: make(chan []byte, 4)}

	hub.register <- c1
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c1]
		return ok
	}, "client1 not registered in time")

	hub.register <- c2
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c2]
		return ok
	}, "client2 not registered in time")

	snapshots <- stateSnapshot{
		At:         centerT0,
		Cycle:      42,
		Pose:       [poseFieldCount]float64{0, 0, 0, 5, 0, 0},
		Calibrated: true,
		Centered:   true,
	}

	for i, c := range []*monitorClient{c1, c2} {
		select {
		case raw := <-c.send:
			var env struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("client%d: bad frame: %v", i+1, err)
			}
			if env.Type != "state" {
				t.Errorf("client%d: expected type state, got %q", i+1, env.Type)
			}
			var snap stateSnapshot
			if err := json.Unmarshal(env.Data, &snap); err != nil {
				t.Fatalf("client%d: bad snapshot payload: %v", i+1, err)
			}
			if snap.Cycle != 42 || snap.Pose[3] != 5 || !snap.Centered {
				t.Errorf("client%d: unexpected snapshot %+v", i+1, snap)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for client%d frame", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for hub to stop")
	}
}

// TestMonitorHub_SlowClientDropped tests that a client with a full send
// buffer is evicted instead of stalling the pipeline
func TestMonitorHub_SlowClientDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newMonitorHub(discardLogger())
	snapshots := make(chan stateSnapshot, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.run(ctx, snapshots)
	}()

	// Buffer of one, never drained.
	slow := &monitorClient{send: make(chan []byte, 1)}
	hub.register <- slow
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[slow]
		return ok
	}, "client not registered in time")

	// First snapshot fills the buffer, second overflows it.
	snapshots <- stateSnapshot{Cycle: 1}
	snapshots <- stateSnapshot{Cycle: 2}

	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[slow]
		return !ok
	}, "slow client not dropped in time")

	// The send channel is closed on eviction; drain proves it.
	waitUntil(t, 500*time.Millisecond, func() bool {
		select {
		case _, open := <-slow.send:
			return !open
		default:
			return false
		}
	}, "send channel not closed after eviction")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for hub to stop")
	}
}

// TestMonitorHub_UnregisterIsIdempotent tests that dropping a client twice
// does not double-close its channel
func TestMonitorHub_UnregisterIsIdempotent(t *testing.T) {
	hub := newMonitorHub(discardLogger())
	c := &monitorClient{send: make(chan []byte, 1)}

	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()

	hub.drop(c, "test")
	hub.drop(c, "test") // second drop must be a no-op
}
