package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Monitor feed: websocket hub broadcasting per-cycle pipeline state
// ============================================================================
//
// Optional and off by default. One JSON frame per pipeline cycle lets an
// external client watch the pose stream, exhaustion and center state without
// attaching a debugger to the daemon. Slow clients are disconnected when
// their send buffer fills; the sampling loop is never blocked by this feed.
//
// ============================================================================

// stateSnapshot is one per-cycle state frame.
type stateSnapshot struct {
	At         time.Time               `json:"at"`
	Cycle      uint64                  `json:"cycle"`
	Pose       [poseFieldCount]float64 `json:"pose"`
	Reference  [poseFieldCount]float64 `json:"reference"`
	Exhausted  bool                    `json:"exhausted"`
	Calibrated bool                    `json:"calibrated"`
	Centered   bool                    `json:"centered"`
}

// envelope is the wire format for monitor messages.
type envelope struct {
	Type string    `json:"type"`
	Ts   time.Time `json:"ts"`
	Data any       `json:"data,omitempty"`
}

type monitorClient struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *monitorClient) remoteAddr() string {
	if c.conn == nil {
		return "unknown"
	}
	return c.conn.RemoteAddr().String()
}

// monitorHub tracks connected websocket clients and fans out snapshots.
type monitorHub struct {
	logger *slog.Logger

	register   chan *monitorClient
	unregister chan *monitorClient

	mu      sync.Mutex
	clients map[*monitorClient]struct{}
}

func newMonitorHub(logger *slog.Logger) *monitorHub {
	return &monitorHub{
		logger:     logger,
		register:   make(chan *monitorClient, 8),
		unregister: make(chan *monitorClient, 8),
		clients:    make(map[*monitorClient]struct{}),
	}
}

// run fans snapshots out to clients until ctx is canceled.
func (h *monitorHub) run(ctx context.Context, snapshots <-chan stateSnapshot) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("monitor client connected", "remote_addr", c.remoteAddr(), "clients", n)

		case c := <-h.unregister:
			h.drop(c, "disconnect")

		case snap := <-snapshots:
			msg, err := json.Marshal(envelope{Type: "state", Ts: snap.At, Data: snap})
			if err != nil {
				h.logger.Error("marshal snapshot", "error", err)
				continue
			}
			var slow []*monitorClient
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()
			for _, c := range slow {
				h.drop(c, "send buffer full")
			}
		}
	}
}

func (h *monitorHub) drop(c *monitorClient, reason string) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if present {
		close(c.send)
		h.logger.Info("monitor client dropped", "reason", reason, "clients", n)
	}
}

func (h *monitorHub) closeAll() {
	h.mu.Lock()
	clients := make([]*monitorClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*monitorClient]struct{})
	h.mu.Unlock()
	for _, c := range clients {
		close(c.send)
	}
}

var monitorUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is a localhost diagnostic surface.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS upgrades a connection and starts its write pump.
func (h *monitorHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := monitorUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("monitor upgrade failed", "error", err)
		return
	}
	c := &monitorClient{conn: conn, send: make(chan []byte, 32)}
	h.register <- c

	// Reader: discard inbound frames, detect close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister <- c
				return
			}
		}
	}()

	// Writer pump.
	go func() {
		defer conn.Close()
		for msg := range c.send {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister <- c
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()
}

// runMonitorServer serves the /ws endpoint until ctx is canceled.
func runMonitorServer(ctx context.Context, port int, hub *monitorHub, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.handleWS)

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("monitor feed listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("monitor server: %w", err)
	}
}
