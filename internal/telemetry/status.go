package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ReceiverStatus is one row of the broadcast snapshot: a connected
// receiver, its last-reported frame, and a loss estimate derived
// without needing an RTT measurement.
type ReceiverStatus struct {
	ReceiverID         int32   `json:"receiver_id"`
	Endpoint           string  `json:"endpoint"`
	LastReportedFrame  int32   `json:"last_reported_frame"`
	VideoRequested     bool    `json:"video_requested"`
	AudioRequested     bool    `json:"audio_requested"`
	LossPercent        float64 `json:"loss_percent"`
}

// Snapshot is broadcast to every subscriber once per heartbeat tick.
type Snapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	Receivers []ReceiverStatus `json:"receivers"`
}

// StatusFeed serves a small WebSocket endpoint broadcasting Snapshots,
// using the usual client-registration + buffered send-channel pattern
// (simplified to a single broadcast direction: this feed is read-only).
type StatusFeed struct {
	logger *log.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewStatusFeed returns an empty status feed.
func NewStatusFeed(logger *log.Logger) *StatusFeed {
	return &StatusFeed{logger: logger, clients: make(map[*wsClient]struct{})}
}

// ServeHTTP upgrades the connection and registers it as a broadcast
// subscriber until it disconnects.
func (f *StatusFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Printf("status feed upgrade failed: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 8)}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	go f.writePump(c)
	f.readUntilClose(c)
}

func (f *StatusFeed) readUntilClose(c *wsClient) {
	defer f.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *StatusFeed) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (f *StatusFeed) remove(c *wsClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
}

// Broadcast encodes snap as JSON and pushes it to every connected
// subscriber, dropping slow clients rather than blocking.
func (f *StatusFeed) Broadcast(snap Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		f.logger.Printf("status feed marshal failed: %v", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			// Slow subscriber; drop this update rather than block the
			// heartbeat loop.
		}
	}
}
