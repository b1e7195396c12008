// Package sender implements the capture-host side of the transport: the
// receiver registry and session control, sender storage and
// retransmission, and the adaptive bitrate/keyframe controller.
package sender

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HeartbeatInterval is how often the sender pings every registered
// receiver, and the cadence it expects receiver heartbeats at.
const HeartbeatInterval = 1 * time.Second

// HeartbeatTimeout is how long a receiver may go silent before its
// registry entry is evicted.
const HeartbeatTimeout = 10 * time.Second

// ReceiverEntry is one connected receiver's session state, grounded on
// the RemoteReceiver shape of the original sender-side storage.
type ReceiverEntry struct {
	Endpoint             net.Addr
	ReceiverID           int32
	VideoRequested       bool
	AudioRequested       bool
	LastReportedFrameID  int32
	HasReportedFrame     bool
	LastPacketTime       time.Time

	// CorrelationID never crosses the wire; it is assigned once when the
	// entry is created, survives reconnects, and is printed on the
	// timeout-eviction log line.
	CorrelationID uuid.UUID
}

// Registry tracks every currently-connected receiver, keyed by
// receiver_id. It is the sender-side half of session control, keyed by
// the wire receiver_id rather than a session-assigned string.
type Registry struct {
	mu      sync.RWMutex
	entries map[int32]*ReceiverEntry
}

// NewRegistry returns an empty receiver registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int32]*ReceiverEntry)}
}

// Connect processes a Connect packet from endpoint addr. It returns the
// entry (existing or newly created) and whether the entry was newly
// created. A Confirm must be sent unconditionally by the caller on
// every Connect, new or repeat.
func (r *Registry) Connect(receiverID int32, addr net.Addr, videoRequested, audioRequested bool) (entry *ReceiverEntry, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[receiverID]; ok {
		e.Endpoint = addr
		e.VideoRequested = videoRequested
		e.AudioRequested = audioRequested
		e.LastPacketTime = time.Now()
		return e, false
	}

	e := &ReceiverEntry{
		Endpoint:       addr,
		ReceiverID:     receiverID,
		VideoRequested: videoRequested,
		AudioRequested: audioRequested,
		LastPacketTime: time.Now(),
		CorrelationID:  uuid.New(),
	}
	r.entries[receiverID] = e
	return e, true
}

// Touch updates the last-heard time for a known receiver. It is a
// no-op if the receiver isn't registered.
func (r *Registry) Touch(receiverID int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[receiverID]; ok {
		e.LastPacketTime = time.Now()
	}
}

// ReportFrame applies a Report's frame id to the named receiver,
// enforcing monotonicity: reports naming a frame id at or below the
// current high-water mark are ignored.
func (r *Registry) ReportFrame(receiverID, frameID int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[receiverID]
	if !ok {
		return
	}
	if !e.HasReportedFrame || frameID > e.LastReportedFrameID {
		e.LastReportedFrameID = frameID
		e.HasReportedFrame = true
	}
}

// Get returns a snapshot copy of the named entry, or false if unknown.
func (r *Registry) Get(receiverID int32) (ReceiverEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[receiverID]
	if !ok {
		return ReceiverEntry{}, false
	}
	return *e, true
}

// Snapshot returns a copy of every registered entry, for heartbeats and
// telemetry.
func (r *Registry) Snapshot() []ReceiverEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ReceiverEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

// EvictTimedOut removes every entry whose last-heard time exceeds
// timeout as of now, returning the evicted entries so the caller can
// log/clean up sender storage consistently. Callers pass HeartbeatTimeout
// unless Config.HeartbeatTimeoutMs overrides it.
func (r *Registry) EvictTimedOut(now time.Time, timeout time.Duration) []ReceiverEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []ReceiverEntry
	for id, e := range r.entries {
		if now.Sub(e.LastPacketTime) > timeout {
			evicted = append(evicted, *e)
			delete(r.entries, id)
		}
	}
	return evicted
}

// EvictEndpoint removes whichever entry currently owns addr, for use
// when a send to that endpoint returns a terminal error. Returns
// whether an entry was found and removed.
func (r *Registry) EvictEndpoint(addr net.Addr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := addr.String()
	for id, e := range r.entries {
		if e.Endpoint.String() == target {
			delete(r.entries, id)
			return true
		}
	}
	return false
}

// MinReportedFrameID returns the minimum last_reported_frame_id across
// every video-requesting receiver that has reported at least once, and
// whether any such receiver exists. Used by Storage cleanup.
func (r *Registry) MinReportedFrameID() (min int32, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	first := true
	for _, e := range r.entries {
		if !e.VideoRequested || !e.HasReportedFrame {
			continue
		}
		if first || e.LastReportedFrameID < min {
			min = e.LastReportedFrameID
			first = false
		}
	}
	return min, !first
}

// VideoReceivers returns every currently video-requesting receiver.
func (r *Registry) VideoReceivers() []ReceiverEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ReceiverEntry
	for _, e := range r.entries {
		if e.VideoRequested {
			out = append(out, *e)
		}
	}
	return out
}

// AudioReceivers returns every currently audio-requesting receiver.
func (r *Registry) AudioReceivers() []ReceiverEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ReceiverEntry
	for _, e := range r.entries {
		if e.AudioRequested {
			out = append(out, *e)
		}
	}
	return out
}
