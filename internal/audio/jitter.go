package audio

import (
	"log"
	"sort"
	"sync"

	"github.com/duplexcast/duplexcast/internal/capture"
	"github.com/duplexcast/duplexcast/internal/protocol"
)

// Amplifier is the default gain applied to decoded samples to
// compensate for capture gain. It's treated as configuration rather
// than a core invariant — JitterBuffer.Amplifier may override it.
const Amplifier = 8

// JitterBuffer reorders inbound audio packets by frame_id and feeds a
// speaker ring buffer, concealing single-frame gaps via the decoder's
// loss-concealment call.
type JitterBuffer struct {
	mu      sync.Mutex
	pending []protocol.Audio

	decoder    capture.AudioDecoder
	speaker    *RingBuffer
	logger     *log.Logger
	Amplifier  float32

	lastFrameID    int32
	hasLastFrameID bool

	// overflows counts samples dropped by the speaker ring buffer over
	// this jitter buffer's lifetime, sampled into the AudioOverflows
	// metric.
	overflows uint64
}

// NewJitterBuffer returns a jitter buffer feeding speaker, decoding via
// decoder.
func NewJitterBuffer(decoder capture.AudioDecoder, speaker *RingBuffer, logger *log.Logger) *JitterBuffer {
	return &JitterBuffer{decoder: decoder, speaker: speaker, logger: logger, Amplifier: Amplifier}
}

// Push enqueues a received audio packet.
func (j *JitterBuffer) Push(pkt protocol.Audio) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending = append(j.pending, pkt)
}

// Drain sorts the pending packets by frame_id and decodes as many as
// the speaker ring buffer has room for, dropping stale packets and
// invoking loss concealment across any detected gap.
func (j *JitterBuffer) Drain() {
	j.mu.Lock()
	sort.Slice(j.pending, func(a, b int) bool { return j.pending[a].FrameID < j.pending[b].FrameID })
	pending := j.pending
	j.pending = nil
	j.mu.Unlock()

	for _, pkt := range pending {
		if !j.speaker.HasRoomForFrame() {
			// Ring buffer is full; re-queue remaining packets for the
			// next drain cycle.
			j.mu.Lock()
			j.pending = append(pending[indexOf(pending, pkt):], j.pending...)
			j.mu.Unlock()
			return
		}

		if j.hasLastFrameID && pkt.FrameID <= j.lastFrameID {
			continue // stale, already rendered past this frame
		}

		if j.hasLastFrameID && pkt.FrameID > j.lastFrameID+1 {
			if concealed, err := j.decoder.ConcealLoss(); err == nil {
				j.writeAmplified(concealed)
			} else {
				j.logger.Printf("audio: loss concealment failed: %v", err)
			}
		}

		samples, err := j.decoder.Decode(pkt.Payload)
		if err != nil {
			j.logger.Printf("audio: decode failed for frame %d: %v", pkt.FrameID, err)
			continue
		}
		j.writeAmplified(samples)
		j.lastFrameID = pkt.FrameID
		j.hasLastFrameID = true
	}
}

func (j *JitterBuffer) writeAmplified(samples []float32) {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = s * j.Amplifier
	}
	if dropped := j.speaker.Write(out); dropped > 0 {
		j.mu.Lock()
		j.overflows += uint64(dropped)
		j.mu.Unlock()
	}
}

// Overflows returns the running count of samples dropped by the speaker
// ring buffer.
func (j *JitterBuffer) Overflows() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.overflows
}

func indexOf(pending []protocol.Audio, target protocol.Audio) int {
	for i, p := range pending {
		if p.FrameID == target.FrameID {
			return i
		}
	}
	return len(pending)
}
