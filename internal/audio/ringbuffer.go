// Package audio implements the audio ring buffer, jitter buffer, and
// sender loop: draining the microphone in fixed-size frames, encoding
// with Opus, and on the receiver side reordering packets by frame_id
// into a speaker-feeding ring buffer with packet-loss concealment.
package audio

import (
	"log"
	"sync"

	"github.com/duplexcast/duplexcast/internal/protocol"
)

// Capacity is the ring buffer's default size in samples: 2 *
// latency_sec * sample_rate * channels.
const Capacity = int(2 * protocol.LatencySeconds * protocol.SampleRate * protocol.Channels)

// RingBuffer is a single-producer single-consumer ring buffer of
// interleaved float32 audio samples. Exactly one goroutine may call
// Write, exactly one may call Read; the write position and free space
// are derived from the read cursor and the fill count.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []float32
	read int
	fill int
}

// NewRingBuffer returns a ring buffer sized to Capacity samples.
func NewRingBuffer() *RingBuffer {
	return &RingBuffer{buf: make([]float32, Capacity)}
}

// NewRingBufferWithLatency returns a ring buffer sized for a deployment
// that overrides the default latency budget: 2 * latencySeconds *
// sample_rate * channels. latencySeconds <= 0 falls back to Capacity.
func NewRingBufferWithLatency(latencySeconds float64) *RingBuffer {
	if latencySeconds <= 0 {
		return NewRingBuffer()
	}
	size := int(2 * latencySeconds * protocol.SampleRate * protocol.Channels)
	return &RingBuffer{buf: make([]float32, size)}
}

// Write copies as much of samples as fits into free space. If there
// isn't room for all of samples, the overflow is dropped and logged; it
// never blocks. Returns the number of samples dropped, so callers can
// surface it as a metric.
func (r *RingBuffer) Write(samples []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	free := len(r.buf) - r.fill
	n := len(samples)
	dropped := 0
	if n > free {
		dropped = n - free
		log.Printf("audio: ring buffer overflow, dropping %d samples", dropped)
		n = free
	}
	writePos := (r.read + r.fill) % len(r.buf)
	for i := 0; i < n; i++ {
		r.buf[(writePos+i)%len(r.buf)] = samples[i]
	}
	r.fill += n
	return dropped
}

// Read fills dst from the buffer, writing silence for any shortfall and
// returns the number of real samples produced.
func (r *RingBuffer) Read(dst []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(dst)
	avail := r.fill
	if n > avail {
		log.Printf("audio: ring buffer underflow, %d samples of silence", n-avail)
	} else {
		avail = n
	}
	for i := 0; i < avail; i++ {
		dst[i] = r.buf[(r.read+i)%len(r.buf)]
	}
	for i := avail; i < n; i++ {
		dst[i] = 0
	}
	r.read = (r.read + avail) % len(r.buf)
	r.fill -= avail
	return avail
}

// Fill returns the number of samples currently buffered.
func (r *RingBuffer) Fill() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fill
}

// HasRoomForFrame reports whether the buffer has free space for one
// decoded audio frame.
func (r *RingBuffer) HasRoomForFrame() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)-r.fill >= protocol.SamplesPerFrame*protocol.Channels
}
