package audio

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/duplexcast/duplexcast/internal/capture"
	"github.com/duplexcast/duplexcast/internal/protocol"
)

// FrameSamples is the number of interleaved float32 samples the sender
// drains from the microphone ring buffer for each encoded frame:
// SamplesPerFrame * Channels.
const FrameSamples = protocol.SamplesPerFrame * protocol.Channels

// Sender drains a microphone ring buffer in fixed-size frames, encodes
// each with Opus, and hands the result to Send for every currently
// audio-requesting receiver. It uses the same ticker-driven goroutine
// shape as the rest of this repo's loops, run in reverse (producing
// instead of consuming).
type Sender struct {
	mic     *RingBuffer
	encoder capture.AudioEncoder
	logger  *log.Logger

	// Send transmits one already-encoded AudioSenderPacket body to
	// every audio-requesting receiver. Supplied by the owning pipeline
	// so this package stays free of socket/registry concerns.
	Send func(frameID int32, opus []byte)

	mu      sync.Mutex
	frameID int32
}

// NewSender returns an audio sender draining mic via encoder.
func NewSender(mic *RingBuffer, encoder capture.AudioEncoder, logger *log.Logger) *Sender {
	return &Sender{mic: mic, encoder: encoder, logger: logger}
}

// Run drains and encodes one frame every SamplesPerFrame/SampleRate
// seconds until ctx is cancelled.
func (s *Sender) Run(ctx context.Context) {
	interval := time.Duration(float64(protocol.SamplesPerFrame)/float64(protocol.SampleRate)*1000) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frame := make([]float32, FrameSamples)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mic.Read(frame)
			opus, err := s.encoder.Encode(frame)
			if err != nil {
				s.logger.Printf("audio encode failed: %v", err)
				continue
			}
			s.mu.Lock()
			id := s.frameID
			s.frameID++
			s.mu.Unlock()
			if s.Send != nil {
				s.Send(id, opus)
			}
		}
	}
}
