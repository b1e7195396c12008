package audio

import (
	"log"
	"testing"

	"github.com/duplexcast/duplexcast/internal/capture"
	"github.com/duplexcast/duplexcast/internal/protocol"
)

func encodedFrame(t *testing.T, fill float32) []byte {
	t.Helper()
	pcm := make([]float32, FrameSamples)
	for i := range pcm {
		pcm[i] = fill
	}
	opus, err := capture.PassthroughAudioCodec{}.Encode(pcm)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return opus
}

func newTestJitterBuffer() (*JitterBuffer, *RingBuffer) {
	speaker := NewRingBuffer()
	logger := log.New(log.Writer(), "", 0)
	jb := NewJitterBuffer(capture.PassthroughAudioCodec{}, speaker, logger)
	jb.Amplifier = 1 // isolate ordering/concealment behavior from gain
	return jb, speaker
}

func TestJitterBufferDecodesInOrder(t *testing.T) {
	jb, speaker := newTestJitterBuffer()
	jb.Push(protocol.Audio{FrameID: 0, Payload: encodedFrame(t, 0.5)})
	jb.Push(protocol.Audio{FrameID: 1, Payload: encodedFrame(t, 0.25)})

	jb.Drain()

	if speaker.Fill() != FrameSamples*2 {
		t.Fatalf("Fill() = %d, want %d", speaker.Fill(), FrameSamples*2)
	}
	out := make([]float32, FrameSamples*2)
	speaker.Read(out)
	if out[0] != 0.5 || out[FrameSamples] != 0.25 {
		t.Errorf("samples out of order: %v ... %v", out[0], out[FrameSamples])
	}
}

func TestJitterBufferReordersOutOfOrderPackets(t *testing.T) {
	jb, speaker := newTestJitterBuffer()
	jb.Push(protocol.Audio{FrameID: 1, Payload: encodedFrame(t, 0.25)})
	jb.Push(protocol.Audio{FrameID: 0, Payload: encodedFrame(t, 0.5)})

	jb.Drain()

	out := make([]float32, FrameSamples*2)
	speaker.Read(out)
	if out[0] != 0.5 || out[FrameSamples] != 0.25 {
		t.Errorf("got %v ... %v, want frame 0 before frame 1", out[0], out[FrameSamples])
	}
}

func TestJitterBufferConcealsSingleFrameGap(t *testing.T) {
	jb, speaker := newTestJitterBuffer()
	jb.Push(protocol.Audio{FrameID: 0, Payload: encodedFrame(t, 0.5)})
	jb.Push(protocol.Audio{FrameID: 2, Payload: encodedFrame(t, 0.75)}) // frame 1 missing

	jb.Drain()

	// Frame 0, concealed frame 1 (silence), then frame 2.
	if speaker.Fill() != FrameSamples*3 {
		t.Fatalf("Fill() = %d, want %d (frame0 + concealment + frame2)", speaker.Fill(), FrameSamples*3)
	}
	out := make([]float32, FrameSamples*3)
	speaker.Read(out)
	if out[0] != 0.5 {
		t.Errorf("frame 0 sample = %v, want 0.5", out[0])
	}
	if out[FrameSamples] != 0 {
		t.Errorf("concealed sample = %v, want 0 (silence)", out[FrameSamples])
	}
	if out[FrameSamples*2] != 0.75 {
		t.Errorf("frame 2 sample = %v, want 0.75", out[FrameSamples*2])
	}
}

func TestJitterBufferDropsStalePacket(t *testing.T) {
	jb, speaker := newTestJitterBuffer()
	jb.Push(protocol.Audio{FrameID: 5, Payload: encodedFrame(t, 0.9)})
	jb.Drain()

	jb.Push(protocol.Audio{FrameID: 3, Payload: encodedFrame(t, 0.1)}) // stale
	jb.Drain()

	if speaker.Fill() != FrameSamples {
		t.Errorf("Fill() = %d, want %d (stale packet must not be written)", speaker.Fill(), FrameSamples)
	}
}

func TestJitterBufferAppliesAmplifier(t *testing.T) {
	jb, speaker := newTestJitterBuffer()
	jb.Amplifier = 2
	jb.Push(protocol.Audio{FrameID: 0, Payload: encodedFrame(t, 0.5)})
	jb.Drain()

	out := make([]float32, FrameSamples)
	speaker.Read(out)
	if out[0] != 1.0 {
		t.Errorf("out[0] = %v, want 1.0 (0.5 * amplifier 2)", out[0])
	}
}

func TestJitterBufferReportsSpeakerOverflow(t *testing.T) {
	jb, speaker := newTestJitterBuffer()
	// Leave room for exactly one frame: a gap-triggered concealment
	// plus the decoded frame together exceed that, so the second write
	// overflows and is counted.
	speaker.Write(make([]float32, Capacity-FrameSamples))

	jb.Push(protocol.Audio{FrameID: 0, Payload: encodedFrame(t, 0.1)})
	jb.Drain()
	speaker.Read(make([]float32, FrameSamples)) // drain frame 0, back to "room for one frame"

	jb.Push(protocol.Audio{FrameID: 2, Payload: encodedFrame(t, 0.2)}) // gap at frame 1
	jb.Drain()

	if jb.Overflows() == 0 {
		t.Errorf("Overflows() = 0, want > 0 after concealment+decode exceeded remaining room")
	}
}
