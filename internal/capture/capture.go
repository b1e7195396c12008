// Package capture defines the narrow interfaces the transport core uses
// to pull frames from a depth+color camera and a microphone, and to
// run the color/depth/audio codecs. These are the Capture, Codec, and
// Audio Device collaborators: out of scope by name, only the
// interfaces live here, satisfied in tests by in-memory fakes, using
// the same capability-flag callback pattern as a real decoder/audio
// device would.
package capture

import (
	"context"
	"time"

	"github.com/duplexcast/duplexcast/internal/protocol"
)

// FrameDeadline is the per-device capture timeout; expiry skips the
// tick without affecting frame_id.
const FrameDeadline = 1 * time.Second

// VideoFrame is one captured, not-yet-encoded instant of color+depth.
type VideoFrame struct {
	TimestampMs float32
	Width       int32
	Height      int32
	Intrinsics  protocol.Intrinsics
	Floor       *protocol.FloorPlane
	ColorRaw    []byte
	DepthRaw    []byte
}

// Source is the depth+color camera collaborator. NextVideoFrame blocks
// until a frame is available or FrameDeadline elapses, in which case it
// returns ErrTimeout.
type Source interface {
	NextVideoFrame(ctx context.Context) (VideoFrame, error)
}

// ErrTimeout is returned by Source.NextVideoFrame when no frame arrives
// within FrameDeadline.
var ErrTimeout = errTimeout{}

type errTimeout struct{}

func (errTimeout) Error() string { return "capture: frame deadline exceeded" }

// VideoEncoder compresses a captured frame's color and depth planes.
// The transport core never inspects the compressed bytes' structure.
type VideoEncoder interface {
	EncodeColor(raw []byte) ([]byte, error)
	EncodeDepth(raw []byte, keyframe bool) ([]byte, error)
}

// VideoDecoder is the receiver-side counterpart of VideoEncoder.
type VideoDecoder interface {
	DecodeColor(compressed []byte) ([]byte, error)
	DecodeDepth(compressed []byte, keyframe bool) ([]byte, error)
}

// AudioDevice exposes a ring-buffer-backed PCM source (microphone) or
// sink (speaker). Read/Write operate in units of exactly one frame
// (protocol.SamplesPerFrame * protocol.Channels float32 samples); the
// device callback owns its own thread and only ever touches the ring
// buffer it was constructed with.
type AudioDevice interface {
	ReadFrame(samples []float32) (n int, err error)
	WriteFrame(samples []float32) (n int, err error)
}

// AudioEncoder/AudioDecoder wrap the Opus collaborator.
type AudioEncoder interface {
	Encode(pcm []float32) ([]byte, error)
}

type AudioDecoder interface {
	Decode(opus []byte) ([]float32, error)
	// ConcealLoss generates plausible replacement samples for exactly
	// one missing frame.
	ConcealLoss() ([]float32, error)
}
