package capture

import (
	"context"
	"math"
	"time"

	"github.com/duplexcast/duplexcast/internal/protocol"
)

// SyntheticSource generates placeholder color+depth frames at a fixed
// resolution and frame rate, standing in for a real depth camera so the
// sender binary runs end to end without hardware. Its planes are far
// smaller than a real capture's since they're never decoded into
// anything meaningful.
type SyntheticSource struct {
	Width, Height int32
	frameID       int32
}

// NewSyntheticSource returns a source producing w x h frames.
func NewSyntheticSource(w, h int32) *SyntheticSource {
	return &SyntheticSource{Width: w, Height: h}
}

// NextVideoFrame synthesizes one frame, blocking briefly to approximate
// a hardware capture cadence. It never times out.
func (s *SyntheticSource) NextVideoFrame(ctx context.Context) (VideoFrame, error) {
	select {
	case <-ctx.Done():
		return VideoFrame{}, ctx.Err()
	case <-time.After(time.Millisecond):
	}

	n := int(s.Width * s.Height)
	color := make([]byte, n*4)
	depth := make([]byte, n*2)
	fill := byte(s.frameID)
	for i := range color {
		color[i] = fill
	}
	for i := range depth {
		depth[i] = fill
	}
	s.frameID++

	return VideoFrame{
		TimestampMs: float32(time.Now().UnixMilli()),
		Width:       s.Width,
		Height:      s.Height,
		Intrinsics:  protocol.Intrinsics{},
		ColorRaw:    color,
		DepthRaw:    depth,
	}, nil
}

// PassthroughVideoCodec implements VideoEncoder and VideoDecoder by
// copying raw planes unchanged, standing in for a real color/depth
// codec (out of scope by name: the Codec collaborator).
type PassthroughVideoCodec struct{}

func (PassthroughVideoCodec) EncodeColor(raw []byte) ([]byte, error) { return raw, nil }
func (PassthroughVideoCodec) EncodeDepth(raw []byte, keyframe bool) ([]byte, error) {
	return raw, nil
}
func (PassthroughVideoCodec) DecodeColor(compressed []byte) ([]byte, error) { return compressed, nil }
func (PassthroughVideoCodec) DecodeDepth(compressed []byte, keyframe bool) ([]byte, error) {
	return compressed, nil
}

// PassthroughAudioCodec implements AudioEncoder and AudioDecoder by
// reinterpreting float32 PCM samples as their raw bytes, standing in
// for a real Opus codec (out of scope by name).
type PassthroughAudioCodec struct{}

func (PassthroughAudioCodec) Encode(pcm []float32) ([]byte, error) {
	out := make([]byte, len(pcm)*4)
	for i, v := range pcm {
		protocol.ByteOrder.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out, nil
}

func (PassthroughAudioCodec) Decode(opus []byte) ([]float32, error) {
	n := len(opus) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := protocol.ByteOrder.Uint32(opus[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// ConcealLoss returns silence for the missing frame: the simplest valid
// concealment, leaving a real spectral-extrapolation scheme as a
// possible future swap-in behind the same AudioDecoder interface.
func (PassthroughAudioCodec) ConcealLoss() ([]float32, error) {
	return make([]float32, protocol.SamplesPerFrame*protocol.Channels), nil
}

// SyntheticMicrophone generates a quiet sine tone in place of a real
// capture device, implementing AudioDevice's ReadFrame half.
type SyntheticMicrophone struct {
	phase float64
}

func (m *SyntheticMicrophone) ReadFrame(samples []float32) (int, error) {
	const freqHz = 440.0
	step := 2 * math.Pi * freqHz / float64(protocol.SampleRate)
	for i := 0; i < len(samples); i += protocol.Channels {
		v := float32(0.02 * math.Sin(m.phase))
		for c := 0; c < protocol.Channels; c++ {
			samples[i+c] = v
		}
		m.phase += step
	}
	return len(samples), nil
}

func (m *SyntheticMicrophone) WriteFrame(samples []float32) (int, error) {
	return 0, errNotSupported
}

// DiscardSpeaker implements AudioDevice's WriteFrame half by dropping
// every frame, standing in for real audio hardware output.
type DiscardSpeaker struct{}

func (DiscardSpeaker) ReadFrame(samples []float32) (int, error) {
	return 0, errNotSupported
}

func (DiscardSpeaker) WriteFrame(samples []float32) (int, error) {
	return len(samples), nil
}

var errNotSupported = errUnsupported{}

type errUnsupported struct{}

func (errUnsupported) Error() string { return "capture: operation not supported by this device" }
