package receiver

import (
	"log"
	"testing"

	"github.com/duplexcast/duplexcast/internal/capture"
	"github.com/duplexcast/duplexcast/internal/present"
	"github.com/duplexcast/duplexcast/internal/protocol"
)

func storeFrame(t *testing.T, s *Storage, frameID int32, keyframe bool) {
	t.Helper()
	msg := protocol.EncodeVideoMessage(protocol.VideoMessage{Keyframe: keyframe, ColorBytes: []byte{byte(frameID)}})
	video := protocol.Split(1, frameID, msg)
	for _, v := range video {
		s.AddVideo(v)
	}
	parity, err := protocol.BuildParity(1, frameID, video)
	if err != nil {
		t.Fatalf("BuildParity: %v", err)
	}
	for _, p := range parity {
		s.AddParity(p)
	}
}

func newTestDispatcher(storage *Storage) *Dispatcher {
	logger := log.New(log.Writer(), "", 0)
	return NewDispatcher(storage, capture.PassthroughVideoCodec{}, present.NewLoggingPresentation(logger), logger)
}

func TestDispatcherRendersContiguousFrames(t *testing.T) {
	storage := NewStorage()
	storeFrame(t, storage, 0, true)
	storeFrame(t, storage, 1, false)
	d := newTestDispatcher(storage)

	d.Tick()

	if d.LastRenderedFrameID != 1 {
		t.Errorf("LastRenderedFrameID = %d, want 1", d.LastRenderedFrameID)
	}
	if d.FramesDropped != 0 {
		t.Errorf("FramesDropped = %d, want 0", d.FramesDropped)
	}
}

func TestDispatcherSkipsToNewKeyframeAndCountsDropped(t *testing.T) {
	storage := NewStorage()
	storeFrame(t, storage, 5, true)
	d := newTestDispatcher(storage)

	d.Tick()

	if d.LastRenderedFrameID != 5 {
		t.Errorf("LastRenderedFrameID = %d, want 5", d.LastRenderedFrameID)
	}
	if d.FramesDropped != 5 {
		t.Errorf("FramesDropped = %d, want 5 (frames 0-4 skipped)", d.FramesDropped)
	}
}

func TestDispatcherWaitsForMissingPredecessor(t *testing.T) {
	storage := NewStorage()
	storeFrame(t, storage, 0, true)
	d := newTestDispatcher(storage)
	d.Tick()
	if d.LastRenderedFrameID != 0 {
		t.Fatalf("setup: LastRenderedFrameID = %d, want 0", d.LastRenderedFrameID)
	}

	// Frame 2 arrives but frame 1 hasn't: no keyframe ahead, and frame 1
	// (the wanted next id) isn't assembled, so nothing advances.
	storeFrame(t, storage, 2, false)
	d.Tick()
	if d.LastRenderedFrameID != 0 {
		t.Errorf("LastRenderedFrameID = %d, want 0 (still waiting on frame 1)", d.LastRenderedFrameID)
	}
}

func TestDispatcherReportCallback(t *testing.T) {
	storage := NewStorage()
	storeFrame(t, storage, 0, true)
	d := newTestDispatcher(storage)

	var reported int32 = -1
	d.Report = func(frameID int32) { reported = frameID }

	d.Tick()

	if reported != 0 {
		t.Errorf("Report callback got %d, want 0", reported)
	}
}
