package receiver

import (
	"testing"

	"github.com/duplexcast/duplexcast/internal/protocol"
)

func TestPlanRequestsMissingPacketsOfIncorrectFrame(t *testing.T) {
	storage := NewStorage()
	// Only packet_index 0 of a 2-packet frame arrived.
	storage.AddVideo(protocol.Video{FrameID: 2, PacketIndex: 0, PacketCount: 2, Payload: []byte{1}})

	requests := Plan(1, storage, 3, -1)

	var found bool
	for _, r := range requests {
		if r.FrameID == 2 {
			found = true
			if r.AllPackets {
				t.Errorf("frame 2 request has AllPackets=true, want targeted indices")
			}
			if len(r.VideoPacketIndices) != 1 || r.VideoPacketIndices[0] != 1 {
				t.Errorf("VideoPacketIndices = %v, want [1]", r.VideoPacketIndices)
			}
		}
	}
	if !found {
		t.Errorf("no request for frame 2 in %+v", requests)
	}
}

func TestPlanRequestsAllPacketsOfWhollyMissingFrame(t *testing.T) {
	storage := NewStorage()
	// Frame 5 has arrived (setting MaxFrameID), but frame 3 -- strictly
	// between the last rendered frame and the maximum seen -- has no
	// storage entry at all, so it must be requested wholesale.
	storage.AddVideo(protocol.Video{FrameID: 5, PacketIndex: 0, PacketCount: 1, Payload: []byte{1}})

	requests := Plan(1, storage, 5, 2)

	var found bool
	for _, r := range requests {
		if r.FrameID == 3 {
			found = true
			if !r.AllPackets {
				t.Errorf("frame 3 request has AllPackets=false, want true")
			}
		}
	}
	if !found {
		t.Errorf("no all-packets request for frame 3 in %+v", requests)
	}
}

func TestPlanNeverRequestsTheCurrentInFlightFrame(t *testing.T) {
	storage := NewStorage()
	storage.AddVideo(protocol.Video{FrameID: 10, PacketIndex: 0, PacketCount: 2, Payload: []byte{1}})

	// highestSeenFrameID == 10 is the frame that just triggered this
	// cycle; it must not appear in the incorrect-frame requests since
	// its sibling packet is still in flight.
	requests := Plan(1, storage, 10, -1)
	for _, r := range requests {
		if r.FrameID == 10 {
			t.Errorf("frame 10 (still arriving) was requested: %+v", r)
		}
	}
}

func TestPlanNoRequestsWhenNothingMissing(t *testing.T) {
	storage := NewStorage()
	requests := Plan(1, storage, 0, -1)
	if len(requests) != 0 {
		t.Errorf("requests = %+v, want none", requests)
	}
}
