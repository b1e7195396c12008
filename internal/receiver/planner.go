package receiver

import (
	"time"

	"github.com/duplexcast/duplexcast/internal/protocol"
)

// PlanInterval is the default cadence the request planner runs on,
// beyond being triggered immediately whenever a packet for a new
// highest frame arrives.
const PlanInterval = 100 * time.Millisecond

// Plan computes the set of Request packets to emit this cycle, given
// the current storage, the highest frame_id seen across any kind of
// packet, and the last fully rendered frame id.
func Plan(ownerID int32, storage *Storage, highestSeenFrameID, lastRenderedFrameID int32) []protocol.Request {
	var requests []protocol.Request

	maxStored, ok := storage.MaxFrameID()
	if !ok {
		maxStored = lastRenderedFrameID
	}

	// Requests naming the frame that just triggered this cycle would
	// race the packets already in flight for it, so only frames
	// strictly older than the current maximum are considered.
	upperBound := highestSeenFrameID - 1
	if maxStored < upperBound {
		upperBound = maxStored
	}

	for frameID, missing := range storage.IncorrectFrames(upperBound) {
		if len(missing.VideoPacketIndices) == 0 && len(missing.ParityPacketIndices) == 0 {
			continue
		}
		requests = append(requests, protocol.Request{
			OwnerID:             ownerID,
			FrameID:             frameID,
			AllPackets:          false,
			VideoPacketIndices:  missing.VideoPacketIndices,
			ParityPacketIndices: missing.ParityPacketIndices,
		})
	}

	for frameID := lastRenderedFrameID + 1; frameID < maxStored; frameID++ {
		if storage.HasEntry(frameID) {
			continue
		}
		requests = append(requests, protocol.Request{
			OwnerID:    ownerID,
			FrameID:    frameID,
			AllPackets: true,
		})
	}

	return requests
}
