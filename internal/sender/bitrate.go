package sender

import "math"

// CaptureFPS is F, the fixed capture rate the gating rule backs off
// against.
const CaptureFPS = 30

// Decision is the (is_ready, keyframe) gate the controller computes
// before capturing each frame.
type Decision struct {
	IsReady  bool
	Keyframe bool
}

// Gate decides whether to capture and send a new frame, and whether it
// must be a keyframe. lastFrameID is the most recently sent frame;
// deltaSeconds is the elapsed time since it was sent.
func Gate(videoReceivers []ReceiverEntry, lastFrameID int32, deltaSeconds float64) Decision {
	if len(videoReceivers) == 0 {
		return Decision{IsReady: false}
	}

	for _, r := range videoReceivers {
		if !r.HasReportedFrame {
			// A new joiner: force an immediate keyframe.
			return Decision{IsReady: true, Keyframe: true}
		}
	}

	minReported := videoReceivers[0].LastReportedFrameID
	for _, r := range videoReceivers[1:] {
		if r.LastReportedFrameID < minReported {
			minReported = r.LastReportedFrameID
		}
	}
	deltaID := lastFrameID - minReported

	isReady := deltaSeconds*CaptureFPS > math.Pow(2, float64(deltaID-1))
	keyframe := deltaID > 5

	return Decision{IsReady: isReady, Keyframe: keyframe}
}
