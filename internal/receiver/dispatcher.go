package receiver

import (
	"log"
	"sort"

	"github.com/duplexcast/duplexcast/internal/capture"
	"github.com/duplexcast/duplexcast/internal/present"
	"github.com/duplexcast/duplexcast/internal/protocol"
)

// Dispatcher picks which assembled frame to present and when, decoding
// through the Codec collaborator and submitting to Presentation.
type Dispatcher struct {
	decoder      capture.VideoDecoder
	presentation present.Presentation
	storage      *Storage
	logger       *log.Logger

	// LastRenderedFrameID starts at -1 (nothing rendered yet); every
	// frame_id is non-negative, so -1 always compares as "older than
	// any real frame".
	LastRenderedFrameID int32

	// FramesDropped counts frames skipped over when dispatch jumps
	// ahead to a newly available keyframe, sampled into the
	// FramesDropped metric.
	FramesDropped uint64

	// Report is called with the new LastRenderedFrameID after each
	// successful dispatch tick, so the caller can send a Report packet.
	Report func(frameID int32)
}

// NewDispatcher returns a dispatcher pulling assembled frames from
// storage and decoding via decoder before submitting to presentation.
func NewDispatcher(storage *Storage, decoder capture.VideoDecoder, presentation present.Presentation, logger *log.Logger) *Dispatcher {
	return &Dispatcher{storage: storage, decoder: decoder, presentation: presentation, logger: logger, LastRenderedFrameID: -1}
}

// Tick runs one dispatch cycle: choose a target frame among the
// currently assembled messages, decode up through any contiguous
// successors, submit to Presentation, report, and evict rendered
// entries.
func (d *Dispatcher) Tick() {
	assembled := d.storage.Build()
	if len(assembled) == 0 {
		return
	}

	ids := make([]int32, 0, len(assembled))
	for id := range assembled {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	target, ok := d.chooseTarget(assembled, ids)
	if !ok {
		return
	}
	if skipped := target - (d.LastRenderedFrameID + 1); skipped > 0 {
		d.FramesDropped += uint64(skipped)
	}

	// Decode target and every contiguous successor already assembled,
	// so depth decoder state advances correctly.
	next := target
	for {
		msg, present := assembled[next]
		if !present {
			break
		}
		d.decodeAndSubmit(next, msg)
		d.LastRenderedFrameID = next
		next++
	}

	d.storage.RemoveObsolete(d.LastRenderedFrameID)
	if d.Report != nil {
		d.Report(d.LastRenderedFrameID)
	}
}

func (d *Dispatcher) chooseTarget(assembled map[int32]protocol.VideoMessage, sortedIDs []int32) (int32, bool) {
	var latestKeyframe int32
	haveKeyframe := false
	for _, id := range sortedIDs {
		if id > d.LastRenderedFrameID && assembled[id].Keyframe {
			latestKeyframe = id
			haveKeyframe = true
		}
	}
	if haveKeyframe {
		return latestKeyframe, true
	}

	want := d.LastRenderedFrameID + 1
	if _, ok := assembled[want]; ok {
		return want, true
	}
	return 0, false
}

func (d *Dispatcher) decodeAndSubmit(frameID int32, msg protocol.VideoMessage) {
	color, err := d.decoder.DecodeColor(msg.ColorBytes)
	if err != nil {
		d.logger.Printf("render: color decode failed for frame %d: %v", frameID, err)
		return
	}
	depth, err := d.decoder.DecodeDepth(msg.DepthBytes, msg.Keyframe)
	if err != nil {
		d.logger.Printf("render: depth decode failed for frame %d: %v", frameID, err)
		return
	}
	if err := d.presentation.Submit(color, depth, msg.FrameTimeStampMs, msg.Keyframe); err != nil {
		d.logger.Printf("render: presentation submit failed for frame %d: %v", frameID, err)
	}
}
