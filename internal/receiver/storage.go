// Package receiver implements the rendering-host side of the
// transport: receiver storage and FEC reconstruction, the
// retransmission request planner, and the render dispatcher.
// Grounded on original_source's video_receiver_storage.h
// PacketParityGroup/FrameParitySet state machine, adapted from C++
// shared_ptr slots into Go value/pointer slices with typed errors
// instead of thrown exceptions.
package receiver

import (
	"errors"
	"sort"
	"sync"

	"github.com/duplexcast/duplexcast/internal/fec"
	"github.com/duplexcast/duplexcast/internal/protocol"
)

// GroupState is a parity group's completeness.
type GroupState int

const (
	Incorrect GroupState = iota
	Correctable
	Correct
)

// ErrNotCorrectable is returned by correct() when a group's state
// isn't Correctable.
var ErrNotCorrectable = errors.New("receiver: parity group is not correctable")

// packetGroup owns up to fec.GroupSize video packet slots plus an
// optional parity packet, mirroring PacketParityGroup.
type packetGroup struct {
	minVideoIndex int
	size          int
	video         []*protocol.Video
	parity        *protocol.Parity
}

func newPacketGroup(minVideoIndex, size int) *packetGroup {
	return &packetGroup{minVideoIndex: minVideoIndex, size: size, video: make([]*protocol.Video, size)}
}

func (g *packetGroup) addVideo(p protocol.Video) {
	slot := int(p.PacketIndex) - g.minVideoIndex
	if slot < 0 || slot >= len(g.video) {
		return
	}
	pp := p
	g.video[slot] = &pp
}

func (g *packetGroup) setParity(p protocol.Parity) {
	pp := p
	g.parity = &pp
}

func (g *packetGroup) state() GroupState {
	present := 0
	for _, v := range g.video {
		if v != nil {
			present++
		}
	}
	if present == g.size {
		return Correct
	}
	if g.parity != nil {
		present++
	}
	if present == g.size {
		return Correctable
	}
	return Incorrect
}

// correct reconstructs the group's single missing video packet in
// place by XOR-ing the parity payload against every present video
// payload.
func (g *packetGroup) correct() error {
	if g.state() != Correctable {
		return ErrNotCorrectable
	}

	missingSlot := -1
	present := make([][]byte, 0, len(g.video))
	for i, v := range g.video {
		if v == nil {
			missingSlot = i
			continue
		}
		present = append(present, fec.Pad(v.Payload, protocol.MaxVideoPacketContentSize))
	}

	recovered, err := fec.Reconstruct(g.parity.Payload, present)
	if err != nil {
		return err
	}

	g.video[missingSlot] = &protocol.Video{
		OwnerID:     g.parity.OwnerID,
		FrameID:     g.parity.FrameID,
		PacketIndex: int32(g.minVideoIndex + missingSlot),
		PacketCount: g.parity.VideoPacketCount,
		Payload:     recovered,
	}
	return nil
}

// FrameParitySet holds every parity group of one in-flight frame.
type FrameParitySet struct {
	groups           []*packetGroup
	videoPacketCount int
}

func newFrameParitySet(groupCount, videoPacketCount int) *FrameParitySet {
	return &FrameParitySet{groups: make([]*packetGroup, groupCount), videoPacketCount: videoPacketCount}
}

func (f *FrameParitySet) groupFor(videoPacketCount, parityIndex int) *packetGroup {
	if f.groups[parityIndex] == nil {
		min := parityIndex * fec.GroupSize
		size := fec.GroupSize
		if min+size > videoPacketCount {
			size = videoPacketCount - min
		}
		f.groups[parityIndex] = newPacketGroup(min, size)
	}
	return f.groups[parityIndex]
}

func (f *FrameParitySet) addVideo(p protocol.Video) {
	idx := int(p.PacketIndex) / fec.GroupSize
	if idx < 0 || idx >= len(f.groups) {
		return
	}
	f.groupFor(int(p.PacketCount), idx).addVideo(p)
}

func (f *FrameParitySet) addParity(p protocol.Parity) {
	idx := int(p.PacketIndex)
	if idx < 0 || idx >= len(f.groups) {
		return
	}
	f.groupFor(int(p.VideoPacketCount), idx).setParity(p)
}

// State reports the frame's overall completeness: Correct iff every
// group is Correct; Correctable iff no group is Incorrect and at least
// one is Correctable; else Incorrect.
func (f *FrameParitySet) State() GroupState {
	correctCount := 0
	incorrectCount := 0
	for _, g := range f.groups {
		if g == nil {
			incorrectCount++
			continue
		}
		switch g.state() {
		case Correct:
			correctCount++
		case Incorrect:
			incorrectCount++
		}
	}
	if correctCount == len(f.groups) {
		return Correct
	}
	if incorrectCount == 0 {
		return Correctable
	}
	return Incorrect
}

// Correct upgrades every Correctable group to Correct in place.
func (f *FrameParitySet) Correct() error {
	for _, g := range f.groups {
		if g != nil && g.state() == Correctable {
			if err := g.correct(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Build concatenates the (Correct-state) groups' video packet payloads
// in index order and decodes the resulting VideoSenderMessage.
func (f *FrameParitySet) Build() (protocol.VideoMessage, error) {
	var packets []protocol.Video
	for _, g := range f.groups {
		if g == nil {
			return protocol.VideoMessage{}, errors.New("receiver: frame not complete")
		}
		for _, v := range g.video {
			if v == nil {
				return protocol.VideoMessage{}, errors.New("receiver: frame not complete")
			}
			packets = append(packets, *v)
		}
	}
	sort.Slice(packets, func(i, j int) bool { return packets[i].PacketIndex < packets[j].PacketIndex })
	return protocol.DecodeVideoMessage(protocol.Reassemble(packets))
}

// MissingPackets reports, for each Incorrect group, which video and
// parity indices are still missing.
func (f *FrameParitySet) MissingPackets() (videoIndices, parityIndices []int32) {
	for gi, g := range f.groups {
		if g == nil {
			// Nothing has arrived for this group yet: every video slot
			// in it is missing, as is its parity.
			min, max := fec.GroupBounds(gi, f.videoPacketCount)
			for i := min; i < max; i++ {
				videoIndices = append(videoIndices, int32(i))
			}
			parityIndices = append(parityIndices, int32(gi))
			continue
		}
		if g.state() != Incorrect {
			continue
		}
		for i, v := range g.video {
			if v == nil {
				videoIndices = append(videoIndices, int32(g.minVideoIndex+i))
			}
		}
		if g.parity == nil {
			parityIndices = append(parityIndices, int32(gi))
		}
	}
	return videoIndices, parityIndices
}

// Storage holds every in-flight frame's FrameParitySet, keyed by
// frame_id.
type Storage struct {
	mu   sync.Mutex
	sets map[int32]*FrameParitySet

	// reconstructions counts successful parity corrections across this
	// storage's lifetime, for the receiver pipeline's
	// ParityReconstructions metric to sample via Reconstructions.
	reconstructions uint64
}

// NewStorage returns an empty receiver-side storage.
func NewStorage() *Storage {
	return &Storage{sets: make(map[int32]*FrameParitySet)}
}

// AddVideo routes an inbound video packet into its frame's parity set,
// creating the set on first touch.
func (s *Storage) AddVideo(p protocol.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.setFor(p.FrameID, int(p.PacketCount))
	set.addVideo(p)
}

// AddParity routes an inbound parity packet into its frame's parity
// set, creating the set on first touch.
func (s *Storage) AddParity(p protocol.Parity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.setFor(p.FrameID, int(p.VideoPacketCount))
	set.addParity(p)
}

func (s *Storage) setFor(frameID int32, videoPacketCount int) *FrameParitySet {
	set, ok := s.sets[frameID]
	if !ok {
		groupCount := fec.GroupCount(videoPacketCount)
		set = newFrameParitySet(groupCount, videoPacketCount)
		s.sets[frameID] = set
	}
	return set
}

// Build iterates every stored frame, correcting Correctable sets in
// place and returning the VideoSenderMessage for every frame that has
// reached (or just reached) Correct, keyed by frame_id.
func (s *Storage) Build() map[int32]protocol.VideoMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int32]protocol.VideoMessage)
	for frameID, set := range s.sets {
		if set.State() == Correctable {
			if err := set.Correct(); err == nil {
				s.reconstructions++
			}
		}
		if set.State() == Correct {
			msg, err := set.Build()
			if err == nil {
				out[frameID] = msg
			}
		}
	}
	return out
}

// Reconstructions returns the running count of successful parity-group
// corrections, sampled into the ParityReconstructions metric.
func (s *Storage) Reconstructions() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconstructions
}

// MaxFrameID returns the highest frame_id with any storage entry, used
// to avoid requesting retransmission for a frame whose first packet
// just triggered this check.
func (s *Storage) MaxFrameID() (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := true
	var max int32
	for id := range s.sets {
		if first || id > max {
			max = id
			first = false
		}
	}
	return max, !first
}

// IncorrectFrames returns the missing packet indices of every frame at
// or below maxFrameID whose state is Incorrect.
func (s *Storage) IncorrectFrames(maxFrameID int32) map[int32]MissingPackets {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int32]MissingPackets)
	for frameID, set := range s.sets {
		if frameID > maxFrameID {
			continue
		}
		if set.State() == Incorrect {
			video, parity := set.MissingPackets()
			out[frameID] = MissingPackets{VideoPacketIndices: video, ParityPacketIndices: parity}
		}
	}
	return out
}

// MissingPackets names the packet/parity indices still needed to
// complete a frame.
type MissingPackets struct {
	VideoPacketIndices  []int32
	ParityPacketIndices []int32
}

// HasEntry reports whether a frame has any storage entry at all.
func (s *Storage) HasEntry(frameID int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[frameID]
	return ok
}

// RemoveObsolete deletes every stored frame at or below
// lastRenderedFrameID.
func (s *Storage) RemoveObsolete(lastRenderedFrameID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.sets {
		if id <= lastRenderedFrameID {
			delete(s.sets, id)
		}
	}
}
