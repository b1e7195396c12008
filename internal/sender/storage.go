package sender

import "sync"

// FrameStorageEntry holds the already-encoded packet bytes of one sent
// video frame, so retransmission is a slice copy and send, never a
// re-encode, grounded on original_source's VideoParityPacketStorage.
type FrameStorageEntry struct {
	FrameID       int32
	VideoPackets  [][]byte
	ParityPackets [][]byte
}

// Storage keeps recent frames' encoded packets for retransmission.
type Storage struct {
	mu      sync.Mutex
	entries map[int32]*FrameStorageEntry
}

// NewStorage returns an empty sender-side packet store.
func NewStorage() *Storage {
	return &Storage{entries: make(map[int32]*FrameStorageEntry)}
}

// Add records the packets of a newly sent frame.
func (s *Storage) Add(frameID int32, video, parity [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[frameID] = &FrameStorageEntry{FrameID: frameID, VideoPackets: video, ParityPackets: parity}
}

// Cleanup removes every entry at or below minFrameID, the minimum
// reported frame id among active video receivers.
func (s *Storage) Cleanup(minFrameID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.entries {
		if id <= minFrameID {
			delete(s.entries, id)
		}
	}
}

// Resolve returns the packets to retransmit for a Request naming
// frameID. allPackets resends everything on file; otherwise only the
// named indices are returned. A request naming an already-cleaned-up
// frame resolves to (nil, nil, false) and must be silently dropped.
func (s *Storage) Resolve(frameID int32, allPackets bool, videoIndices, parityIndices []int32) (video, parity [][]byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.entries[frameID]
	if !found {
		return nil, nil, false
	}

	if allPackets {
		return append([][]byte(nil), e.VideoPackets...), append([][]byte(nil), e.ParityPackets...), true
	}

	for _, idx := range videoIndices {
		if int(idx) >= 0 && int(idx) < len(e.VideoPackets) {
			video = append(video, e.VideoPackets[idx])
		}
	}
	for _, idx := range parityIndices {
		if int(idx) >= 0 && int(idx) < len(e.ParityPackets) {
			parity = append(parity, e.ParityPackets[idx])
		}
	}
	return video, parity, true
}
