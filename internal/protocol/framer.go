package protocol

import "github.com/duplexcast/duplexcast/internal/fec"

// Split fragments a VideoSenderMessage byte stream into the video
// packets of one frame, each holding at most
// MaxVideoPacketContentSize bytes. The last packet's payload is the
// (possibly shorter) tail; every packet shares the same PacketCount.
func Split(ownerID, frameID int32, messageBytes []byte) []Video {
	count := (len(messageBytes)-1)/MaxVideoPacketContentSize + 1
	if len(messageBytes) == 0 {
		count = 1
	}
	packets := make([]Video, count)
	for i := 0; i < count; i++ {
		start := i * MaxVideoPacketContentSize
		end := start + MaxVideoPacketContentSize
		if end > len(messageBytes) {
			end = len(messageBytes)
		}
		packets[i] = Video{
			OwnerID:     ownerID,
			FrameID:     frameID,
			PacketIndex: int32(i),
			PacketCount: int32(count),
			Payload:     messageBytes[start:end],
		}
	}
	return packets
}

// Reassemble concatenates a frame's video packets, in packet_index
// order, back into the original message byte stream. Callers must
// already have verified the packets form a complete, ordered set (e.g.
// via the receiver's FrameParitySet).
func Reassemble(packets []Video) []byte {
	var out []byte
	for _, p := range packets {
		out = append(out, p.Payload...)
	}
	return out
}

// BuildParity computes the parity packets covering a frame's video
// packets, grouped consecutively by fec.GroupSize: for each group, the
// parity payload is the XOR of the group's payloads, each zero-padded
// to MaxVideoPacketContentSize so the XOR region is well defined even
// when the frame's final video packet is shorter than the rest.
func BuildParity(ownerID, frameID int32, videoPackets []Video) ([]Parity, error) {
	n := len(videoPackets)
	groupCount := fec.GroupCount(n)
	parity := make([]Parity, groupCount)

	for g := 0; g < groupCount; g++ {
		min, max := fec.GroupBounds(g, n)
		payloads := make([][]byte, 0, max-min)
		for i := min; i < max; i++ {
			payloads = append(payloads, fec.Pad(videoPackets[i].Payload, MaxVideoPacketContentSize))
		}
		body, err := fec.BuildParity(payloads)
		if err != nil {
			return nil, err
		}
		parity[g] = Parity{
			OwnerID:          ownerID,
			FrameID:          frameID,
			PacketIndex:      int32(g),
			VideoPacketCount: int32(n),
			Payload:          body,
		}
	}
	return parity, nil
}
