package protocol

import (
	"bytes"
	"testing"

	"github.com/duplexcast/duplexcast/internal/fec"
)

func TestSplitReassembleRoundTrip(t *testing.T) {
	msg := bytes.Repeat([]byte{0x5A}, MaxVideoPacketContentSize*3+17)
	packets := Split(1, 7, msg)
	if len(packets) != 4 {
		t.Fatalf("len(packets) = %d, want 4", len(packets))
	}
	for i, p := range packets {
		if p.PacketIndex != int32(i) || p.PacketCount != int32(len(packets)) {
			t.Errorf("packet %d: index=%d count=%d", i, p.PacketIndex, p.PacketCount)
		}
	}
	if got := Reassemble(packets); !bytes.Equal(got, msg) {
		t.Errorf("Reassemble length = %d, want %d", len(got), len(msg))
	}
}

func TestSplitEmptyMessageProducesOnePacket(t *testing.T) {
	packets := Split(1, 1, nil)
	if len(packets) != 1 || packets[0].PacketCount != 1 {
		t.Errorf("got %+v, want one packet", packets)
	}
}

func TestBuildParityRecoversDroppedVideoPacket(t *testing.T) {
	msg := bytes.Repeat([]byte{0x11}, MaxVideoPacketContentSize+40)
	videoPackets := Split(1, 3, msg)
	if len(videoPackets) != 2 {
		t.Fatalf("len(videoPackets) = %d, want 2", len(videoPackets))
	}

	parity, err := BuildParity(1, 3, videoPackets)
	if err != nil {
		t.Fatalf("BuildParity: %v", err)
	}
	if len(parity) != 1 {
		t.Fatalf("len(parity) = %d, want 1", len(parity))
	}

	// Simulate packet_index 1 dropped: reconstruct its payload from
	// the parity packet plus the surviving packet_index 0.
	survivor := fec.Pad(videoPackets[0].Payload, MaxVideoPacketContentSize)
	recovered, err := fec.Reconstruct(parity[0].Payload, [][]byte{survivor})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	want := fec.Pad(videoPackets[1].Payload, MaxVideoPacketContentSize)
	if !bytes.Equal(recovered, want) {
		t.Errorf("recovered payload mismatch")
	}
}
