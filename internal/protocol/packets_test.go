package protocol

import (
	"bytes"
	"testing"
)

func TestConfirmRoundTrip(t *testing.T) {
	in := Confirm{OwnerID: 7, ReceiverID: 42}
	out, err := DecodeConfirm(EncodeConfirm(in))
	if err != nil {
		t.Fatalf("DecodeConfirm: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	buf := EncodeHeartbeat(5, uint8(KindHeartbeat))
	hdr, err := ReadHeader(buf)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.OwnerID != 5 || hdr.Kind != uint8(KindHeartbeat) {
		t.Errorf("got %+v", hdr)
	}
}

func TestVideoRoundTrip(t *testing.T) {
	in := Video{OwnerID: 1, FrameID: 9, PacketIndex: 2, PacketCount: 4, Payload: []byte("hello-video")}
	out, err := DecodeVideo(EncodeVideo(in))
	if err != nil {
		t.Fatalf("DecodeVideo: %v", err)
	}
	if out.OwnerID != in.OwnerID || out.FrameID != in.FrameID || out.PacketIndex != in.PacketIndex || out.PacketCount != in.PacketCount {
		t.Errorf("header mismatch: got %+v, want %+v", out, in)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("payload = %q, want %q", out.Payload, in.Payload)
	}
}

func TestDecodeVideoRejectsImpossibleIndex(t *testing.T) {
	buf := EncodeVideo(Video{PacketIndex: 3, PacketCount: 3, Payload: []byte("x")})
	if _, err := DecodeVideo(buf); err != ErrMalformed {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestParityRoundTrip(t *testing.T) {
	in := Parity{OwnerID: 1, FrameID: 9, PacketIndex: 0, VideoPacketCount: 4, Payload: bytes.Repeat([]byte{0xAB}, 8)}
	out, err := DecodeParity(EncodeParity(in))
	if err != nil {
		t.Fatalf("DecodeParity: %v", err)
	}
	if out.FrameID != in.FrameID || out.VideoPacketCount != in.VideoPacketCount {
		t.Errorf("got %+v, want %+v", out, in)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("payload = %v, want %v", out.Payload, in.Payload)
	}
}

func TestAudioRoundTrip(t *testing.T) {
	in := Audio{OwnerID: 2, FrameID: 100, Payload: []byte{1, 2, 3, 4, 5}}
	out, err := DecodeAudio(EncodeAudio(in))
	if err != nil {
		t.Fatalf("DecodeAudio: %v", err)
	}
	if out.OwnerID != in.OwnerID || out.FrameID != in.FrameID || !bytes.Equal(out.Payload, in.Payload) {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestConnectRoundTrip(t *testing.T) {
	in := Connect{OwnerID: 3, VideoRequested: true, AudioRequested: false}
	out, err := DecodeConnect(EncodeConnect(in))
	if err != nil {
		t.Fatalf("DecodeConnect: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestReportRoundTrip(t *testing.T) {
	in := Report{OwnerID: 3, FrameID: 1234}
	out, err := DecodeReport(EncodeReport(in))
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestReportIgnoresTrailingTelemetryBytes(t *testing.T) {
	buf := EncodeReport(Report{OwnerID: 3, FrameID: 1234})
	buf = append(buf, 0x00, 0x00, 0x80, 0x3F) // trailing float32(1.0)
	out, err := DecodeReport(buf)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if out.FrameID != 1234 {
		t.Errorf("FrameID = %d, want 1234", out.FrameID)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	in := Request{
		OwnerID:             4,
		FrameID:             50,
		AllPackets:          false,
		VideoPacketIndices:  []int32{1, 3, 5},
		ParityPacketIndices: []int32{2},
	}
	out, err := DecodeRequest(EncodeRequest(in))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if out.FrameID != in.FrameID || out.AllPackets != in.AllPackets {
		t.Errorf("got %+v, want %+v", out, in)
	}
	if len(out.VideoPacketIndices) != 3 || out.VideoPacketIndices[1] != 3 {
		t.Errorf("video indices = %v", out.VideoPacketIndices)
	}
	if len(out.ParityPacketIndices) != 1 || out.ParityPacketIndices[0] != 2 {
		t.Errorf("parity indices = %v", out.ParityPacketIndices)
	}
}

func TestRequestAllPacketsRoundTrip(t *testing.T) {
	in := Request{OwnerID: 4, FrameID: 50, AllPackets: true}
	out, err := DecodeRequest(EncodeRequest(in))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if !out.AllPackets || len(out.VideoPacketIndices) != 0 {
		t.Errorf("got %+v", out)
	}
}
