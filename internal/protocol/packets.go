package protocol

// Confirm is the sender's unconditional acknowledgement of a Connect.
type Confirm struct {
	OwnerID    int32
	ReceiverID int32
}

// EncodeConfirm writes a Confirm packet: prefix + receiver_id (9 bytes).
func EncodeConfirm(p Confirm) []byte {
	buf := make([]byte, CommonHeaderSize+4)
	PutHeader(buf, Header{OwnerID: p.OwnerID, Kind: uint8(KindConfirm)})
	ByteOrder.PutUint32(buf[CommonHeaderSize:], uint32(p.ReceiverID))
	return buf
}

// DecodeConfirm parses a whole Confirm packet, common header included.
func DecodeConfirm(buf []byte) (Confirm, error) {
	hdr, err := ReadHeader(buf)
	if err != nil {
		return Confirm{}, err
	}
	r := newReader(buf[CommonHeaderSize:])
	rid, err := r.int32()
	if err != nil {
		return Confirm{}, err
	}
	return Confirm{OwnerID: hdr.OwnerID, ReceiverID: rid}, nil
}

// EncodeHeartbeat writes a Heartbeat packet (5 bytes, either direction).
func EncodeHeartbeat(ownerID int32, kind uint8) []byte {
	buf := make([]byte, CommonHeaderSize)
	PutHeader(buf, Header{OwnerID: ownerID, Kind: kind})
	return buf
}

// Video is a single video packet: one fragment of a VideoSenderMessage.
type Video struct {
	OwnerID     int32
	FrameID     int32
	PacketIndex int32
	PacketCount int32
	Payload     []byte
}

// videoReservedSize is the 3 reserved bytes in the layout
// CommonHeaderSize + 3 reserved bytes (aligning the three int32 fields
// that follow) + 3*4 bytes of fields, totaling VideoPacketHeaderSize. Parity packets share this exact layout so the
// payload region starts at the same offset for both kinds, which is
// what makes XOR-ing a video packet against a parity packet well
// defined.
const videoReservedSize = VideoPacketHeaderSize - CommonHeaderSize - 12

// EncodeVideo writes a Video packet.
func EncodeVideo(p Video) []byte {
	buf := make([]byte, VideoPacketHeaderSize+len(p.Payload))
	PutHeader(buf, Header{OwnerID: p.OwnerID, Kind: uint8(KindVideo)})
	c := newCursor(buf[CommonHeaderSize:])
	c.pos += videoReservedSize
	c.putInt32(p.FrameID)
	c.putInt32(p.PacketIndex)
	c.putInt32(p.PacketCount)
	c.putBytes(p.Payload)
	return buf
}

// DecodeVideo parses a Video packet.
func DecodeVideo(buf []byte) (Video, error) {
	hdr, err := ReadHeader(buf)
	if err != nil {
		return Video{}, err
	}
	if len(buf) < VideoPacketHeaderSize {
		return Video{}, ErrTooShort
	}
	r := newReader(buf[CommonHeaderSize:])
	if _, err := r.bytes(videoReservedSize); err != nil {
		return Video{}, err
	}
	frameID, err := r.int32()
	if err != nil {
		return Video{}, err
	}
	idx, err := r.int32()
	if err != nil {
		return Video{}, err
	}
	count, err := r.int32()
	if err != nil {
		return Video{}, err
	}
	if count <= 0 || idx < 0 || idx >= count {
		return Video{}, ErrMalformed
	}
	return Video{
		OwnerID:     hdr.OwnerID,
		FrameID:     frameID,
		PacketIndex: idx,
		PacketCount: count,
		Payload:     r.rest(),
	}, nil
}

// Parity is one XOR parity packet covering up to fec.GroupSize video
// packets of a frame.
type Parity struct {
	OwnerID          int32
	FrameID          int32
	PacketIndex      int32
	VideoPacketCount int32
	Payload          []byte
}

// EncodeParity writes a Parity packet. Payload must already be padded
// to MaxVideoPacketContentSize by the caller (see internal/fec).
func EncodeParity(p Parity) []byte {
	buf := make([]byte, VideoPacketHeaderSize+len(p.Payload))
	PutHeader(buf, Header{OwnerID: p.OwnerID, Kind: uint8(KindParity)})
	c := newCursor(buf[CommonHeaderSize:])
	c.pos += videoReservedSize
	c.putInt32(p.FrameID)
	c.putInt32(p.PacketIndex)
	c.putInt32(p.VideoPacketCount)
	c.putBytes(p.Payload)
	return buf
}

// DecodeParity parses a Parity packet.
func DecodeParity(buf []byte) (Parity, error) {
	hdr, err := ReadHeader(buf)
	if err != nil {
		return Parity{}, err
	}
	if len(buf) < VideoPacketHeaderSize {
		return Parity{}, ErrTooShort
	}
	r := newReader(buf[CommonHeaderSize:])
	if _, err := r.bytes(videoReservedSize); err != nil {
		return Parity{}, err
	}
	frameID, err := r.int32()
	if err != nil {
		return Parity{}, err
	}
	idx, err := r.int32()
	if err != nil {
		return Parity{}, err
	}
	videoCount, err := r.int32()
	if err != nil {
		return Parity{}, err
	}
	if idx < 0 || videoCount <= 0 {
		return Parity{}, ErrMalformed
	}
	return Parity{
		OwnerID:          hdr.OwnerID,
		FrameID:          frameID,
		PacketIndex:      idx,
		VideoPacketCount: videoCount,
		Payload:          r.rest(),
	}, nil
}

// Audio is one Opus-encoded audio frame.
type Audio struct {
	OwnerID int32
	FrameID int32
	Payload []byte
}

const audioReservedSize = AudioPacketHeaderSize - CommonHeaderSize - 4

// EncodeAudio writes an Audio packet.
func EncodeAudio(p Audio) []byte {
	buf := make([]byte, AudioPacketHeaderSize+len(p.Payload))
	PutHeader(buf, Header{OwnerID: p.OwnerID, Kind: uint8(KindAudio)})
	c := newCursor(buf[CommonHeaderSize:])
	c.putInt32(p.FrameID)
	c.pos += audioReservedSize
	c.putBytes(p.Payload)
	return buf
}

// DecodeAudio parses an Audio packet.
func DecodeAudio(buf []byte) (Audio, error) {
	hdr, err := ReadHeader(buf)
	if err != nil {
		return Audio{}, err
	}
	if len(buf) < AudioPacketHeaderSize {
		return Audio{}, ErrTooShort
	}
	r := newReader(buf[CommonHeaderSize:])
	frameID, err := r.int32()
	if err != nil {
		return Audio{}, err
	}
	if _, err := r.bytes(audioReservedSize); err != nil {
		return Audio{}, err
	}
	return Audio{OwnerID: hdr.OwnerID, FrameID: frameID, Payload: r.rest()}, nil
}

// Connect is the receiver's join request.
type Connect struct {
	OwnerID        int32
	VideoRequested bool
	AudioRequested bool
}

// EncodeConnect writes a Connect packet (7 bytes).
func EncodeConnect(p Connect) []byte {
	buf := make([]byte, CommonHeaderSize+2)
	PutHeader(buf, Header{OwnerID: p.OwnerID, Kind: uint8(KindConnect)})
	c := newCursor(buf[CommonHeaderSize:])
	c.putBool(p.VideoRequested)
	c.putBool(p.AudioRequested)
	return buf
}

// DecodeConnect parses a Connect packet.
func DecodeConnect(buf []byte) (Connect, error) {
	hdr, err := ReadHeader(buf)
	if err != nil {
		return Connect{}, err
	}
	r := newReader(buf[CommonHeaderSize:])
	video, err := r.boolean()
	if err != nil {
		return Connect{}, err
	}
	audio, err := r.boolean()
	if err != nil {
		return Connect{}, err
	}
	return Connect{OwnerID: hdr.OwnerID, VideoRequested: video, AudioRequested: audio}, nil
}

// Report is the receiver's acknowledgement of the highest fully
// rendered frame id.
type Report struct {
	OwnerID int32
	FrameID int32
}

// EncodeReport writes a Report packet. Trailing timing-telemetry floats
// are an optional receiver-side extension; duplexcast's own receiver
// never sends them.
func EncodeReport(p Report) []byte {
	buf := make([]byte, CommonHeaderSize+4)
	PutHeader(buf, Header{OwnerID: p.OwnerID, Kind: uint8(KindReport)})
	ByteOrder.PutUint32(buf[CommonHeaderSize:], uint32(p.FrameID))
	return buf
}

// DecodeReport parses a Report packet, ignoring any trailing bytes
// (reserved for timing telemetry the sender doesn't need).
func DecodeReport(buf []byte) (Report, error) {
	hdr, err := ReadHeader(buf)
	if err != nil {
		return Report{}, err
	}
	r := newReader(buf[CommonHeaderSize:])
	frameID, err := r.int32()
	if err != nil {
		return Report{}, err
	}
	return Report{OwnerID: hdr.OwnerID, FrameID: frameID}, nil
}

// Request is a NACK naming missing packet indices, or a whole-frame
// request when AllPackets is set.
type Request struct {
	OwnerID             int32
	FrameID             int32
	AllPackets          bool
	VideoPacketIndices  []int32
	ParityPacketIndices []int32
}

// EncodeRequest writes a Request packet.
func EncodeRequest(p Request) []byte {
	size := CommonHeaderSize + 4 + 1 + 4 + 4 + 4*len(p.VideoPacketIndices) + 4*len(p.ParityPacketIndices)
	buf := make([]byte, size)
	PutHeader(buf, Header{OwnerID: p.OwnerID, Kind: uint8(KindRequest)})
	c := newCursor(buf[CommonHeaderSize:])
	c.putInt32(p.FrameID)
	c.putBool(p.AllPackets)
	c.putInt32(int32(len(p.VideoPacketIndices)))
	c.putInt32(int32(len(p.ParityPacketIndices)))
	for _, idx := range p.VideoPacketIndices {
		c.putInt32(idx)
	}
	for _, idx := range p.ParityPacketIndices {
		c.putInt32(idx)
	}
	return buf
}

// DecodeRequest parses a Request packet.
func DecodeRequest(buf []byte) (Request, error) {
	hdr, err := ReadHeader(buf)
	if err != nil {
		return Request{}, err
	}
	r := newReader(buf[CommonHeaderSize:])
	frameID, err := r.int32()
	if err != nil {
		return Request{}, err
	}
	allPackets, err := r.boolean()
	if err != nil {
		return Request{}, err
	}
	videoCount, err := r.int32()
	if err != nil {
		return Request{}, err
	}
	parityCount, err := r.int32()
	if err != nil {
		return Request{}, err
	}
	if videoCount < 0 || parityCount < 0 {
		return Request{}, ErrMalformed
	}
	videoIdx := make([]int32, videoCount)
	for i := range videoIdx {
		v, err := r.int32()
		if err != nil {
			return Request{}, err
		}
		videoIdx[i] = v
	}
	parityIdx := make([]int32, parityCount)
	for i := range parityIdx {
		v, err := r.int32()
		if err != nil {
			return Request{}, err
		}
		parityIdx[i] = v
	}
	return Request{
		OwnerID:             hdr.OwnerID,
		FrameID:             frameID,
		AllPackets:          allPackets,
		VideoPacketIndices:  videoIdx,
		ParityPacketIndices: parityIdx,
	}, nil
}
