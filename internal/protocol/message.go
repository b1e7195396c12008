package protocol

// FloorPlane is the optional floor-plane estimate carried in a video
// message (nx, ny, nz, d).
type FloorPlane struct {
	NX, NY, NZ, D float32
}

// Intrinsics holds the depth-camera intrinsic parameters carried in
// every video message, matching the Azure Kinect calibration struct
// these are distilled from (see original_source/cpp/src/azure_kinect).
// It keeps the full named set of 15 floats; round-trip correctness,
// not the exact count, is what's tested (see DESIGN.md).
type Intrinsics struct {
	CX, CY, FX, FY         float32
	K1, K2, K3, K4, K5, K6 float32
	CODX, CODY, P1, P2     float32
	MaxRadius              float32
}

// values lists the intrinsics in wire order.
func (in Intrinsics) values() [15]float32 {
	return [15]float32{
		in.CX, in.CY, in.FX, in.FY,
		in.K1, in.K2, in.K3, in.K4, in.K5, in.K6,
		in.CODX, in.CODY, in.P1, in.P2,
		in.MaxRadius,
	}
}

// VideoMessage is the logical unit of one compressed RGB-D frame,
// carried in the message-in-payload layout split across video packets.
type VideoMessage struct {
	FrameTimeStampMs float32
	Keyframe         bool
	Width, Height    int32
	Intrinsics       Intrinsics
	ColorBytes       []byte
	DepthBytes       []byte
	Floor            *FloorPlane
}

// EncodeVideoMessage serializes a VideoMessage into its fixed field
// order.
func EncodeVideoMessage(m VideoMessage) []byte {
	size := 4 + 1 + 4 + 4 + 15*4 + 4 + len(m.ColorBytes) + 4 + len(m.DepthBytes) + 1
	if m.Floor != nil {
		size += 4 * 4
	}
	buf := make([]byte, size)
	c := newCursor(buf)
	c.putFloat32(m.FrameTimeStampMs)
	c.putBool(m.Keyframe)
	c.putInt32(m.Width)
	c.putInt32(m.Height)
	for _, v := range m.Intrinsics.values() {
		c.putFloat32(v)
	}
	c.putInt32(int32(len(m.ColorBytes)))
	c.putBytes(m.ColorBytes)
	c.putInt32(int32(len(m.DepthBytes)))
	c.putBytes(m.DepthBytes)
	c.putBool(m.Floor != nil)
	if m.Floor != nil {
		c.putFloat32(m.Floor.NX)
		c.putFloat32(m.Floor.NY)
		c.putFloat32(m.Floor.NZ)
		c.putFloat32(m.Floor.D)
	}
	return buf
}

// DecodeVideoMessage parses a VideoMessage from a concatenated byte
// stream. It only consumes the bytes its declared lengths dictate, so
// trailing padding bytes (left over from a FEC-reconstructed final
// packet, see internal/fec) are simply never read.
func DecodeVideoMessage(buf []byte) (VideoMessage, error) {
	r := newReader(buf)
	var m VideoMessage
	var err error

	if m.FrameTimeStampMs, err = r.float32(); err != nil {
		return VideoMessage{}, err
	}
	if m.Keyframe, err = r.boolean(); err != nil {
		return VideoMessage{}, err
	}
	if m.Width, err = r.int32(); err != nil {
		return VideoMessage{}, err
	}
	if m.Height, err = r.int32(); err != nil {
		return VideoMessage{}, err
	}
	var vals [15]float32
	for i := range vals {
		if vals[i], err = r.float32(); err != nil {
			return VideoMessage{}, err
		}
	}
	m.Intrinsics = Intrinsics{
		CX: vals[0], CY: vals[1], FX: vals[2], FY: vals[3],
		K1: vals[4], K2: vals[5], K3: vals[6], K4: vals[7], K5: vals[8], K6: vals[9],
		CODX: vals[10], CODY: vals[11], P1: vals[12], P2: vals[13],
		MaxRadius: vals[14],
	}

	colorLen, err := r.int32()
	if err != nil {
		return VideoMessage{}, err
	}
	if m.ColorBytes, err = r.bytes(int(colorLen)); err != nil {
		return VideoMessage{}, err
	}
	depthLen, err := r.int32()
	if err != nil {
		return VideoMessage{}, err
	}
	if m.DepthBytes, err = r.bytes(int(depthLen)); err != nil {
		return VideoMessage{}, err
	}
	hasFloor, err := r.boolean()
	if err != nil {
		return VideoMessage{}, err
	}
	if hasFloor {
		var fp FloorPlane
		if fp.NX, err = r.float32(); err != nil {
			return VideoMessage{}, err
		}
		if fp.NY, err = r.float32(); err != nil {
			return VideoMessage{}, err
		}
		if fp.NZ, err = r.float32(); err != nil {
			return VideoMessage{}, err
		}
		if fp.D, err = r.float32(); err != nil {
			return VideoMessage{}, err
		}
		m.Floor = &fp
	}
	return m, nil
}
