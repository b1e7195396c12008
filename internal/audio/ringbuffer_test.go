package audio

import "testing"

func TestRingBufferWriteReadRoundTrip(t *testing.T) {
	r := NewRingBuffer()
	samples := []float32{1, 2, 3, 4}
	if dropped := r.Write(samples); dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if r.Fill() != 4 {
		t.Errorf("Fill() = %d, want 4", r.Fill())
	}

	dst := make([]float32, 4)
	n := r.Read(dst)
	if n != 4 {
		t.Errorf("Read() returned %d, want 4", n)
	}
	for i, v := range samples {
		if dst[i] != v {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], v)
		}
	}
	if r.Fill() != 0 {
		t.Errorf("Fill() = %d after full read, want 0", r.Fill())
	}
}

func TestRingBufferUnderflowPadsSilence(t *testing.T) {
	r := NewRingBuffer()
	r.Write([]float32{1, 2})

	dst := make([]float32, 4)
	n := r.Read(dst)
	if n != 2 {
		t.Errorf("Read() = %d, want 2 real samples", n)
	}
	if dst[2] != 0 || dst[3] != 0 {
		t.Errorf("dst = %v, want trailing zeros", dst)
	}
}

func TestRingBufferOverflowDropsAndReportsCount(t *testing.T) {
	r := NewRingBuffer()
	big := make([]float32, Capacity+10)
	dropped := r.Write(big)
	if dropped != 10 {
		t.Errorf("dropped = %d, want 10", dropped)
	}
	if r.Fill() != Capacity {
		t.Errorf("Fill() = %d, want Capacity (%d)", r.Fill(), Capacity)
	}
}

func TestRingBufferHasRoomForFrame(t *testing.T) {
	r := NewRingBuffer()
	if !r.HasRoomForFrame() {
		t.Fatalf("HasRoomForFrame() = false on empty buffer")
	}
	r.Write(make([]float32, Capacity))
	if r.HasRoomForFrame() {
		t.Errorf("HasRoomForFrame() = true on full buffer")
	}
}
