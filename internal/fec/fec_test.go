package fec

import (
	"bytes"
	"testing"
)

func TestBuildParityXOR(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03}
	b := []byte{0x0F, 0xF0, 0x00}
	parity, err := BuildParity([][]byte{a, b})
	if err != nil {
		t.Fatalf("BuildParity: %v", err)
	}
	want := []byte{0x0E, 0xF2, 0x03}
	if !bytes.Equal(parity, want) {
		t.Errorf("parity = %v, want %v", parity, want)
	}
}

func TestBuildParitySizeMismatch(t *testing.T) {
	_, err := BuildParity([][]byte{{1, 2}, {1, 2, 3}})
	if err != ErrSizeMismatch {
		t.Errorf("err = %v, want ErrSizeMismatch", err)
	}
}

func TestReconstructRecoversMissingPayload(t *testing.T) {
	a := []byte{0x01, 0x02, 0x03, 0x04}
	b := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	parity, err := BuildParity([][]byte{a, b})
	if err != nil {
		t.Fatalf("BuildParity: %v", err)
	}

	// Only 'a' present, 'b' missing — recover b from parity and a.
	recovered, err := Reconstruct(parity, [][]byte{a})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !bytes.Equal(recovered, b) {
		t.Errorf("recovered = %v, want %v", recovered, b)
	}

	// Symmetric: only 'b' present recovers 'a'.
	recovered, err = Reconstruct(parity, [][]byte{b})
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !bytes.Equal(recovered, a) {
		t.Errorf("recovered = %v, want %v", recovered, a)
	}
}

func TestPadExtendsShortPayload(t *testing.T) {
	got := Pad([]byte{1, 2}, 5)
	want := []byte{1, 2, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("Pad = %v, want %v", got, want)
	}
}

func TestGroupCountAndBounds(t *testing.T) {
	cases := []struct {
		n, wantGroups int
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
	}
	for _, c := range cases {
		if got := GroupCount(c.n); got != c.wantGroups {
			t.Errorf("GroupCount(%d) = %d, want %d", c.n, got, c.wantGroups)
		}
	}

	min, max := GroupBounds(1, 5)
	if min != 2 || max != 4 {
		t.Errorf("GroupBounds(1, 5) = (%d, %d), want (2, 4)", min, max)
	}
	// Final, partial group.
	min, max = GroupBounds(2, 5)
	if min != 4 || max != 5 {
		t.Errorf("GroupBounds(2, 5) = (%d, %d), want (4, 5)", min, max)
	}
}
