package wii

import "testing"

func TestBe32(t *testing.T) {
	got := be32([]byte{0x01, 0x02, 0x03, 0x04})
	want := uint32(0x01020304)
	if got != want {
		t.Errorf("be32() = 0x%08x, want 0x%08x", got, want)
	}
}

func TestBe34(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want uint64
	}{
		{"zero", []byte{0x00, 0x00, 0x00, 0x00}, 0},
		{"one unit shifts to four bytes", []byte{0x00, 0x00, 0x00, 0x01}, 4},
		{"matches be32<<2", []byte{0x00, 0x01, 0x00, 0x00}, uint64(be32([]byte{0x00, 0x01, 0x00, 0x00})) << 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := be34(tt.in); got != tt.want {
				t.Errorf("be34(%x) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestBe64(t *testing.T) {
	got := be64([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00})
	want := uint64(0x100)
	if got != want {
		t.Errorf("be64() = 0x%x, want 0x%x", got, want)
	}
}
