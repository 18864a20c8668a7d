package frame

import (
	"encoding/binary"
	"testing"
)

func TestPackRGB565(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    uint16
	}{
		{"black", 0, 0, 0, 0x0000},
		{"white", 255, 255, 255, 0xFFFF},
		{"red", 255, 0, 0, 0xF800},
		{"green", 0, 255, 0, 0x07E0},
		{"blue", 0, 0, 255, 0x001F},
		{"truncated_low_bits", 0x07, 0x03, 0x07, 0x0000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PackRGB565(tc.r, tc.g, tc.b); got != tc.want {
				t.Errorf("PackRGB565(%d,%d,%d) = %#04x, want %#04x", tc.r, tc.g, tc.b, got, tc.want)
			}
		})
	}
}

func TestEncodeRegionIdentity(t *testing.T) {
	f := New(4, 4)
	f.SetRGB(1, 2, 255, 0, 0)
	f.SetRGB(2, 2, 0, 0, 255)

	e := NewEncoder(DefaultCorrection(), false)
	got := e.EncodeRegion(f, 1, 2, 2, 1)
	if len(got) != 4 {
		t.Fatalf("payload length = %d, want 4", len(got))
	}
	if v := binary.BigEndian.Uint16(got[0:2]); v != 0xF800 {
		t.Errorf("pixel (1,2) = %#04x, want 0xF800", v)
	}
	if v := binary.BigEndian.Uint16(got[2:4]); v != 0x001F {
		t.Errorf("pixel (2,2) = %#04x, want 0x001F", v)
	}
}

func TestEncodeRegionRowMajorPlacement(t *testing.T) {
	// Distinct value per pixel so offsets are checkable.
	f := New(3, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			f.SetRGB(x, y, uint8(x*80), uint8(y*80), 0)
		}
	}
	e := NewEncoder(DefaultCorrection(), false)
	got := e.EncodeRegion(f, 1, 1, 2, 2)
	want := []uint16{
		PackRGB565(80, 80, 0), PackRGB565(160, 80, 0),
		PackRGB565(80, 160, 0), PackRGB565(160, 160, 0),
	}
	for i, wv := range want {
		if gv := binary.BigEndian.Uint16(got[i*2:]); gv != wv {
			t.Errorf("pixel %d = %#04x, want %#04x", i, gv, wv)
		}
	}
}

func TestEncoderCorrection(t *testing.T) {
	f := New(1, 1)
	f.SetRGB(0, 0, 128, 128, 128)

	// Gamma 2.0 darkens midtones: (128/255)^2*255 ≈ 64.
	e := NewEncoder(Correction{Gamma: 2.0, WBScale: [3]float64{1, 1, 1}}, false)
	got := binary.BigEndian.Uint16(e.EncodeRegion(f, 0, 0, 1, 1))
	if got != PackRGB565(64, 64, 64) {
		t.Errorf("gamma-corrected pixel = %#04x, want %#04x", got, PackRGB565(64, 64, 64))
	}

	// White balance scales channels independently.
	e = NewEncoder(Correction{Gamma: 1.0, WBScale: [3]float64{1.0, 0.5, 0.25}}, false)
	got = binary.BigEndian.Uint16(e.EncodeRegion(f, 0, 0, 1, 1))
	if got != PackRGB565(128, 64, 32) {
		t.Errorf("wb-corrected pixel = %#04x, want %#04x", got, PackRGB565(128, 64, 32))
	}
}

func TestEncoderDitherFlatRegion(t *testing.T) {
	// A color already on the RGB565 lattice accumulates no error, so the
	// dithered output matches the direct encoding exactly.
	f := New(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			f.SetRGB(x, y, 0xF8, 0xFC, 0xF8)
		}
	}
	direct := NewEncoder(DefaultCorrection(), false).EncodeRegion(f, 0, 0, 8, 8)
	dithered := NewEncoder(DefaultCorrection(), true).EncodeRegion(f, 0, 0, 8, 8)
	if len(direct) != len(dithered) {
		t.Fatalf("length mismatch: %d vs %d", len(direct), len(dithered))
	}
	for i := range direct {
		if direct[i] != dithered[i] {
			t.Fatalf("byte %d differs: %#02x vs %#02x", i, direct[i], dithered[i])
		}
	}
}

func TestEncodeRegionDegenerate(t *testing.T) {
	f := New(4, 4)
	e := NewEncoder(DefaultCorrection(), false)
	if got := e.EncodeRegion(f, 0, 0, 0, 4); got != nil {
		t.Errorf("zero-width region payload = %d bytes, want nil", len(got))
	}
	if got := e.EncodeRegion(f, 0, 0, 4, 0); got != nil {
		t.Errorf("zero-height region payload = %d bytes, want nil", len(got))
	}
}

func TestResizeNearest(t *testing.T) {
	f := New(2, 2)
	f.SetRGB(0, 0, 10, 0, 0)
	f.SetRGB(1, 0, 20, 0, 0)
	f.SetRGB(0, 1, 30, 0, 0)
	f.SetRGB(1, 1, 40, 0, 0)

	up := f.Resize(4, 4)
	if up.Width != 4 || up.Height != 4 {
		t.Fatalf("resized to %dx%d, want 4x4", up.Width, up.Height)
	}
	if r, _, _ := up.RGB(0, 0); r != 10 {
		t.Errorf("up(0,0).r = %d, want 10", r)
	}
	if r, _, _ := up.RGB(3, 3); r != 40 {
		t.Errorf("up(3,3).r = %d, want 40", r)
	}

	if same := f.Resize(2, 2); same != f {
		t.Error("same-size resize should return the receiver")
	}
}

func TestToImage(t *testing.T) {
	f := New(2, 1)
	f.SetRGB(1, 0, 1, 2, 3)
	img := f.ToImage()
	c := img.RGBAAt(1, 0)
	if c.R != 1 || c.G != 2 || c.B != 3 || c.A != 0xFF {
		t.Errorf("image pixel = %+v, want {1 2 3 255}", c)
	}
}
