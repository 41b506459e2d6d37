package raster

import "testing"

func TestNewFlatIsTransparent(t *testing.T) {
	f := NewFlat(3, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if _, ok := f.Pixel(x, y); ok {
				t.Fatalf("pixel (%d,%d) should be a hole", x, y)
			}
		}
	}
	f.Set(1, 1, 12)
	if v, ok := f.Pixel(1, 1); !ok || v != 12 {
		t.Fatalf("Pixel(1,1) = %d,%t", v, ok)
	}
	if _, ok := f.Pixel(3, 0); ok {
		t.Fatal("out of range pixel reported opaque")
	}
}

func TestAlphaFlatUsesAlphaNotIndex(t *testing.T) {
	f := NewAlphaFlat(2, 2)
	// index 0xFF with alpha is a real colour here, not a hole
	f.Set(0, 0, Transparent, 0x80)
	f.Set(1, 0, 7, 0)

	if v, ok := f.Pixel(0, 0); !ok || v != Transparent {
		t.Fatalf("Pixel(0,0) = %d,%t", v, ok)
	}
	if _, ok := f.Pixel(1, 0); ok {
		t.Fatal("zero alpha should be a hole")
	}
	if f.Pix[0] != 0x80FF {
		t.Fatalf("packed value = %#x", f.Pix[0])
	}
}
