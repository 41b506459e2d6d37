package raster

// Transparent is the palette index reserved as the "no pixel" sentinel in
// indexed flats.
const Transparent uint8 = 0xFF

// Flat holds a palette-indexed raster as a flat row-major slice for cache
// locality. Pixels equal to Transparent are treated as holes.
type Flat struct {
	Width  int
	Height int
	Pix    []uint8 // len = W*H
}

// NewFlat allocates a flat with every pixel set to Transparent.
func NewFlat(w, h int) *Flat {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = Transparent
	}
	return &Flat{Width: w, Height: h, Pix: pix}
}

// Pixel returns the index at (x, y); ok is false for holes and out of range.
func (f *Flat) Pixel(x, y int) (uint8, bool) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, false
	}
	v := f.Pix[y*f.Width+x]
	return v, v != Transparent
}

// Set writes an index at (x, y).
func (f *Flat) Set(x, y int, v uint8) {
	f.Pix[y*f.Width+x] = v
}

// AlphaFlat is a 16-bit raster: the low byte is the palette index and the
// high byte is alpha. Zero alpha is a hole.
type AlphaFlat struct {
	Width  int
	Height int
	Pix    []uint16
}

// NewAlphaFlat allocates a fully transparent alpha flat.
func NewAlphaFlat(w, h int) *AlphaFlat {
	return &AlphaFlat{Width: w, Height: h, Pix: make([]uint16, w*h)}
}

// Pixel returns the palette index at (x, y); ok is false when alpha is zero.
func (f *AlphaFlat) Pixel(x, y int) (uint8, bool) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, false
	}
	v := f.Pix[y*f.Width+x]
	return uint8(v), v&0xFF00 != 0
}

// Set stores index with the given alpha.
func (f *AlphaFlat) Set(x, y int, index, alpha uint8) {
	f.Pix[y*f.Width+x] = uint16(alpha)<<8 | uint16(index)
}
