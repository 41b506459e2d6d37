package convert

import (
	"fmt"

	"rotsprite/internal/patch"
	"rotsprite/internal/raster"
)

// PatchToFlat rasterises a patch. Rows not covered by a post are left as
// raster.Transparent. A patch that uses raster.Transparent as an opaque
// colour cannot be told apart from its holes and is rejected with
// ErrUnsupportedFormat; PatchToAlphaFlat keeps it.
func PatchToFlat(p *patch.Patch) (*raster.Flat, error) {
	f := raster.NewFlat(p.Width, p.Height)
	for x, col := range p.Columns {
		for _, post := range col.Posts {
			for i, v := range post.Pixels {
				y := post.TopDelta + i
				if y < 0 || y >= p.Height {
					continue
				}
				if v == raster.Transparent {
					return nil, fmt.Errorf("convert: %w: opaque index %d at (%d,%d) collides with the hole marker",
						ErrUnsupportedFormat, v, x, y)
				}
				f.Set(x, y, v)
			}
		}
	}
	return f, nil
}

// PatchToAlphaFlat rasterises a patch into an alpha flat. Every palette
// index survives, and TransparentFlatToPatch inverts it exactly.
func PatchToAlphaFlat(p *patch.Patch) *raster.AlphaFlat {
	f := raster.NewAlphaFlat(p.Width, p.Height)
	for x, col := range p.Columns {
		for _, post := range col.Posts {
			for i, v := range post.Pixels {
				y := post.TopDelta + i
				if y >= 0 && y < p.Height {
					f.Set(x, y, v, 0xFF)
				}
			}
		}
	}
	return f
}

// FlatToPatch builds a patch from an indexed flat. With transparency set,
// raster.Transparent pixels become holes; otherwise every pixel is opaque.
func FlatToPatch(f *raster.Flat, left, top int, transparency bool) *patch.Patch {
	p := &patch.Patch{
		Width:      f.Width,
		Height:     f.Height,
		LeftOffset: left,
		TopOffset:  top,
		Columns:    make([]patch.Column, f.Width),
	}
	for x := 0; x < f.Width; x++ {
		var b patch.ColumnBuilder
		for y := 0; y < f.Height; y++ {
			v := f.Pix[y*f.Width+x]
			if transparency && v == raster.Transparent {
				b.Skip()
				continue
			}
			b.Opaque(v)
		}
		p.Columns[x] = b.Column()
	}
	return p
}

// TransparentFlatToPatch builds a patch from an alpha flat. Pixels with zero
// alpha become holes.
func TransparentFlatToPatch(f *raster.AlphaFlat, left, top int) *patch.Patch {
	p := &patch.Patch{
		Width:      f.Width,
		Height:     f.Height,
		LeftOffset: left,
		TopOffset:  top,
		Columns:    make([]patch.Column, f.Width),
	}
	for x := 0; x < f.Width; x++ {
		var b patch.ColumnBuilder
		for y := 0; y < f.Height; y++ {
			if v, ok := f.Pixel(x, y); ok {
				b.Opaque(v)
			} else {
				b.Skip()
			}
		}
		p.Columns[x] = b.Column()
	}
	return p
}

// FlatSize guesses the side of a square flat from its byte length.
// Unrecognised sizes report ok=false.
func FlatSize(n int) (side int, ok bool) {
	switch n {
	case 4194304:
		return 2048, true
	case 1048576:
		return 1024, true
	case 262144:
		return 512, true
	case 65536:
		return 256, true
	case 16384:
		return 128, true
	case 4096:
		return 64, true
	case 1024:
		return 32, true
	}
	return 0, false
}

// RawFlat wraps raw flat bytes whose size FlatSize recognises.
func RawFlat(data []byte) (*raster.Flat, bool) {
	side, ok := FlatSize(len(data))
	if !ok {
		return nil, false
	}
	pix := make([]uint8, len(data))
	copy(pix, data)
	return &raster.Flat{Width: side, Height: side, Pix: pix}, true
}
