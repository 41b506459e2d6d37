package backend

import (
	"fmt"

	"rotsprite/internal/convert"
	"rotsprite/internal/patch"
	"rotsprite/internal/pixelmap"
)

// RasterBackend decodes to column patches.
type RasterBackend struct {
	pal *convert.Palette
}

// NewRaster returns the software backend. External images are quantised
// against pal.
func NewRaster(pal *convert.Palette) *RasterBackend {
	if pal == nil {
		pal = convert.DefaultPalette()
	}
	return &RasterBackend{pal: pal}
}

func (b *RasterBackend) Kind() Kind { return Raster }

// Decode accepts binary patches and external images.
func (b *RasterBackend) Decode(data []byte) (patch.Image, error) {
	switch f := convert.Sniff(data); {
	case f == convert.FormatPatch:
		p, err := patch.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("backend: %w: %w", convert.ErrDecode, err)
		}
		return p, nil
	case f.External(), f == convert.FormatJPEG:
		return convert.ExternalToPatch(data, b.pal)
	default:
		return nil, fmt.Errorf("backend: %w: unrecognised image (%s)", convert.ErrDecode, f)
	}
}

// Rotate resamples every destination column of m from src.
func (b *RasterBackend) Rotate(src patch.Image, m *pixelmap.PixelMap) (patch.Image, error) {
	p, ok := src.(*patch.Patch)
	if !ok {
		return nil, fmt.Errorf("backend: raster cannot rotate %T", src)
	}
	// column lookups on a flat are O(1), on the patch they walk posts; the
	// alpha flat keeps opaque pixels of every index
	flat := convert.PatchToAlphaFlat(p)
	out := &patch.Patch{
		Width:   m.Width,
		Height:  m.Height,
		Columns: make([]patch.Column, m.Width),
	}
	out.LeftOffset, out.TopOffset = m.Offsets(p.LeftOffset, p.TopOffset)
	for x := 0; x < m.Width; x++ {
		out.Columns[x] = m.ApplyToColumn(x, flat)
	}
	return out, nil
}
