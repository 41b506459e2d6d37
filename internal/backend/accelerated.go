package backend

import (
	"fmt"
	"image"
	"sync/atomic"

	"rotsprite/internal/convert"
	"rotsprite/internal/patch"
	"rotsprite/internal/pixelmap"
)

// Texture is the accelerated backend's image: truecolour pixels plus the
// handle they were uploaded under.
type Texture struct {
	Handle     uint32
	Image      *image.NRGBA
	LeftOffset int
	TopOffset  int
}

// Size returns the texture dimensions.
func (t *Texture) Size() (int, int) {
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Offsets returns the draw alignment offsets.
func (t *Texture) Offsets() (int, int) { return t.LeftOffset, t.TopOffset }

// AcceleratedBackend keeps external images in truecolour and expands
// palette patches on decode.
type AcceleratedBackend struct {
	pal     *convert.Palette
	handles atomic.Uint32
}

// NewAccelerated returns the accelerated backend. pal expands indexed
// patches.
func NewAccelerated(pal *convert.Palette) *AcceleratedBackend {
	if pal == nil {
		pal = convert.DefaultPalette()
	}
	return &AcceleratedBackend{pal: pal}
}

func (b *AcceleratedBackend) Kind() Kind { return Accelerated }

// Decode accepts binary patches and external images.
func (b *AcceleratedBackend) Decode(data []byte) (patch.Image, error) {
	switch f := convert.Sniff(data); {
	case f == convert.FormatPatch:
		p, err := patch.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("backend: %w: %w", convert.ErrDecode, err)
		}
		return b.upload(convert.PatchToImage(p, b.pal), p.LeftOffset, p.TopOffset), nil
	case f.External(), f == convert.FormatJPEG:
		img, offs, err := convert.DecodeExternal(data)
		if err != nil {
			return nil, err
		}
		return b.upload(img, offs.X, offs.Y), nil
	default:
		return nil, fmt.Errorf("backend: %w: unrecognised image (%s)", convert.ErrDecode, f)
	}
}

// Rotate copies texels through m into a new texture.
func (b *AcceleratedBackend) Rotate(src patch.Image, m *pixelmap.PixelMap) (patch.Image, error) {
	t, ok := src.(*Texture)
	if !ok {
		return nil, fmt.Errorf("backend: accelerated cannot rotate %T", src)
	}
	sb := t.Image.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			sx, sy, ok := m.Lookup(x, y)
			if !ok {
				continue
			}
			dst.SetNRGBA(x, y, t.Image.NRGBAAt(sb.Min.X+sx, sb.Min.Y+sy))
		}
	}
	left, top := m.Offsets(t.LeftOffset, t.TopOffset)
	return b.upload(dst, left, top), nil
}

func (b *AcceleratedBackend) upload(img *image.NRGBA, left, top int) *Texture {
	return &Texture{
		Handle:     b.handles.Add(1),
		Image:      img,
		LeftOffset: left,
		TopOffset:  top,
	}
}
