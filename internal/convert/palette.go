package convert

import (
	"image"
	"image/color"
	"image/color/palette"

	"rotsprite/internal/patch"
	"rotsprite/internal/raster"
)

// Palette maps 8-bit indices to colours. Index raster.Transparent is never
// produced by Nearest.
type Palette [256]color.NRGBA

// DefaultPalette returns the Plan 9 palette with the sentinel index cleared.
func DefaultPalette() *Palette {
	var p Palette
	for i, c := range palette.Plan9 {
		p[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}
	p[raster.Transparent] = color.NRGBA{}
	return &p
}

// Nearest returns the index of the closest opaque palette colour by squared
// RGB distance.
func (p *Palette) Nearest(c color.Color) uint8 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	best, bestDist := 0, -1
	for i := 0; i < len(p); i++ {
		if uint8(i) == raster.Transparent {
			continue
		}
		dr := int(p[i].R) - int(n.R)
		dg := int(p[i].G) - int(n.G)
		db := int(p[i].B) - int(n.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return uint8(best)
}

// nearestCache memoises Nearest for one conversion.
type nearestCache struct {
	pal  *Palette
	seen map[color.NRGBA]uint8
}

func newNearestCache(pal *Palette) *nearestCache {
	return &nearestCache{pal: pal, seen: make(map[color.NRGBA]uint8)}
}

func (nc *nearestCache) index(c color.NRGBA) uint8 {
	c.A = 0xFF
	if v, ok := nc.seen[c]; ok {
		return v
	}
	v := nc.pal.Nearest(c)
	nc.seen[c] = v
	return v
}

// PatchToImage expands a patch to truecolour using pal. Holes become fully
// transparent.
func PatchToImage(p *patch.Patch, pal *Palette) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for x, col := range p.Columns {
		for _, post := range col.Posts {
			for i, v := range post.Pixels {
				img.SetNRGBA(x, post.TopDelta+i, opaque(pal[v]))
			}
		}
	}
	return img
}

// FlatToImage expands an indexed flat to truecolour. With transparency set,
// raster.Transparent pixels stay fully transparent; otherwise every pixel is
// drawn, as FlatToPatch does.
func FlatToImage(f *raster.Flat, pal *Palette, transparency bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.Pix[y*f.Width+x]
			if transparency && v == raster.Transparent {
				continue
			}
			img.SetNRGBA(x, y, opaque(pal[v]))
		}
	}
	return img
}

func opaque(c color.NRGBA) color.NRGBA {
	c.A = 0xFF
	return c
}
