package pixelmap

import (
	"fmt"
	"math"

	"rotsprite/internal/patch"
)

// Pivot is the rotation centre in source pixel coordinates.
type Pivot struct {
	X, Y int
}

// Center returns the default pivot for a w×h image.
func Center(w, h int) Pivot {
	return Pivot{X: w / 2, Y: h / 2}
}

// Source is anything that can answer palette lookups with transparency.
type Source interface {
	Pixel(x, y int) (uint8, bool)
}

// PixelMap maps every destination pixel of a rotated image back to a source
// pixel. It depends only on the source size, bucket, flip and pivot and is
// never modified after Build.
type PixelMap struct {
	Bucket       int
	Flip         bool
	Pivot        Pivot
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int

	// pivot after flipping, and the top-left corner of the destination
	// box relative to it
	px, py     int
	minX, minY int

	table []int32 // column-major, -1 = transparent
}

// Build computes the resampling table for rotating a w×h source by the
// angle of bucket about pivot. Flip mirrors the source horizontally first.
// Positive angles turn counter-clockwise on screen.
func Build(w, h, bucket int, flip bool, pivot Pivot) (*PixelMap, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("pixelmap: invalid source size %dx%d", w, h)
	}
	if bucket < 0 || bucket >= Angles {
		return nil, fmt.Errorf("pixelmap: bucket %d out of range [0,%d)", bucket, Angles)
	}

	px, py := pivot.X, pivot.Y
	if flip {
		px = w - px
	}
	c, s := cosTable[bucket], sinTable[bucket]

	// Bounding box of the rotated source rectangle, relative to the pivot.
	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	for _, cx := range [2]int64{int64(-px), int64(w - px)} {
		for _, cy := range [2]int64{int64(-py), int64(h - py)} {
			rx := cx*c + cy*s
			ry := -cx*s + cy*c
			minX = min(minX, floorFixed(rx))
			maxX = max(maxX, ceilFixed(rx))
			minY = min(minY, floorFixed(ry))
			maxY = max(maxY, ceilFixed(ry))
		}
	}

	m := &PixelMap{
		Bucket:       bucket,
		Flip:         flip,
		Pivot:        pivot,
		SourceWidth:  w,
		SourceHeight: h,
		Width:        max(maxX-minX, 1),
		Height:       max(maxY-minY, 1),
		px:           px,
		py:           py,
		minX:         minX,
		minY:         minY,
	}
	m.table = make([]int32, m.Width*m.Height)

	const half = FracUnit / 2
	i := 0
	for dx := 0; dx < m.Width; dx++ {
		vx := int64(minX+dx)*FracUnit + half
		for dy := 0; dy < m.Height; dy++ {
			vy := int64(minY+dy)*FracUnit + half
			sx := floorFixed((vx*c-vy*s)>>FracBits) + px
			sy := floorFixed((vx*s+vy*c)>>FracBits) + py
			if sx < 0 || sy < 0 || sx >= w || sy >= h {
				m.table[i] = -1
			} else {
				if flip {
					sx = w - 1 - sx
				}
				m.table[i] = int32(sy*w + sx)
			}
			i++
		}
	}
	return m, nil
}

// Lookup returns the source pixel for destination (x, y).
func (m *PixelMap) Lookup(x, y int) (sx, sy int, ok bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0, 0, false
	}
	idx := m.table[x*m.Height+y]
	if idx < 0 {
		return 0, 0, false
	}
	return int(idx) % m.SourceWidth, int(idx) / m.SourceWidth, true
}

// Offsets converts the source draw offsets into offsets for the rotated
// image so the pivot stays at the same screen position.
func (m *PixelMap) Offsets(left, top int) (int, int) {
	if m.Flip {
		left = m.SourceWidth - left
	}
	return left - m.px - m.minX, top - m.py - m.minY
}

// ApplyToColumn resamples destination column x from src. Holes in the
// source stay holes in the result.
func (m *PixelMap) ApplyToColumn(x int, src Source) patch.Column {
	var b patch.ColumnBuilder
	for y := 0; y < m.Height; y++ {
		sx, sy, ok := m.Lookup(x, y)
		if !ok {
			b.Skip()
			continue
		}
		v, ok := src.Pixel(sx, sy)
		if !ok {
			b.Skip()
			continue
		}
		b.Opaque(v)
	}
	return b.Column()
}

func floorFixed(v int64) int {
	return int(v >> FracBits)
}

func ceilFixed(v int64) int {
	return int(-(-v >> FracBits))
}
