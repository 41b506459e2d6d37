package patch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed reports bytes that do not form a valid column patch.
var ErrMalformed = errors.New("patch: malformed data")

const (
	headerSize   = 8
	postEnd      = 0xFF
	maxPostLen   = 0xFF
	maxAbsTop    = 254
	maxDimension = math.MaxInt16
)

// Check reports whether data looks like a binary column patch: sane header
// and every column offset inside the buffer.
func Check(data []byte) bool {
	if len(data) < headerSize {
		return false
	}
	w := int(int16(binary.LittleEndian.Uint16(data[0:])))
	h := int(int16(binary.LittleEndian.Uint16(data[2:])))
	if w <= 0 || h <= 0 {
		return false
	}
	tableEnd := headerSize + 4*w
	if tableEnd > len(data) {
		return false
	}
	for x := 0; x < w; x++ {
		ofs := int(binary.LittleEndian.Uint32(data[headerSize+4*x:]))
		if ofs < tableEnd || ofs >= len(data) {
			return false
		}
	}
	return true
}

// Decode parses a binary column patch. Top deltas that do not increase are
// treated as relative to the previous post (tall patches).
func Decode(data []byte) (*Patch, error) {
	if !Check(data) {
		return nil, ErrMalformed
	}
	p := &Patch{
		Width:      int(int16(binary.LittleEndian.Uint16(data[0:]))),
		Height:     int(int16(binary.LittleEndian.Uint16(data[2:]))),
		LeftOffset: int(int16(binary.LittleEndian.Uint16(data[4:]))),
		TopOffset:  int(int16(binary.LittleEndian.Uint16(data[6:]))),
	}
	p.Columns = make([]Column, p.Width)
	for x := 0; x < p.Width; x++ {
		ofs := int(binary.LittleEndian.Uint32(data[headerSize+4*x:]))
		col, err := decodeColumn(data, ofs, p.Height)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", x, err)
		}
		p.Columns[x] = col
	}
	return p, nil
}

func decodeColumn(data []byte, ofs, height int) (Column, error) {
	var col Column
	prev := -1
	for {
		if ofs >= len(data) {
			return Column{}, ErrMalformed
		}
		delta := int(data[ofs])
		if delta == postEnd {
			return col, nil
		}
		if ofs+3 > len(data) {
			return Column{}, ErrMalformed
		}
		top := delta
		if prev >= 0 && delta <= prev {
			top = prev + delta
		}
		length := int(data[ofs+1])
		start := ofs + 3
		if start+length+1 > len(data) {
			return Column{}, ErrMalformed
		}
		// rows hanging past the bottom edge are dropped
		if visible := min(length, height-top); visible > 0 {
			pix := make([]uint8, visible)
			copy(pix, data[start:start+visible])
			col.Posts = append(col.Posts, Post{TopDelta: top, Pixels: pix})
		}
		prev = top
		ofs = start + length + 1
	}
}

// MarshalBinary encodes the patch in the binary column format.
func (p *Patch) MarshalBinary() ([]byte, error) {
	if p.Width <= 0 || p.Height <= 0 || p.Width > maxDimension || p.Height > maxDimension {
		return nil, fmt.Errorf("patch: cannot encode %dx%d", p.Width, p.Height)
	}
	if len(p.Columns) != p.Width {
		return nil, fmt.Errorf("patch: %d columns for width %d", len(p.Columns), p.Width)
	}
	buf := make([]byte, headerSize+4*p.Width)
	binary.LittleEndian.PutUint16(buf[0:], uint16(int16(p.Width)))
	binary.LittleEndian.PutUint16(buf[2:], uint16(int16(p.Height)))
	binary.LittleEndian.PutUint16(buf[4:], uint16(int16(p.LeftOffset)))
	binary.LittleEndian.PutUint16(buf[6:], uint16(int16(p.TopOffset)))

	for x, col := range p.Columns {
		binary.LittleEndian.PutUint32(buf[headerSize+4*x:], uint32(len(buf)))
		prev := -1
		for _, post := range col.Posts {
			for i := 0; i < len(post.Pixels); i += maxPostLen {
				end := min(i+maxPostLen, len(post.Pixels))
				buf, prev = appendPost(buf, prev, post.TopDelta+i, post.Pixels[i:end])
			}
		}
		buf = append(buf, postEnd)
	}
	return buf, nil
}

// appendPost writes one post at absolute row top. Rows past the absolute
// delta range are reached with relative deltas, inserting empty anchor posts
// where the previous top is too small to be relative to.
func appendPost(buf []byte, prev, top int, pix []uint8) ([]byte, int) {
	for {
		switch {
		case top > prev && top <= maxAbsTop:
			return writePost(buf, top, pix), top
		case prev >= 0 && top-prev <= prev && top-prev <= maxAbsTop:
			return writePost(buf, top-prev, pix), top
		case prev < maxAbsTop:
			buf = writePost(buf, maxAbsTop, nil)
			prev = maxAbsTop
		default:
			buf = writePost(buf, maxAbsTop, nil)
			prev += maxAbsTop
		}
	}
}

func writePost(buf []byte, delta int, pix []uint8) []byte {
	buf = append(buf, byte(delta), byte(len(pix)), 0)
	buf = append(buf, pix...)
	return append(buf, 0)
}
