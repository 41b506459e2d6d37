package convert

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"rotsprite/internal/patch"
	"rotsprite/internal/raster"
)

var (
	// ErrDecode reports bytes that are not a well-formed image.
	ErrDecode = errors.New("decode error")

	// ErrUnsupportedFormat reports an image that was recognised but cannot
	// be converted.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// MaxDimension is the largest width or height a patch header can hold.
const MaxDimension = math.MaxInt16

// DecodeExternal decodes a PNG, WebP or TGA image to NRGBA and returns the
// draw offsets stored alongside it (PNG grAb chunk), or zero.
func DecodeExternal(data []byte) (*image.NRGBA, image.Point, error) {
	f := Sniff(data)
	if f == FormatJPEG {
		return nil, image.Point{}, fmt.Errorf("convert: %w: jpeg carries no transparency", ErrUnsupportedFormat)
	}
	if !f.External() {
		return nil, image.Point{}, fmt.Errorf("convert: %w: not an external image (%s)", ErrDecode, f)
	}

	cfg, err := decodeConfig(f, data)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("convert: %w: %s header: %w", ErrDecode, f, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, image.Point{}, fmt.Errorf("convert: %w: %s is %dx%d", ErrUnsupportedFormat, f, cfg.Width, cfg.Height)
	}

	img, err := decode(f, data)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("convert: %w: %s: %w", ErrDecode, f, err)
	}

	var offs image.Point
	if f == FormatPNG {
		offs, _ = pngOffsets(data)
	}
	return toNRGBA(img), offs, nil
}

// ExternalDimensions reads the image size from the header only.
func ExternalDimensions(data []byte) (w, h int, err error) {
	f := Sniff(data)
	if !f.External() {
		return 0, 0, fmt.Errorf("convert: %w: not an external image (%s)", ErrDecode, f)
	}
	cfg, err := decodeConfig(f, data)
	if err != nil {
		return 0, 0, fmt.Errorf("convert: %w: %s header: %w", ErrDecode, f, err)
	}
	return cfg.Width, cfg.Height, nil
}

// ExternalToFlat decodes an external image into an alpha flat, mapping each
// colour to its nearest palette index.
func ExternalToFlat(data []byte, pal *Palette) (*raster.AlphaFlat, image.Point, error) {
	img, offs, err := DecodeExternal(data)
	if err != nil {
		return nil, image.Point{}, err
	}
	return ImageToFlat(img, pal), offs, nil
}

// ImageToFlat quantises a truecolour image against pal. Zero alpha becomes a
// hole; any other alpha is kept as-is in the high byte.
func ImageToFlat(img *image.NRGBA, pal *Palette) *raster.AlphaFlat {
	b := img.Bounds()
	f := raster.NewAlphaFlat(b.Dx(), b.Dy())
	nc := newNearestCache(pal)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			if c.A == 0 {
				continue
			}
			f.Set(x, y, nc.index(c), c.A)
		}
	}
	return f
}

// ExternalToPatch decodes an external image straight into a column patch.
func ExternalToPatch(data []byte, pal *Palette) (*patch.Patch, error) {
	f, offs, err := ExternalToFlat(data, pal)
	if err != nil {
		return nil, err
	}
	return TransparentFlatToPatch(f, offs.X, offs.Y), nil
}

// EncodeExternal writes img in the given external format.
func EncodeExternal(w io.Writer, img image.Image, f Format) error {
	var err error
	switch f {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatWebP:
		err = nativewebp.Encode(w, img, nil)
	case FormatTGA:
		err = tga.Encode(w, img)
	default:
		return fmt.Errorf("convert: %w: cannot encode %s", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return fmt.Errorf("convert: encode %s: %w", f, err)
	}
	return nil
}

// EncodePatch expands p with pal and writes it in format f. PNG output
// carries the patch offsets in a grAb chunk.
func EncodePatch(w io.Writer, p *patch.Patch, pal *Palette, f Format) error {
	img := PatchToImage(p, pal)
	if f != FormatPNG {
		return EncodeExternal(w, img, f)
	}
	var buf bytes.Buffer
	if err := EncodeExternal(&buf, img, f); err != nil {
		return err
	}
	out, err := withPNGOffsets(buf.Bytes(), p.LeftOffset, p.TopOffset)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func decodeConfig(f Format, data []byte) (image.Config, error) {
	r := bytes.NewReader(data)
	switch f {
	case FormatPNG:
		return png.DecodeConfig(r)
	case FormatWebP:
		return webp.DecodeConfig(r)
	case FormatTGA:
		return tga.DecodeConfig(r)
	}
	return image.Config{}, fmt.Errorf("no decoder for %s", f)
}

func decode(f Format, data []byte) (image.Image, error) {
	r := bytes.NewReader(data)
	switch f {
	case FormatPNG:
		return png.Decode(r)
	case FormatWebP:
		return webp.Decode(r)
	case FormatTGA:
		return tga.Decode(r)
	}
	return nil, fmt.Errorf("no decoder for %s", f)
}

// toNRGBA converts any image to an NRGBA anchored at the origin.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// pngOffsets reads the grAb chunk, which must precede the image data.
func pngOffsets(data []byte) (image.Point, bool) {
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[pos:]))
		typ := string(data[pos+4 : pos+8])
		body := pos + 8
		if n < 0 || body+n+4 > len(data) {
			return image.Point{}, false
		}
		switch typ {
		case "grAb":
			if n != 8 {
				return image.Point{}, false
			}
			x := int32(binary.BigEndian.Uint32(data[body:]))
			y := int32(binary.BigEndian.Uint32(data[body+4:]))
			return image.Pt(int(x), int(y)), true
		case "IDAT", "IEND":
			return image.Point{}, false
		}
		pos = body + n + 4
	}
	return image.Point{}, false
}

// withPNGOffsets inserts a grAb chunk right after IHDR.
func withPNGOffsets(data []byte, x, y int) ([]byte, error) {
	const ihdrEnd = 8 + 8 + 13 + 4
	if !IsPNG(data) || len(data) < ihdrEnd || string(data[12:16]) != "IHDR" {
		return nil, fmt.Errorf("convert: %w: missing IHDR", ErrDecode)
	}
	chunk := make([]byte, 8+8+4)
	binary.BigEndian.PutUint32(chunk[0:], 8)
	copy(chunk[4:], "grAb")
	binary.BigEndian.PutUint32(chunk[8:], uint32(int32(x)))
	binary.BigEndian.PutUint32(chunk[12:], uint32(int32(y)))
	binary.BigEndian.PutUint32(chunk[16:], crc32.ChecksumIEEE(chunk[4:16]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, data[ihdrEnd:]...), nil
}
