package convert

import (
	"bytes"
	"strings"

	"rotsprite/internal/patch"
)

// Format identifies an image encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatPatch
	FormatFlat
	FormatPNG
	FormatWebP
	FormatTGA
	FormatJPEG
)

func (f Format) String() string {
	switch f {
	case FormatPatch:
		return "patch"
	case FormatFlat:
		return "flat"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatTGA:
		return "tga"
	case FormatJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// ParseFormat maps a name or file extension to a Format.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "patch", "lmp":
		return FormatPatch
	case "flat", "raw":
		return FormatFlat
	case "png":
		return FormatPNG
	case "webp":
		return FormatWebP
	case "tga":
		return FormatTGA
	case "jpg", "jpeg":
		return FormatJPEG
	}
	return FormatUnknown
}

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	tgaFooter    = []byte("TRUEVISION-XFILE.\x00")
)

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// IsWebP reports whether data is a RIFF WEBP container.
func IsWebP(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
}

// IsTGA reports whether data carries the TGA 2.0 footer.
func IsTGA(data []byte) bool {
	return bytes.HasSuffix(data, tgaFooter)
}

// IsJPEG reports whether data starts with a JPEG SOI marker.
func IsJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// IsPatch reports whether data is a binary column patch.
func IsPatch(data []byte) bool {
	return patch.Check(data)
}

// Sniff identifies the encoding of data. Signatures win over the patch
// header check, which wins over flat size matching.
func Sniff(data []byte) Format {
	switch {
	case IsPNG(data):
		return FormatPNG
	case IsWebP(data):
		return FormatWebP
	case IsJPEG(data):
		return FormatJPEG
	case IsTGA(data):
		return FormatTGA
	case IsPatch(data):
		return FormatPatch
	}
	if _, ok := FlatSize(len(data)); ok {
		return FormatFlat
	}
	return FormatUnknown
}

// External reports whether f is decoded by DecodeExternal.
func (f Format) External() bool {
	return f == FormatPNG || f == FormatWebP || f == FormatTGA
}
