package backend

import (
	"fmt"
	"strings"

	"rotsprite/internal/patch"
	"rotsprite/internal/pixelmap"
)

// Kind names a rendering backend.
type Kind int

const (
	Raster Kind = iota
	Accelerated
)

// Kinds lists every backend kind.
var Kinds = []Kind{Raster, Accelerated}

func (k Kind) String() string {
	switch k {
	case Raster:
		return "raster"
	case Accelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses a backend name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raster", "software", "":
		return Raster, nil
	case "accelerated", "gl", "opengl":
		return Accelerated, nil
	}
	return 0, fmt.Errorf("backend: unknown kind %q", s)
}

// Backend turns raw resource bytes into its own image representation and
// rotates images of that representation. Images are never exchanged between
// backends.
type Backend interface {
	Kind() Kind
	Decode(data []byte) (patch.Image, error)
	Rotate(src patch.Image, m *pixelmap.PixelMap) (patch.Image, error)
}
