package rotsprite

import (
	"fmt"
	"image"

	"rotsprite/internal/archive"
	"rotsprite/internal/cache"
	"rotsprite/internal/patch"
	"rotsprite/internal/pixelmap"
	"rotsprite/internal/spriteinfo"
)

// State is the build state of one rotation slot.
type State int

const (
	Empty State = iota
	PixelMapBuilding
	PixelMapReady
	PatchBuilding
	Cached
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case PixelMapBuilding:
		return "pixelmap-building"
	case PixelMapReady:
		return "pixelmap-ready"
	case PatchBuilding:
		return "patch-building"
	case Cached:
		return "cached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Vars are the per-request rotation arguments.
type Vars struct {
	Angle float64 // degrees, any range
	Flip  bool
	Pivot *spriteinfo.FramePivot // nil means the image centre
}

type slot struct {
	state State
	pmap  *pixelmap.PixelMap
	img   patch.Image
}

func (s *slot) reset() {
	*s = slot{}
}

// RotSprite holds the rotation slots of one origin about one pivot: one
// slot per bucket for each flip. Tag is the most permanent tag the container
// was requested with.
type RotSprite struct {
	Origin archive.Origin
	Tag    cache.Tag

	source patch.Image
	pivot  pixelmap.Pivot
	custom bool // pivot is not the image centre
	slots  [2][pixelmap.Angles]slot
}

// spriteKey identifies a container. Centre-pivot containers leave pivot
// zero so they survive a source whose size changed.
type spriteKey struct {
	origin archive.Origin
	custom bool
	pivot  pixelmap.Pivot
}

// key is the cache key of one slot's rotated image.
func (r *RotSprite) key(flip bool, bucket int) cache.Key {
	if r.custom {
		return cache.PivotedKey(r.Origin.Resource, image.Pt(r.pivot.X, r.pivot.Y), flip, bucket)
	}
	return cache.RotatedKey(r.Origin.Resource, flip, bucket)
}

// Custom reports whether the container rotates about a pivot other than the
// image centre.
func (r *RotSprite) Custom() bool { return r.custom }

func (r *RotSprite) snapshot() *RotSprite {
	cp := *r
	return &cp
}

// State returns the state of a slot.
func (r *RotSprite) State(bucket int, flip bool) State {
	if bucket < 0 || bucket >= pixelmap.Angles {
		return Empty
	}
	return r.slots[flipIndex(flip)][bucket].state
}

// PixelMap returns the resampling table of a slot, if built.
func (r *RotSprite) PixelMap(bucket int, flip bool) *pixelmap.PixelMap {
	if bucket < 0 || bucket >= pixelmap.Angles {
		return nil
	}
	return r.slots[flipIndex(flip)][bucket].pmap
}

// Cached counts slots in the Cached state.
func (r *RotSprite) Cached() int {
	n := 0
	for f := range r.slots {
		for b := range r.slots[f] {
			if r.slots[f][b].state == Cached {
				n++
			}
		}
	}
	return n
}

// Pivot returns the pivot the cached slots were built around.
func (r *RotSprite) Pivot() pixelmap.Pivot { return r.pivot }

func flipIndex(flip bool) int {
	if flip {
		return 1
	}
	return 0
}
