package cache

import (
	"fmt"
	"image"
)

// Tag classifies a cache entry's eviction scope. Lower tags are more
// permanent.
type Tag int32

const (
	TagStatic Tag = 1   // lives until the archive goes away
	TagPatch  Tag = 10  // long-lived sprite graphics
	TagLevel  Tag = 50  // dropped when a level ends
	TagCache  Tag = 101 // may be purged at any time
)

func (t Tag) String() string {
	switch t {
	case TagStatic:
		return "static"
	case TagPatch:
		return "patch"
	case TagLevel:
		return "level"
	case TagCache:
		return "cache"
	default:
		return fmt.Sprintf("tag(%d)", int32(t))
	}
}

// Key is the compound key of a tree entry. Base images use only Resource;
// rotated variants also carry flip and bucket, and Pivot when rotated about
// a point other than the image centre.
type Key struct {
	Resource uint16
	Rotated  bool
	Pivoted  bool
	Pivot    image.Point
	Flip     bool
	Bucket   int
}

// BaseKey is the key of the unrotated image of resource.
func BaseKey(resource uint16) Key {
	return Key{Resource: resource}
}

// RotatedKey is the key of a variant rotated about the image centre.
func RotatedKey(resource uint16, flip bool, bucket int) Key {
	return Key{Resource: resource, Rotated: true, Flip: flip, Bucket: bucket}
}

// PivotedKey is the key of a variant rotated about pivot.
func PivotedKey(resource uint16, pivot image.Point, flip bool, bucket int) Key {
	return Key{Resource: resource, Rotated: true, Pivoted: true, Pivot: pivot, Flip: flip, Bucket: bucket}
}

func (k Key) less(o Key) bool {
	if k.Resource != o.Resource {
		return k.Resource < o.Resource
	}
	if k.Rotated != o.Rotated {
		return !k.Rotated
	}
	if k.Pivoted != o.Pivoted {
		return !k.Pivoted
	}
	if k.Pivot != o.Pivot {
		if k.Pivot.Y != o.Pivot.Y {
			return k.Pivot.Y < o.Pivot.Y
		}
		return k.Pivot.X < o.Pivot.X
	}
	if k.Flip != o.Flip {
		return !k.Flip
	}
	return k.Bucket < o.Bucket
}
