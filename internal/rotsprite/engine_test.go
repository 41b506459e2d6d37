package rotsprite_test

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"rotsprite/internal/archive"
	"rotsprite/internal/backend"
	"rotsprite/internal/cache"
	"rotsprite/internal/patch"
	"rotsprite/internal/pixelmap"
	"rotsprite/internal/rotsprite"
	"rotsprite/internal/spriteinfo"
)

var sprite = archive.Origin{Archive: 0, Resource: 0}

func patchBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	p := &patch.Patch{Width: w, Height: h, Columns: make([]patch.Column, w)}
	for x := range p.Columns {
		p.Columns[x] = patch.Column{Posts: []patch.Post{{Pixels: bytes.Repeat([]byte{uint8(x + 1)}, h)}}}
	}
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newEngine(t *testing.T) (*rotsprite.Engine, *cache.Cache) {
	t.Helper()
	a := archive.New("test")
	a.Add("PLAYA1", patchBytes(t, 16, 16))
	a.Add("WIDE", patchBytes(t, 12, 4))
	set := archive.NewSet()
	set.Mount(a)
	c := cache.New(backend.NewRaster(nil), set)
	return rotsprite.NewEngine(c), c
}

func rotate(t *testing.T, e *rotsprite.Engine, o archive.Origin, tag cache.Tag, v rotsprite.Vars) patch.Image {
	t.Helper()
	img, err := e.GetRotated(o, tag, v)
	if err != nil {
		t.Fatalf("GetRotated(%s, %v): %v", o, v.Angle, err)
	}
	return img
}

func TestSameBucketSharesInstance(t *testing.T) {
	e, _ := newEngine(t)
	first := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 93})
	for _, angle := range []float64{92.5, 95, 97, 93 + 360, 93 - 720} {
		if img := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: angle}); img != first {
			t.Fatalf("angle %v returned a different image", angle)
		}
	}
	if e.PixelMapBuilds() != 1 {
		t.Fatalf("expected 1 pixel map build, got %d", e.PixelMapBuilds())
	}
	if st := e.State(sprite, 19, false); st != rotsprite.Cached {
		t.Fatalf("bucket 19 state = %s", st)
	}
	if other := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 91}); other == first {
		t.Fatal("91 degrees is bucket 18 and must not share bucket 19's image")
	}
}

func TestBucketZeroReturnsSource(t *testing.T) {
	e, c := newEngine(t)
	src, err := c.Resolve(sprite, cache.TagCache)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []rotsprite.Vars{{Angle: 0}, {Angle: 360}, {Angle: 2}, {Angle: -2, Flip: true}} {
		if img := rotate(t, e, sprite, cache.TagCache, v); img != src {
			t.Fatalf("angle %v did not return the source", v.Angle)
		}
	}
	if e.PixelMapBuilds() != 0 || e.Len() != 0 {
		t.Fatalf("bucket 0 touched the rotation machinery: builds=%d sprites=%d", e.PixelMapBuilds(), e.Len())
	}
}

func TestRotatedImageIsStoredInCache(t *testing.T) {
	e, c := newEngine(t)
	img := rotate(t, e, sprite, cache.TagLevel, rotsprite.Vars{Angle: 45})
	got, ok := c.Lookup(0, cache.RotatedKey(0, false, 9))
	if !ok || got != img {
		t.Fatal("rotated image missing from cache tree")
	}
	if tag, _ := c.TagOf(0, cache.RotatedKey(0, false, 9)); tag != cache.TagLevel {
		t.Fatalf("rotated entry tag = %s", tag)
	}
	w, h := img.Size()
	if w <= 16 || h <= 16 {
		t.Fatalf("45 degree rotation should grow, got %dx%d", w, h)
	}
}

func TestFlipsAreCachedSeparately(t *testing.T) {
	e, c := newEngine(t)
	plain := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 30})
	flipped := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 30, Flip: true})
	if plain == flipped {
		t.Fatal("flip shared the unflipped image")
	}
	if e.State(sprite, 6, false) != rotsprite.Cached || e.State(sprite, 6, true) != rotsprite.Cached {
		t.Fatal("both slots should be cached")
	}
	if _, ok := c.Lookup(0, cache.RotatedKey(0, true, 6)); !ok {
		t.Fatal("flipped entry missing from cache")
	}
	rs, ok := e.Sprite(sprite)
	if !ok || rs.Cached() != 2 {
		t.Fatalf("expected 2 cached slots")
	}
	if pm := rs.PixelMap(6, true); pm == nil || !pm.Flip {
		t.Fatal("flipped slot should keep its flipped pixel map")
	}
}

func TestRecreateAllResetsSlotsLazily(t *testing.T) {
	e, c := newEngine(t)
	before := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 93})
	rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 100, Flip: true})

	if n := e.RecreateAll(); n != 2 {
		t.Fatalf("RecreateAll reset %d slots, want 2", n)
	}
	rs, ok := e.Sprite(sprite)
	if !ok {
		t.Fatal("RecreateAll destroyed the container")
	}
	if rs.Cached() != 0 || e.State(sprite, 19, false) != rotsprite.Empty {
		t.Fatal("slots not reset to empty")
	}
	if rs.PixelMap(19, false) != nil {
		t.Fatal("pixel map survived reset")
	}
	if _, ok := c.Lookup(0, cache.RotatedKey(0, false, 19)); ok {
		t.Fatal("rotated cache entry survived reset")
	}

	after := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 93})
	if after == before {
		t.Fatal("expected a rebuilt image")
	}
	if e.PixelMapBuilds() != 3 {
		t.Fatalf("expected 3 builds, got %d", e.PixelMapBuilds())
	}
	// only the requested slot is rebuilt
	if e.State(sprite, 20, true) != rotsprite.Empty {
		t.Fatal("unrequested slot rebuilt eagerly")
	}
}

func TestPivotsKeepSeparateContainers(t *testing.T) {
	e, c := newEngine(t)
	centred := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 45})
	feet := &spriteinfo.FramePivot{X: 8, Y: 15}
	moved := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 45, Pivot: feet})
	if moved == centred {
		t.Fatal("new pivot reused the centre rotation")
	}
	cl, ct := centred.Offsets()
	ml, mt := moved.Offsets()
	if cl == ml && ct == mt {
		t.Fatal("pivot change should move the offsets")
	}
	if e.Len() != 2 {
		t.Fatalf("expected 2 containers, got %d", e.Len())
	}

	// the centre rotation is still cached and served
	if img, ok := c.Lookup(0, cache.RotatedKey(0, false, 9)); !ok || img != centred {
		t.Fatal("custom pivot evicted the centre rotation")
	}
	if img, ok := c.Lookup(0, cache.PivotedKey(0, image.Pt(8, 15), false, 9)); !ok || img != moved {
		t.Fatal("pivoted rotation missing from cache")
	}
	if again := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 45}); again != centred {
		t.Fatal("centre request rebuilt after a pivoted one")
	}
	if again := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 45, Pivot: feet}); again != moved {
		t.Fatal("same pivot should hit the slot")
	}
	if e.PixelMapBuilds() != 2 {
		t.Fatalf("expected 2 builds, got %d", e.PixelMapBuilds())
	}

	rs, ok := e.SpriteAt(sprite, pixelmap.Pivot{X: 8, Y: 15})
	if !ok || !rs.Custom() {
		t.Fatal("pivoted container not found")
	}

	// an explicit centre pivot shares the centre container
	centre := &spriteinfo.FramePivot{X: 8, Y: 8}
	if img := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 45, Pivot: centre}); img != centred {
		t.Fatal("explicit centre pivot built a second container")
	}

	if n := e.Recreate(sprite); n != 2 {
		t.Fatalf("Recreate reset %d slots, want 2", n)
	}
}

func TestSpriteReturnsSnapshot(t *testing.T) {
	e, _ := newEngine(t)
	rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 45})
	snap, ok := e.Sprite(sprite)
	if !ok || snap.Cached() != 1 {
		t.Fatal("expected one cached slot")
	}
	rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 90})
	if snap.Cached() != 1 {
		t.Fatal("snapshot changed after a later build")
	}
	if e.State(sprite, 18, false) != rotsprite.Cached {
		t.Fatal("engine state not updated")
	}
}

func TestEvictedEntryIsRebuilt(t *testing.T) {
	e, c := newEngine(t)
	first := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 180})
	if !c.Remove(0, cache.RotatedKey(0, false, 36)) {
		t.Fatal("Remove failed")
	}
	second := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 180})
	if second == first {
		t.Fatal("slot served an image the cache no longer holds")
	}

	// evicting everything, source included, also recovers
	c.FreeTag(cache.TagCache)
	third := rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 180})
	if third == second {
		t.Fatal("expected a rebuild after the source was evicted")
	}
}

func TestLowerTagPromotesRotations(t *testing.T) {
	e, c := newEngine(t)
	rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 60})
	rotate(t, e, sprite, cache.TagPatch, rotsprite.Vars{Angle: 90})

	for _, b := range []int{12, 18} {
		if tag, _ := c.TagOf(0, cache.RotatedKey(0, false, b)); tag != cache.TagPatch {
			t.Fatalf("bucket %d tag = %s, want patch", b, tag)
		}
	}
	if n := e.FreeTags(cache.TagLevel, cache.TagCache); n != 0 {
		t.Fatalf("promoted sprite freed (%d)", n)
	}
}

func TestFreeTagsDestroysSprites(t *testing.T) {
	e, c := newEngine(t)
	rotate(t, e, sprite, cache.TagLevel, rotsprite.Vars{Angle: 60})
	wide := archive.Origin{Archive: 0, Resource: 1}
	rotate(t, e, wide, cache.TagStatic, rotsprite.Vars{Angle: 60})

	if n := e.FreeTags(cache.TagLevel, cache.TagLevel); n != 1 {
		t.Fatalf("FreeTags destroyed %d sprites, want 1", n)
	}
	if _, ok := e.Sprite(sprite); ok {
		t.Fatal("level sprite survived")
	}
	if _, ok := c.Lookup(0, cache.RotatedKey(0, false, 12)); ok {
		t.Fatal("level rotation survived in cache")
	}
	if _, ok := e.Sprite(wide); !ok {
		t.Fatal("static sprite destroyed")
	}
}

func TestNotFoundCreatesNothing(t *testing.T) {
	e, c := newEngine(t)
	_, err := e.GetRotated(archive.Origin{Archive: 0, Resource: 9}, cache.TagCache, rotsprite.Vars{Angle: 45})
	if !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if e.Len() != 0 || c.Stats().Trees != 0 {
		t.Fatal("failed lookup left state behind")
	}
}

func TestResetAndDropArchive(t *testing.T) {
	e, c := newEngine(t)
	rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 10})
	e.DropArchive(0)
	if e.Len() != 0 {
		t.Fatal("DropArchive kept sprites")
	}
	c.DropArchive(0)

	rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 10})
	e.Reset()
	if e.Len() != 0 {
		t.Fatal("Reset kept sprites")
	}
	if _, ok := c.Lookup(0, cache.RotatedKey(0, false, 2)); ok {
		t.Fatal("Reset left rotated entries in the cache")
	}
	// rebuilding after reset must not trip the duplicate-insert check
	rotate(t, e, sprite, cache.TagCache, rotsprite.Vars{Angle: 10})
}

func TestStateString(t *testing.T) {
	if rotsprite.PixelMapReady.String() != "pixelmap-ready" || rotsprite.Cached.String() != "cached" {
		t.Fatal("unexpected state names")
	}
}
