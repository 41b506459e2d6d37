package rotsprite

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"rotsprite/internal/archive"
	"rotsprite/internal/cache"
	"rotsprite/internal/logging"
	"rotsprite/internal/patch"
	"rotsprite/internal/pixelmap"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for rotation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine builds rotated images on demand and stores them in a patch cache.
// One engine serves one backend.
type Engine struct {
	mu      sync.Mutex
	cache   *cache.Cache
	sprites map[spriteKey]*RotSprite
	log     *slog.Logger

	builds atomic.Uint64
}

// NewEngine creates an engine on top of c.
func NewEngine(c *cache.Cache, opts ...Option) *Engine {
	e := &Engine{
		cache:   c,
		sprites: make(map[spriteKey]*RotSprite),
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the patch cache the engine stores into.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// GetRotated returns origin rotated by the bucket nearest v.Angle. Bucket 0
// is the source image itself. Other buckets are built on first request and
// cached until invalidated; the call blocks until the image exists. Each
// distinct pivot has its own container, so requests about different pivots
// never evict each other.
func (e *Engine) GetRotated(o archive.Origin, tag cache.Tag, v Vars) (patch.Image, error) {
	src, err := e.cache.Resolve(o, tag)
	if err != nil {
		return nil, err
	}
	bucket := pixelmap.Bucket(v.Angle)
	if bucket == 0 {
		return src, nil
	}

	w, h := src.Size()
	pivot := pixelmap.Center(w, h)
	id := spriteKey{origin: o}
	if v.Pivot != nil {
		if p := (pixelmap.Pivot{X: v.Pivot.X, Y: v.Pivot.Y}); p != pivot {
			pivot = p
			id = spriteKey{origin: o, custom: true, pivot: p}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rs, ok := e.sprites[id]
	switch {
	case !ok:
		rs = &RotSprite{Origin: o, Tag: tag, source: src, pivot: pivot, custom: id.custom}
		e.sprites[id] = rs
	case rs.source != src || rs.pivot != pivot:
		// source was reloaded; nothing cached can be reused
		e.recreate(rs)
		rs.source, rs.pivot = src, pivot
	}
	if tag < rs.Tag {
		e.promote(rs, tag)
	}

	sl := &rs.slots[flipIndex(v.Flip)][bucket]
	if sl.state == Cached {
		img, ok := e.cache.Lookup(o.Archive, rs.key(v.Flip, bucket))
		if ok && img == sl.img {
			return sl.img, nil
		}
		// evicted from the cache directly
		sl.reset()
	}
	return e.build(rs, sl, bucket, v.Flip)
}

func (e *Engine) build(rs *RotSprite, sl *slot, bucket int, flip bool) (patch.Image, error) {
	w, h := rs.source.Size()

	sl.state = PixelMapBuilding
	pm, err := pixelmap.Build(w, h, bucket, flip, rs.pivot)
	if err != nil {
		sl.reset()
		return nil, fmt.Errorf("rotsprite: %s bucket %d: %w", rs.Origin, bucket, err)
	}
	e.builds.Add(1)
	sl.pmap = pm
	sl.state = PixelMapReady

	sl.state = PatchBuilding
	img, err := e.cache.Backend().Rotate(rs.source, pm)
	if err != nil {
		sl.reset()
		return nil, fmt.Errorf("rotsprite: %s bucket %d: %w", rs.Origin, bucket, err)
	}
	e.cache.Insert(rs.Origin.Archive, rs.key(flip, bucket), img, rs.Tag)
	sl.img = img
	sl.state = Cached

	e.log.Debug("rotation built",
		slog.String("origin", rs.Origin.String()),
		slog.Int("bucket", bucket),
		slog.Bool("flip", flip),
		slog.Int("width", pm.Width),
		slog.Int("height", pm.Height))
	return img, nil
}

// promote lowers the tag of rs and of its cached rotations.
func (e *Engine) promote(rs *RotSprite, tag cache.Tag) {
	rs.Tag = tag
	for f := range rs.slots {
		for b := range rs.slots[f] {
			if rs.slots[f][b].state == Cached {
				e.cache.Promote(rs.Origin.Archive, rs.key(f == 1, b), tag)
			}
		}
	}
}

// Sprite returns a snapshot of the centre-pivot container of origin, if one
// exists. Later builds do not show up in the snapshot.
func (e *Engine) Sprite(o archive.Origin) (*RotSprite, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rs, ok := e.sprites[spriteKey{origin: o}]
	if !ok {
		return nil, false
	}
	return rs.snapshot(), true
}

// SpriteAt is Sprite for the container rotating origin about p.
func (e *Engine) SpriteAt(o archive.Origin, p pixelmap.Pivot) (*RotSprite, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rs, ok := e.sprites[spriteKey{origin: o, custom: true, pivot: p}]; ok {
		return rs.snapshot(), true
	}
	if rs, ok := e.sprites[spriteKey{origin: o}]; ok && rs.pivot == p {
		return rs.snapshot(), true
	}
	return nil, false
}

// State reports the state of one slot of the centre-pivot container of
// origin.
func (e *Engine) State(o archive.Origin, bucket int, flip bool) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	rs, ok := e.sprites[spriteKey{origin: o}]
	if !ok {
		return Empty
	}
	return rs.State(bucket, flip)
}

// Recreate resets every slot of every container of origin to Empty and drops
// their cached rotations. The containers survive. It returns the number of
// slots that were Cached.
func (e *Engine) Recreate(o archive.Origin) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, rs := range e.sprites {
		if rs.Origin == o {
			n += e.recreate(rs)
		}
	}
	return n
}

// RecreateAll resets every slot of every sprite. Slots rebuild lazily on
// their next request. It returns the number of slots that were Cached.
func (e *Engine) RecreateAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, rs := range e.sprites {
		n += e.recreate(rs)
	}
	if n > 0 {
		e.log.Debug("rotations invalidated",
			slog.String("backend", e.cache.Backend().Kind().String()),
			slog.Int("slots", n))
	}
	return n
}

func (e *Engine) recreate(rs *RotSprite) int {
	n := 0
	for f := range rs.slots {
		for b := range rs.slots[f] {
			sl := &rs.slots[f][b]
			if sl.state == Empty && sl.img == nil {
				continue
			}
			if sl.state == Cached {
				n++
			}
			e.cache.Remove(rs.Origin.Archive, rs.key(f == 1, b))
			sl.reset()
		}
	}
	return n
}

// FreeTags destroys the sprites whose tag is in [lo, hi] together with their
// cached rotations.
func (e *Engine) FreeTags(lo, hi cache.Tag) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for id, rs := range e.sprites {
		if rs.Tag >= lo && rs.Tag <= hi {
			e.recreate(rs)
			delete(e.sprites, id)
			n++
		}
	}
	return n
}

// DropArchive forgets every sprite of an unloaded archive.
func (e *Engine) DropArchive(archiveIdx uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.sprites {
		if id.origin.Archive == archiveIdx {
			delete(e.sprites, id)
		}
	}
}

// Reset forgets every sprite and its cached rotations, as when the backend
// context is torn down.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rs := range e.sprites {
		e.recreate(rs)
	}
	e.sprites = make(map[spriteKey]*RotSprite)
}

// Len returns the number of rotation containers.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sprites)
}

// PixelMapBuilds returns how many resampling tables have been built.
func (e *Engine) PixelMapBuilds() uint64 {
	return e.builds.Load()
}
