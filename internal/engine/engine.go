package engine

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"rotsprite/internal/archive"
	"rotsprite/internal/backend"
	"rotsprite/internal/cache"
	"rotsprite/internal/convert"
	"rotsprite/internal/logging"
	"rotsprite/internal/patch"
	"rotsprite/internal/refs"
	"rotsprite/internal/rotsprite"
	"rotsprite/internal/spriteinfo"
)

// SpriteInfoLump is the resource name prefix scanned for pivot metadata.
const SpriteInfoLump = "SPRTINFO"

// Options configures an Engine.
type Options struct {
	Palette *convert.Palette
	Logger  *slog.Logger
}

// backendContext is the cache and rotation engine of one backend.
type backendContext struct {
	cache *cache.Cache
	rot   *rotsprite.Engine
}

// Engine is the entry point for renderers. Every lookup names the backend
// it is for; the two backends keep fully separate caches.
type Engine struct {
	mu       sync.Mutex
	archives *archive.Set
	contexts map[backend.Kind]*backendContext
	sprites  *spriteinfo.Table
	refs     *refs.Registry
	pal      *convert.Palette
	log      *slog.Logger
}

// New builds an engine over set. Archive unloads drop the matching trees.
func New(set *archive.Set, opts Options) *Engine {
	pal := opts.Palette
	if pal == nil {
		pal = convert.DefaultPalette()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	e := &Engine{
		archives: set,
		contexts: make(map[backend.Kind]*backendContext),
		sprites:  spriteinfo.NewTable(),
		refs:     refs.NewRegistry(),
		pal:      pal,
		log:      log,
	}
	for _, b := range []backend.Backend{backend.NewRaster(pal), backend.NewAccelerated(pal)} {
		blog := log.With(slog.String("backend", b.Kind().String()))
		c := cache.New(b, set, cache.WithLogger(blog))
		e.contexts[b.Kind()] = &backendContext{
			cache: c,
			rot:   rotsprite.NewEngine(c, rotsprite.WithLogger(blog)),
		}
	}
	set.OnUnload(e.dropArchive)
	return e
}

// Palette returns the palette used for quantising and expanding images.
func (e *Engine) Palette() *convert.Palette { return e.pal }

// Archives returns the resource set.
func (e *Engine) Archives() *archive.Set { return e.archives }

// Cache returns the patch cache of kind.
func (e *Engine) Cache(kind backend.Kind) *cache.Cache {
	return e.ctx(kind).cache
}

// Rotator returns the rotation engine of kind.
func (e *Engine) Rotator(kind backend.Kind) *rotsprite.Engine {
	return e.ctx(kind).rot
}

// References returns the reference registry.
func (e *Engine) References() *refs.Registry { return e.refs }

// SpriteInfo returns the loaded pivot metadata.
func (e *Engine) SpriteInfo() *spriteinfo.Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sprites
}

func (e *Engine) ctx(kind backend.Kind) *backendContext {
	c, ok := e.contexts[kind]
	if !ok {
		panic(fmt.Sprintf("engine: no context for backend %s", kind))
	}
	return c
}

// Resolve returns the unrotated image of origin for kind.
func (e *Engine) Resolve(kind backend.Kind, o archive.Origin, tag cache.Tag) (patch.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx(kind).cache.Resolve(o, tag)
}

// ResolveName resolves a resource by name, then its image.
func (e *Engine) ResolveName(kind backend.Kind, name string, tag cache.Tag) (patch.Image, error) {
	o, err := e.archives.ResolveName(name)
	if err != nil {
		return nil, err
	}
	return e.Resolve(kind, o, tag)
}

// ResolveRotated returns origin rotated per vars for kind.
func (e *Engine) ResolveRotated(kind backend.Kind, o archive.Origin, tag cache.Tag, vars rotsprite.Vars) (patch.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx(kind).rot.GetRotated(o, tag, vars)
}

// ResolveRotatedName is ResolveRotated by resource name.
func (e *Engine) ResolveRotatedName(kind backend.Kind, name string, tag cache.Tag, vars rotsprite.Vars) (patch.Image, error) {
	o, err := e.archives.ResolveName(name)
	if err != nil {
		return nil, err
	}
	return e.ResolveRotated(kind, o, tag, vars)
}

// ResolveRotatedForSprite rotates a sprite frame about the pivot defined in
// the sprite info, falling back to vars.Pivot and then the image centre.
// The returned axis is metadata only.
func (e *Engine) ResolveRotatedForSprite(kind backend.Kind, o archive.Origin, tag cache.Tag, sprite string, frame int, vars rotsprite.Vars) (patch.Image, spriteinfo.Axis, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pivot, err := e.sprites.Pivot(sprite, frame)
	if err != nil {
		return nil, spriteinfo.Roll, err
	}
	axis := spriteinfo.Roll
	if pivot != nil {
		vars.Pivot = pivot
		axis = pivot.Axis
	} else if vars.Pivot != nil {
		axis = vars.Pivot.Axis
	}
	img, err := e.ctx(kind).rot.GetRotated(o, tag, vars)
	if err != nil {
		return nil, axis, err
	}
	return img, axis, nil
}

// Store resolves key for kind and registers a handle for it. The handle is
// rebound by UpdateReferences.
func (e *Engine) Store(kind backend.Kind, key refs.Key) (*refs.Ref, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	img, err := e.resolveKey(kind, key)
	if err != nil {
		return nil, err
	}
	return e.refs.Register(key, img), nil
}

func (e *Engine) resolveKey(kind backend.Kind, key refs.Key) (patch.Image, error) {
	return e.ctx(kind).rot.GetRotated(key.Origin, key.Tag, rotsprite.Vars{
		Angle: key.Angle,
		Flip:  key.Flip,
		Pivot: key.Pivot,
	})
}

// UpdateReferences rebinds every handle against the current state of the
// kind caches. Call it after switching backend or reloading resources.
func (e *Engine) UpdateReferences(kind backend.Kind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.refs.Update(refs.ResolverFunc(func(k refs.Key) (patch.Image, error) {
		return e.resolveKey(kind, k)
	}))
	e.log.Debug("references updated",
		slog.String("backend", kind.String()),
		slog.Int("refs", e.refs.Len()),
		slog.Bool("ok", err == nil))
	return err
}

// FreeReferences releases every handle.
func (e *Engine) FreeReferences() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refs.Free()
}

// RecreateAll invalidates every cached rotation of every backend.
func (e *Engine) RecreateAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, kind := range backend.Kinds {
		n += e.ctx(kind).rot.RecreateAll()
	}
	return n
}

// SwitchBackend tears down the from context and rebinds every handle to
// the to context.
func (e *Engine) SwitchBackend(from, to backend.Kind) error {
	e.mu.Lock()
	c := e.ctx(from)
	c.rot.Reset()
	c.cache.Reset()
	e.mu.Unlock()
	e.log.Info("backend switched",
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	return e.UpdateReferences(to)
}

// FreeTags evicts every image and rotation container tagged in [lo, hi]
// from both backends.
func (e *Engine) FreeTags(lo, hi cache.Tag) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, kind := range backend.Kinds {
		c := e.ctx(kind)
		n += c.cache.FreeTags(lo, hi)
		c.rot.FreeTags(lo, hi)
	}
	return n
}

func (e *Engine) dropArchive(idx uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, kind := range backend.Kinds {
		c := e.ctx(kind)
		c.rot.DropArchive(idx)
		c.cache.DropArchive(idx)
	}
	e.log.Debug("archive dropped", slog.Int("archive", int(idx)))
}

// LoadSpriteInfo parses every SPRTINFO resource of every loaded archive, in
// load order, into a fresh table.
func (e *Engine) LoadSpriteInfo() error {
	table := spriteinfo.NewTable()
	var errs []error
	for i := 0; i < e.archives.Len(); i++ {
		idx := uint16(i)
		for _, res := range e.archives.FindPrefix(idx, SpriteInfoLump) {
			data, err := e.archives.FetchBytes(idx, res)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := table.Load(bytes.NewReader(data)); err != nil {
				errs = append(errs, fmt.Errorf("archive %d resource %d: %w", idx, res, err))
			}
		}
	}
	e.mu.Lock()
	e.sprites = table
	e.mu.Unlock()
	e.log.Debug("sprite info loaded", slog.Int("sprites", table.Len()))
	return errors.Join(errs...)
}

// SetSpriteInfo replaces the pivot metadata.
func (e *Engine) SetSpriteInfo(t *spriteinfo.Table) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sprites = t
}
