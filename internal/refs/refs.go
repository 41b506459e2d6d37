package refs

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"rotsprite/internal/archive"
	"rotsprite/internal/cache"
	"rotsprite/internal/patch"
	"rotsprite/internal/spriteinfo"
)

// Key is everything needed to resolve a reference again from scratch.
type Key struct {
	Origin archive.Origin
	Tag    cache.Tag
	Flip   bool
	Angle  float64
	Pivot  *spriteinfo.FramePivot
}

func (k Key) String() string {
	return fmt.Sprintf("%s tag=%s flip=%t angle=%g", k.Origin, k.Tag, k.Flip, k.Angle)
}

// Resolver turns a key into the current image for it.
type Resolver interface {
	Resolve(Key) (patch.Image, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(Key) (patch.Image, error)

func (f ResolverFunc) Resolve(k Key) (patch.Image, error) { return f(k) }

// Ref is a handle to a resolved image. Holders read Image on every use
// instead of keeping the image itself, so Update can swap it after an
// invalidation.
type Ref struct {
	id   uuid.UUID
	key  Key
	reg  *Registry
	img  patch.Image
	elem *list.Element // nil once released
}

// ID returns the opaque handle id.
func (r *Ref) ID() uuid.UUID { return r.id }

// Key returns the key the ref was registered with.
func (r *Ref) Key() Key { return r.key }

// Image returns the currently bound image. It is nil after release or when
// the last update could not resolve the key.
func (r *Ref) Image() patch.Image {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	return r.img
}

// Released reports whether the ref has left its registry.
func (r *Ref) Released() bool {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	return r.elem == nil
}

// Release removes the ref from its registry.
func (r *Ref) Release() {
	r.reg.Release(r)
}

// Registry tracks outstanding refs in registration order.
type Registry struct {
	mu   sync.Mutex
	refs *list.List
	byID map[uuid.UUID]*Ref
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		refs: list.New(),
		byID: make(map[uuid.UUID]*Ref),
	}
}

// Register binds key to img and returns the handle.
func (g *Registry) Register(key Key, img patch.Image) *Ref {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := &Ref{id: uuid.New(), key: key, reg: g, img: img}
	r.elem = g.refs.PushBack(r)
	g.byID[r.id] = r
	return r
}

// Lookup finds a live ref by id.
func (g *Registry) Lookup(id uuid.UUID) (*Ref, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.byID[id]
	return r, ok
}

// Len returns the number of live refs.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refs.Len()
}

// Release removes r and clears its image. Releasing twice is a no-op.
func (g *Registry) Release(r *Ref) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(r)
}

func (g *Registry) release(r *Ref) {
	if r.reg != g || r.elem == nil {
		return
	}
	g.refs.Remove(r.elem)
	delete(g.byID, r.id)
	r.elem = nil
	r.img = nil
}

// Each calls fn for every live ref in registration order.
func (g *Registry) Each(fn func(*Ref)) {
	for _, r := range g.snapshot() {
		fn(r)
	}
}

// Update re-resolves every live ref and binds the result. Refs whose key no
// longer resolves are cleared; their errors are joined into the result.
// Refs released while the update runs are left untouched.
func (g *Registry) Update(res Resolver) error {
	var errs []error
	for _, r := range g.snapshot() {
		img, err := res.Resolve(r.key)
		if err != nil {
			errs = append(errs, fmt.Errorf("refs: %s: %w", r.key, err))
		}
		g.mu.Lock()
		if r.elem != nil {
			r.img = img
		}
		g.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Free releases every ref and returns how many there were.
func (g *Registry) Free() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.refs.Len()
	for e := g.refs.Front(); e != nil; {
		next := e.Next()
		g.release(e.Value.(*Ref))
		e = next
	}
	return n
}

func (g *Registry) snapshot() []*Ref {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Ref, 0, g.refs.Len())
	for e := g.refs.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Ref))
	}
	return out
}
