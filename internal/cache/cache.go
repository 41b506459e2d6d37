package cache

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"rotsprite/internal/archive"
	"rotsprite/internal/backend"
	"rotsprite/internal/logging"
	"rotsprite/internal/patch"
)

type entry struct {
	img patch.Image
	tag Tag
}

// Tree holds the decoded images of one archive for one backend.
type Tree struct {
	entries map[Key]*entry
}

func newTree() *Tree {
	return &Tree{entries: make(map[Key]*entry)}
}

// Len returns the number of entries.
func (t *Tree) Len() int { return len(t.entries) }

// Keys returns the keys in order: by resource, base before rotated,
// unflipped before flipped, then by bucket.
func (t *Tree) Keys() []Key {
	keys := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Trees     int
	Entries   int
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger for cache diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// Cache is a concurrency-safe per-backend patch cache. Each archive gets its
// own tree, created on the first insert.
type Cache struct {
	mu      sync.RWMutex
	trees   map[uint16]*Tree
	backend backend.Backend
	source  archive.Source
	log     *slog.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache that decodes with b and fetches from src.
func New(b backend.Backend, src archive.Source, opts ...Option) *Cache {
	c := &Cache{
		trees:   make(map[uint16]*Tree),
		backend: b,
		source:  src,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the backend the cache decodes with.
func (c *Cache) Backend() backend.Backend { return c.backend }

// Resolve returns the decoded image for origin, decoding it on first use.
// Repeated calls return the same instance until it is evicted. A lower tag
// than the cached one promotes the entry.
func (c *Cache) Resolve(o archive.Origin, tag Tag) (patch.Image, error) {
	key := BaseKey(o.Resource)

	// Fast path: read lock
	c.mu.RLock()
	if e, ok := c.lookup(o.Archive, key); ok && e.tag <= tag {
		c.mu.RUnlock()
		c.hits.Add(1)
		return e.img, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	if e, ok := c.lookup(o.Archive, key); ok {
		if tag < e.tag {
			e.tag = tag
		}
		c.mu.Unlock()
		c.hits.Add(1)
		return e.img, nil
	}
	c.mu.Unlock()

	// Slow path: fetch and decode without holding the lock
	c.misses.Add(1)
	data, err := c.source.FetchBytes(o.Archive, o.Resource)
	if err != nil {
		return nil, fmt.Errorf("cache: fetch %s: %w", o, err)
	}
	img, err := c.backend.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", o, err)
	}

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.lookup(o.Archive, key); ok {
		// another caller decoded it first
		if tag < e.tag {
			e.tag = tag
		}
		return e.img, nil
	}
	c.insert(o.Archive, key, img, tag)
	w, h := img.Size()
	c.log.Debug("patch cached",
		slog.String("backend", c.backend.Kind().String()),
		slog.String("origin", o.String()),
		slog.String("tag", tag.String()),
		slog.Int("width", w),
		slog.Int("height", h))
	return img, nil
}

// Lookup returns the image under key without decoding.
func (c *Cache) Lookup(archiveIdx uint16, key Key) (patch.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.lookup(archiveIdx, key)
	if !ok {
		return nil, false
	}
	return e.img, true
}

// Insert stores img under key. Inserting an existing key is a programming
// error and panics.
func (c *Cache) Insert(archiveIdx uint16, key Key, img patch.Image, tag Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insert(archiveIdx, key, img, tag)
}

// Remove deletes the entry under key.
func (c *Cache) Remove(archiveIdx uint16, key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.trees[archiveIdx]
	if !ok {
		return false
	}
	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	c.evictions.Add(1)
	return true
}

// Promote lowers the tag of the entry under key to tag. Entries already at
// or below tag are left alone.
func (c *Cache) Promote(archiveIdx uint16, key Key, tag Tag) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(archiveIdx, key)
	if !ok || e.tag <= tag {
		return false
	}
	e.tag = tag
	return true
}

// FreeTag evicts every entry tagged tag.
func (c *Cache) FreeTag(tag Tag) int {
	return c.FreeTags(tag, tag)
}

// FreeTags evicts every entry whose tag is in [lo, hi]. Trees are kept even
// when they become empty.
func (c *Cache) FreeTags(lo, hi Tag) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.trees {
		for k, e := range t.entries {
			if e.tag >= lo && e.tag <= hi {
				delete(t.entries, k)
				n++
			}
		}
	}
	c.evictions.Add(uint64(n))
	if n > 0 {
		c.log.Debug("tags freed",
			slog.String("backend", c.backend.Kind().String()),
			slog.String("lo", lo.String()),
			slog.String("hi", hi.String()),
			slog.Int("evicted", n))
	}
	return n
}

// DropArchive destroys the tree of an unloaded archive.
func (c *Cache) DropArchive(archiveIdx uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.trees[archiveIdx]; ok {
		c.evictions.Add(uint64(len(t.entries)))
		delete(c.trees, archiveIdx)
	}
}

// Reset destroys every tree, as when the backend context is torn down.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.trees {
		c.evictions.Add(uint64(len(t.entries)))
	}
	c.trees = make(map[uint16]*Tree)
}

// Tree returns a copy of the tree for archiveIdx.
func (c *Cache) Tree(archiveIdx uint16) (*Tree, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.trees[archiveIdx]
	if !ok {
		return nil, false
	}
	cp := newTree()
	for k, e := range t.entries {
		cp.entries[k] = &entry{img: e.img, tag: e.tag}
	}
	return cp, true
}

// TagOf returns the tag of the entry under key.
func (c *Cache) TagOf(archiveIdx uint16, key Key) (Tag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.lookup(archiveIdx, key)
	if !ok {
		return 0, false
	}
	return e.tag, true
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Trees:     len(c.trees),
	}
	for _, t := range c.trees {
		s.Entries += len(t.entries)
	}
	return s
}

func (c *Cache) lookup(archiveIdx uint16, key Key) (*entry, bool) {
	t, ok := c.trees[archiveIdx]
	if !ok {
		return nil, false
	}
	e, ok := t.entries[key]
	return e, ok
}

func (c *Cache) insert(archiveIdx uint16, key Key, img patch.Image, tag Tag) {
	t, ok := c.trees[archiveIdx]
	if !ok {
		t = newTree()
		c.trees[archiveIdx] = t
	}
	if _, dup := t.entries[key]; dup {
		panic(fmt.Sprintf("cache: duplicate key %+v in archive %d", key, archiveIdx))
	}
	t.entries[key] = &entry{img: img, tag: tag}
}
