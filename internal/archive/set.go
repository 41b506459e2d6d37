package archive

import (
	"fmt"
	"strings"
	"sync"
)

// Set is the loaded resource set. Archive indices are assigned in mount
// order and are not reused until Reset starts a new epoch.
type Set struct {
	mu        sync.RWMutex
	archives  []*Archive // nil once unloaded
	listeners []func(archive uint16)
	epoch     int
}

// NewSet creates an empty resource set.
func NewSet() *Set {
	return &Set{}
}

// Mount appends an archive and returns its index.
func (s *Set) Mount(a *Archive) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives = append(s.archives, a)
	return uint16(len(s.archives) - 1)
}

// OnUnload registers fn to be called after an archive leaves the set.
func (s *Set) OnUnload(fn func(archive uint16)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Unload removes archive idx. Its index stays reserved.
func (s *Set) Unload(idx uint16) error {
	s.mu.Lock()
	if int(idx) >= len(s.archives) || s.archives[idx] == nil {
		s.mu.Unlock()
		return fmt.Errorf("archive %d: %w", idx, ErrNotFound)
	}
	s.archives[idx] = nil
	listeners := append([]func(uint16){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(idx)
	}
	return nil
}

// Reset unloads everything and starts a new epoch in which indices are
// assigned from zero again.
func (s *Set) Reset() {
	s.mu.Lock()
	var loaded []uint16
	for i, a := range s.archives {
		if a != nil {
			loaded = append(loaded, uint16(i))
		}
	}
	s.archives = nil
	s.epoch++
	listeners := append([]func(uint16){}, s.listeners...)
	s.mu.Unlock()

	for _, idx := range loaded {
		for _, fn := range listeners {
			fn(idx)
		}
	}
}

// Epoch returns the number of resets so far.
func (s *Set) Epoch() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Len returns the number of archive slots, including unloaded ones.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.archives)
}

// Archive returns the archive at idx.
func (s *Set) Archive(idx uint16) (*Archive, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(idx) >= len(s.archives) || s.archives[idx] == nil {
		return nil, false
	}
	return s.archives[idx], true
}

// FetchBytes returns the contents of a resource.
func (s *Set) FetchBytes(archive, resource uint16) ([]byte, error) {
	a, ok := s.Archive(archive)
	if !ok {
		return nil, fmt.Errorf("archive %d: %w", archive, ErrNotFound)
	}
	r, ok := a.Resource(resource)
	if !ok {
		return nil, fmt.Errorf("resource %d:%d: %w", archive, resource, ErrNotFound)
	}
	return r.Bytes()
}

// ResolveName finds a resource by name. Later archives shadow earlier ones.
func (s *Set) ResolveName(name string) (Origin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.archives) - 1; i >= 0; i-- {
		a := s.archives[i]
		if a == nil {
			continue
		}
		if r, ok := a.Find(name); ok {
			return Origin{Archive: uint16(i), Resource: r}, nil
		}
	}
	return Origin{}, fmt.Errorf("resource %q: %w", name, ErrNotFound)
}

// FindPrefix lists resources in archive idx whose short name starts with
// prefix.
func (s *Set) FindPrefix(idx uint16, prefix string) []uint16 {
	a, ok := s.Archive(idx)
	if !ok {
		return nil
	}
	prefix = ShortName(prefix)
	var out []uint16
	for i := range a.resources {
		if strings.HasPrefix(a.resources[i].Name, prefix) {
			out = append(out, uint16(i))
		}
	}
	return out
}
