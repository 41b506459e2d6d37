package archive

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNotFound reports an origin or name that does not resolve.
var ErrNotFound = errors.New("not found")

// ShortNameLen is the maximum length of a short resource name.
const ShortNameLen = 8

// Origin identifies a resource within the loaded set.
type Origin struct {
	Archive  uint16
	Resource uint16
}

func (o Origin) String() string {
	return fmt.Sprintf("%d:%d", o.Archive, o.Resource)
}

// Source supplies raw resource bytes.
type Source interface {
	FetchBytes(archive, resource uint16) ([]byte, error)
}

// Resource is one named entry in an archive. Data is either held in memory
// or read from Path on demand.
type Resource struct {
	Name     string // short, upper-case, at most ShortNameLen
	LongName string // full path-like name, forward slashes
	Path     string
	Data     []byte
}

// Bytes returns the resource contents.
func (r *Resource) Bytes() ([]byte, error) {
	if r.Data != nil || r.Path == "" {
		return r.Data, nil
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", r.Path, err)
	}
	return data, nil
}

// Archive is an ordered list of resources.
type Archive struct {
	Name      string
	resources []Resource
}

// New creates an empty in-memory archive.
func New(name string) *Archive {
	return &Archive{Name: name}
}

// Add appends a resource held in memory and returns its index. The short
// name is derived from name.
func (a *Archive) Add(name string, data []byte) uint16 {
	a.resources = append(a.resources, Resource{
		Name:     ShortName(name),
		LongName: LongName(name),
		Data:     data,
	})
	return uint16(len(a.resources) - 1)
}

// Len returns the number of resources.
func (a *Archive) Len() int {
	return len(a.resources)
}

// Resource returns the resource at index i.
func (a *Archive) Resource(i uint16) (*Resource, bool) {
	if int(i) >= len(a.resources) {
		return nil, false
	}
	return &a.resources[i], true
}

// Find returns the index of the first resource matching name. Names with a
// slash match long names, others match short names; both case-insensitively.
func (a *Archive) Find(name string) (uint16, bool) {
	long := strings.Contains(name, "/")
	want := ShortName(name)
	if long {
		want = LongName(name)
	}
	for i := range a.resources {
		r := &a.resources[i]
		if long && r.LongName == want || !long && r.Name == want {
			return uint16(i), true
		}
	}
	return 0, false
}

// ShortName folds name to the short upper-case form: path and extension
// stripped, truncated to ShortNameLen.
func ShortName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = cases.Upper(language.Und).String(name)
	if len(name) > ShortNameLen {
		name = name[:ShortNameLen]
	}
	return name
}

// LongName folds a path-like name for comparison.
func LongName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return cases.Upper(language.Und).String(strings.TrimPrefix(name, "/"))
}
