package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDir indexes every regular file under dir as one archive. Resources are
// ordered by relative path so indices are stable between runs. Contents are
// read lazily.
func LoadDir(dir string) (*Archive, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("archive: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("archive: %s is not a directory", dir)
	}

	var rels []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// skip hidden directories such as .git
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan %s: %w", dir, err)
	}
	sort.Strings(rels)

	a := &Archive{Name: filepath.Base(dir)}
	for _, rel := range rels {
		a.resources = append(a.resources, Resource{
			Name:     ShortName(rel),
			LongName: LongName(rel),
			Path:     filepath.Join(dir, filepath.FromSlash(rel)),
		})
	}
	return a, nil
}
