package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ManifestEntry represents one exported rotation in the output manifest.
type ManifestEntry struct {
	Name       string  `json:"name"`
	Angle      float64 `json:"angle"`
	Bucket     int     `json:"bucket"`
	Flip       bool    `json:"flip"`
	Image      string  `json:"image"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	LeftOffset int     `json:"left_offset"`
	TopOffset  int     `json:"top_offset"`
}

// WriteManifest writes the successful results to path as JSON.
func WriteManifest(path string, results []Result) error {
	entries := make([]ManifestEntry, 0, len(results))
	for _, r := range results {
		if !r.Success {
			continue
		}
		entries = append(entries, ManifestEntry{
			Name:       r.Name,
			Angle:      r.Angle(),
			Bucket:     r.Bucket,
			Flip:       r.Flip,
			Image:      filepath.ToSlash(r.Image),
			Width:      r.Width,
			Height:     r.Height,
			LeftOffset: r.LeftOffset,
			TopOffset:  r.TopOffset,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
