package distribution

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ManifestEntry records one installed distribution.
type ManifestEntry struct {
	Tool        string `json:"tool"`
	Version     string `json:"version"`
	URL         string `json:"url"`
	Home        string `json:"home"`
	Archive     string `json:"archive"`
	Checksum    string `json:"checksum,omitempty"`
	InstalledAt string `json:"installed_at,omitempty"`
}

// Manifest wraps persisted entries keyed by Descriptor.ID.
type Manifest struct {
	Entries map[string]ManifestEntry `json:"entries"`
}

// Sorted returns the entries ordered by key.
func (m Manifest) Sorted() []ManifestEntry {
	keys := make([]string, 0, len(m.Entries))
	for k := range m.Entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]ManifestEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.Entries[k])
	}
	return out
}

// LoadManifest reads the manifest under l, returning an empty one when the
// file does not exist yet.
func LoadManifest(l Layout) (Manifest, error) {
	contents, err := os.ReadFile(l.ManifestPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{Entries: map[string]ManifestEntry{}}, nil
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(contents, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Entries == nil {
		manifest.Entries = map[string]ManifestEntry{}
	}
	return manifest, nil
}

// SaveManifest replaces the manifest under l atomically.
func SaveManifest(l Layout, m Manifest) error {
	path := l.ManifestPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare manifest directory: %w", err)
	}

	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close manifest temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// Remove deletes the entries whose home lies under root and reports how many
// were removed.
func (m Manifest) Remove(root string) int {
	root = filepath.Clean(root)
	removed := 0
	for k, e := range m.Entries {
		home := filepath.Clean(e.Home)
		if home == root || strings.HasPrefix(home, root+string(filepath.Separator)) {
			delete(m.Entries, k)
			removed++
		}
	}
	return removed
}
