package distribution

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CleanOptions selects what Clean removes.
type CleanOptions struct {
	// Archives removes downloaded archives but keeps unpacked distributions.
	Archives bool
	// Dists removes whole distribution directories and their manifest
	// entries.
	Dists bool
	// ID limits cleaning to one distribution, e.g. "gradle-8.5".
	ID string
	// DryRun reports what would be removed without removing it.
	DryRun bool
}

// CleanResult lists what Clean removed.
type CleanResult struct {
	Removed []string `json:"removed"`
	Bytes   int64    `json:"bytes"`
}

// Clean removes cached distribution data under l.
func Clean(l Layout, opts CleanOptions) (CleanResult, error) {
	var result CleanResult
	ids, err := distIDs(l, opts.ID)
	if err != nil {
		return result, err
	}

	for _, id := range ids {
		root := filepath.Join(l.DistsDir(), id)
		if opts.Dists {
			size := dirSize(root)
			if !opts.DryRun {
				if err := os.RemoveAll(root); err != nil {
					return result, fmt.Errorf("remove %s: %w", root, err)
				}
			}
			result.Removed = append(result.Removed, root)
			result.Bytes += size
			continue
		}
		if !opts.Archives {
			continue
		}
		archives, err := archivesUnder(root)
		if err != nil {
			return result, err
		}
		for _, a := range archives {
			info, err := os.Stat(a)
			if err != nil {
				continue
			}
			if !opts.DryRun {
				if err := os.Remove(a); err != nil {
					return result, fmt.Errorf("remove %s: %w", a, err)
				}
			}
			result.Removed = append(result.Removed, a)
			result.Bytes += info.Size()
		}
	}

	if opts.Dists && !opts.DryRun && len(result.Removed) > 0 {
		manifest, err := LoadManifest(l)
		if err != nil {
			return result, err
		}
		changed := 0
		for _, root := range result.Removed {
			changed += manifest.Remove(root)
		}
		if changed > 0 {
			if err := SaveManifest(l, manifest); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

func distIDs(l Layout, only string) ([]string, error) {
	if only != "" {
		if strings.ContainsAny(only, `/\`) || only == "." || only == ".." {
			return nil, fmt.Errorf("invalid distribution id %q", only)
		}
		if _, err := os.Stat(filepath.Join(l.DistsDir(), only)); err != nil {
			return nil, nil
		}
		return []string{only}, nil
	}
	entries, err := os.ReadDir(l.DistsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dists dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// archivesUnder finds downloaded archives one level below each URL hash
// directory. Markers and locks are kept.
func archivesUnder(root string) ([]string, error) {
	hashes, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var out []string
	for _, h := range hashes {
		if !h.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, h.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", h.Name(), err)
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || strings.HasSuffix(name, ".ok") || strings.HasSuffix(name, ".lck") || strings.HasSuffix(name, ".tmp") {
				continue
			}
			out = append(out, filepath.Join(root, h.Name(), name))
		}
	}
	return out, nil
}

func dirSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
