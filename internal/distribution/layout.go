package distribution

import (
	"crypto/md5"
	"math/big"
	"path/filepath"
)

const manifestFileName = "manifest.json"

// Layout assembles the on-disk locations of distributions under a tool user
// home:
//
//	<home>/wrapper/dists/<name>-<version>/<urlhash>/<archive>
//	<home>/wrapper/dists/<name>-<version>/<urlhash>/<archive>.ok
//	<home>/wrapper/dists/<name>-<version>/<urlhash>/<archive>.lck
//	<home>/wrapper/manifest.json
type Layout struct {
	Home string
}

// WrapperDir is the root of everything the wrapper writes.
func (l Layout) WrapperDir() string { return filepath.Join(l.Home, "wrapper") }

// DistsDir holds every distribution.
func (l Layout) DistsDir() string { return filepath.Join(l.WrapperDir(), "dists") }

// ManifestPath is the install manifest.
func (l Layout) ManifestPath() string { return filepath.Join(l.WrapperDir(), manifestFileName) }

// DistDir is the directory for one distribution URL.
func (l Layout) DistDir(d Descriptor) string {
	return filepath.Join(l.DistsDir(), d.ID(), URLHash(d.URL.String()))
}

// ArchivePath is where the downloaded archive is kept.
func (l Layout) ArchivePath(d Descriptor) string {
	return filepath.Join(l.DistDir(d), d.ArchiveName())
}

// MarkerPath marks a completely unpacked distribution.
func (l Layout) MarkerPath(d Descriptor) string { return l.ArchivePath(d) + ".ok" }

// LockPath serializes installs of one distribution across processes.
func (l Layout) LockPath(d Descriptor) string { return l.ArchivePath(d) + ".lck" }

// URLHash returns the base-36 MD5 of a distribution URL, matching the layout
// used by the Gradle wrapper.
func URLHash(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return new(big.Int).SetBytes(sum[:]).Text(36)
}
