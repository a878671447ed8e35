// Package distribution resolves, downloads, unpacks and launches build tool
// distributions under a tool user home.
package distribution

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-version"

	"buildwrap/internal/config"
)

// Descriptor identifies one distribution of a build tool.
type Descriptor struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	MinimumVersion string   `json:"minimum_version,omitempty"`
	URL            *url.URL `json:"-"`
	SHA256         string   `json:"sha256,omitempty"`
	Archive        string   `json:"archive"`
	Executable     string   `json:"executable"`
	GitHub         string   `json:"github,omitempty"`
}

// FromConfig builds a Descriptor from a project configuration.
func FromConfig(cfg config.Config) (Descriptor, error) {
	d := cfg.Distribution
	if strings.TrimSpace(d.URL) == "" {
		return Descriptor{}, fmt.Errorf("distribution url is required")
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return Descriptor{}, fmt.Errorf("parse distribution url: %w", err)
	}
	archive := d.ArchiveFormat()
	if archive == "" {
		return Descriptor{}, fmt.Errorf("cannot infer archive format from %s", d.URL)
	}
	return Descriptor{
		Name:           cfg.Tool.Name,
		Version:        d.Version,
		MinimumVersion: d.MinimumVersion,
		URL:            u,
		SHA256:         strings.ToLower(d.SHA256),
		Archive:        archive,
		Executable:     d.Executable,
		GitHub:         d.GitHub,
	}, nil
}

// ID is the manifest key for the distribution.
func (d Descriptor) ID() string {
	if d.Version == "" {
		return d.Name
	}
	return d.Name + "-" + d.Version
}

// ArchiveName returns the file name the archive is stored under.
func (d Descriptor) ArchiveName() string {
	if d.URL == nil {
		return ""
	}
	name := d.URL.Path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = d.ID() + "." + d.Archive
	}
	return name
}

// CheckMinimum reports an error when the descriptor's version is below its
// minimum version.
func (d Descriptor) CheckMinimum() error {
	if d.MinimumVersion == "" {
		return nil
	}
	if d.Version == "" {
		return fmt.Errorf("%s: version unknown, minimum %s required", d.Name, d.MinimumVersion)
	}
	v, err := version.NewVersion(d.Version)
	if err != nil {
		return fmt.Errorf("%s: parse version %q: %w", d.Name, d.Version, err)
	}
	minV, err := version.NewVersion(d.MinimumVersion)
	if err != nil {
		return fmt.Errorf("%s: parse minimum version %q: %w", d.Name, d.MinimumVersion, err)
	}
	if v.LessThan(minV) {
		return fmt.Errorf("%s version %s below minimum %s", d.Name, v, minV)
	}
	return nil
}
