package distribution

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/tcnksm/go-latest"
)

// UpdateStatus compares a pinned distribution version with upstream.
type UpdateStatus struct {
	Tool     string `json:"tool"`
	Current  string `json:"current"`
	Latest   string `json:"latest,omitempty"`
	Outdated bool   `json:"outdated"`
}

// GithubSource returns the upstream tag source for d. Pre-release tags are
// skipped.
func GithubSource(d Descriptor) (latest.Source, error) {
	owner, repo, ok := strings.Cut(d.GitHub, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("%s: no github repository configured", d.Name)
	}
	return StableOnly(&latest.GithubTag{
		Owner:             owner,
		Repository:        repo,
		FixVersionStrFunc: latest.DeleteFrontV(),
	}), nil
}

// StableOnly drops pre-release versions from what src fetches.
func StableOnly(src latest.Source) latest.Source {
	return stableSource{Source: src}
}

type stableSource struct {
	latest.Source
}

func (s stableSource) Fetch() (*latest.FetchResponse, error) {
	res, err := s.Source.Fetch()
	if err != nil {
		return nil, err
	}
	kept := res.Versions[:0]
	for _, v := range res.Versions {
		if v.Prerelease() == "" {
			kept = append(kept, v)
		}
	}
	res.Versions = kept
	return res, nil
}

// Latest checks d's pinned version against src. The reported latest version
// keeps its upstream spelling.
func Latest(d Descriptor, src latest.Source) (UpdateStatus, error) {
	status := UpdateStatus{Tool: d.Name, Current: d.Version}
	if d.Version == "" {
		return status, fmt.Errorf("%s: no version pinned", d.Name)
	}
	current, err := version.NewVersion(d.Version)
	if err != nil {
		return status, fmt.Errorf("%s: invalid version %q: %w", d.Name, d.Version, err)
	}
	if err := src.Validate(); err != nil {
		return status, fmt.Errorf("check %s upstream: %w", d.Name, err)
	}
	res, err := src.Fetch()
	if err != nil {
		return status, fmt.Errorf("check %s upstream: %w", d.Name, err)
	}
	var newest *version.Version
	for _, v := range res.Versions {
		if newest == nil || v.GreaterThan(newest) {
			newest = v
		}
	}
	if newest == nil {
		return status, fmt.Errorf("check %s upstream: no versions found", d.Name)
	}
	status.Latest = newest.Original()
	status.Outdated = current.LessThan(newest)
	return status, nil
}
