package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

const (
	LevelError   = "error"
	LevelWarning = "warning"
)

var (
	toolNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	githubPattern   = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
)

// Validate runs all validations against the config and returns structured
// results.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateTool()...)
	results = append(results, c.validateDistribution()...)
	results = append(results, c.validateVersions()...)
	results = append(results, c.validateExecution()...)
	results = append(results, c.validateLogging()...)
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == LevelError {
			return true
		}
	}
	return false
}

func (c Config) validateTool() []ValidationResult {
	if !toolNamePattern.MatchString(c.Tool.Name) {
		return []ValidationResult{errorf("tool name %q must be lowercase letters, digits, '.', '_' or '-'", c.Tool.Name)}
	}
	return nil
}

func (c Config) validateDistribution() []ValidationResult {
	var results []ValidationResult
	d := c.Distribution

	u, err := url.Parse(d.URL)
	switch {
	case strings.TrimSpace(d.URL) == "":
		results = append(results, errorf("distribution url is required"))
	case err != nil:
		results = append(results, errorf("distribution url %q is invalid: %v", d.URL, err))
	case u.Scheme != "https" && u.Scheme != "http" && u.Scheme != "file":
		results = append(results, errorf("distribution url %q must use https, http or file", d.URL))
	case u.Scheme == "http":
		results = append(results, warnf("distribution url %q is not using https", d.URL))
	}

	switch d.ArchiveFormat() {
	case ArchiveZip, ArchiveTarGz, ArchiveTarXz:
	case "":
		results = append(results, errorf("cannot infer archive format from %q; set distribution.archive", d.URL))
	default:
		results = append(results, errorf("unsupported archive format %q", d.Archive))
	}

	if d.SHA256 == "" {
		results = append(results, warnf("distribution.sha256 is not set; downloads will not be verified"))
	} else if b, err := hex.DecodeString(d.SHA256); err != nil || len(b) != 32 {
		results = append(results, errorf("distribution.sha256 must be 64 hex characters"))
	}

	exe := d.Executable
	switch {
	case exe == "":
		results = append(results, errorf("distribution.executable is required"))
	case path.IsAbs(exe) || strings.HasPrefix(path.Clean(exe), ".."):
		results = append(results, errorf("distribution.executable %q must be relative to the distribution home", exe))
	}

	if d.GitHub != "" && !githubPattern.MatchString(d.GitHub) {
		results = append(results, warnf("distribution.github %q should be owner/repo", d.GitHub))
	}
	return results
}

func (c Config) validateVersions() []ValidationResult {
	d := c.Distribution
	if d.Version == "" {
		return []ValidationResult{errorf("distribution.version is required")}
	}
	v, err := version.NewVersion(d.Version)
	if err != nil {
		return []ValidationResult{errorf("distribution.version %q is not a version: %v", d.Version, err)}
	}
	if d.MinimumVersion == "" {
		return nil
	}
	minV, err := version.NewVersion(d.MinimumVersion)
	if err != nil {
		return []ValidationResult{errorf("distribution.minimum_version %q is not a version: %v", d.MinimumVersion, err)}
	}
	if v.LessThan(minV) {
		return []ValidationResult{errorf("distribution.version %s is below minimum_version %s", v, minV)}
	}
	return nil
}

func (c Config) validateExecution() []ValidationResult {
	var results []ValidationResult
	if c.Execution.Timeout < 0 {
		results = append(results, errorf("execution.timeout must not be negative"))
	}
	for k := range c.Execution.Env {
		if k == "" || strings.ContainsAny(k, "= ") {
			results = append(results, errorf("execution.env key %q is invalid", k))
		}
	}
	return results
}

func (c Config) validateLogging() []ValidationResult {
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return []ValidationResult{warnf("logging.level: %v", err)}
	}
	return nil
}

func errorf(format string, args ...any) ValidationResult {
	return ValidationResult{Level: LevelError, Message: fmt.Sprintf(format, args...)}
}

func warnf(format string, args ...any) ValidationResult {
	return ValidationResult{Level: LevelWarning, Message: fmt.Sprintf(format, args...)}
}
