package config

import (
	"strings"
	"testing"
)

func errorsOf(results []ValidationResult) []ValidationResult {
	var errs []ValidationResult
	for _, r := range results {
		if r.Level == LevelError {
			errs = append(errs, r)
		}
	}
	return errs
}

func TestValidateDefaultHasNoErrors(t *testing.T) {
	results := Default().Validate()
	if HasErrors(results) {
		t.Fatalf("expected no errors, got %v", errorsOf(results))
	}
	// No checksum configured.
	if len(results) != 1 || results[0].Level != LevelWarning {
		t.Fatalf("expected a single sha256 warning, got %v", results)
	}
}

func TestValidateFindings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad tool name", func(c *Config) { c.Tool.Name = "Gradle Wrapper" }, "tool name"},
		{"missing url", func(c *Config) { c.Distribution.URL = "" }, "url is required"},
		{"bad scheme", func(c *Config) { c.Distribution.URL = "ftp://host/gradle.zip" }, "must use https"},
		{"unknown archive", func(c *Config) { c.Distribution.Archive = "rar" }, "unsupported archive"},
		{"short checksum", func(c *Config) { c.Distribution.SHA256 = "abc" }, "64 hex"},
		{"absolute executable", func(c *Config) { c.Distribution.Executable = "/usr/bin/gradle" }, "must be relative"},
		{"escaping executable", func(c *Config) { c.Distribution.Executable = "../bin/gradle" }, "must be relative"},
		{"missing version", func(c *Config) { c.Distribution.Version = "" }, "version is required"},
		{"bad version", func(c *Config) { c.Distribution.Version = "eight" }, "not a version"},
		{"below minimum", func(c *Config) { c.Distribution.Version = "6.9" }, "below minimum_version"},
		{"negative timeout", func(c *Config) { c.Execution.Timeout = -1 }, "timeout"},
		{"bad env key", func(c *Config) { c.Execution.Env = map[string]string{"A B": "x"} }, "env key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			errs := errorsOf(cfg.Validate())
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
			}
			if !strings.Contains(errs[0].Message, tc.want) {
				t.Fatalf("expected message containing %q, got %q", tc.want, errs[0].Message)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Distribution.SHA256 = strings.Repeat("ab", 32)
	cfg.Distribution.URL = "http://mirror.local/gradle-8.5-bin.zip"
	cfg.Distribution.GitHub = "not a repo"
	cfg.Logging.Level = "loud"

	results := cfg.Validate()
	if HasErrors(results) {
		t.Fatalf("expected warnings only, got %v", results)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 warnings, got %d: %v", len(results), results)
	}
}
