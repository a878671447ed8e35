package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"buildwrap/internal/config"
	"buildwrap/internal/distribution"
)

func installDefaultDistribution(t *testing.T, home string) (distribution.Descriptor, string) {
	t.Helper()
	cfg := config.Default()
	cfg.ApplyDefaults()
	d, err := distribution.FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	l := distribution.Layout{Home: home}
	distHome := filepath.Join(l.DistDir(d), "gradle-8.5")
	if err := os.MkdirAll(filepath.Join(distHome, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(distHome, "bin", "gradle"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(l.ArchivePath(d), []byte("zip bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(l.MarkerPath(d), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	m := distribution.Manifest{Entries: map[string]distribution.ManifestEntry{
		d.ID(): {Tool: "gradle", Version: "8.5", URL: d.URL.String(), Home: distHome, Archive: l.ArchivePath(d), InstalledAt: "2026-10-01T10:00:00Z"},
	}}
	if err := distribution.SaveManifest(l, m); err != nil {
		t.Fatal(err)
	}
	return d, distHome
}

func TestStatusCommandTableOutput(t *testing.T) {
	project, home := withCLIState(t)

	stdout, stderr, err := runCommand(newStatusCmd())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	got := stdout.String()
	if !strings.Contains(got, "Project: "+project) || !strings.Contains(got, "User home: "+home) {
		t.Fatalf("expected project and home in output, got %q", got)
	}
	if !strings.Contains(got, "gradle-8.5 (not installed)") {
		t.Fatalf("expected not installed, got %q", got)
	}
	if strings.Contains(got, "TOOL") {
		t.Fatalf("expected no manifest table, got %q", got)
	}
	if !strings.Contains(stderr.String(), "distribution.sha256 is not set") {
		t.Fatalf("expected the checksum warning, got %q", stderr.String())
	}
}

func TestStatusShowsInstalledDistribution(t *testing.T) {
	_, home := withCLIState(t)
	_, distHome := installDefaultDistribution(t, home)

	stdout, _, err := runCommand(newStatusCmd())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	got := stdout.String()
	if !strings.Contains(got, "gradle-8.5 (installed at "+distHome+")") {
		t.Fatalf("expected installed line, got %q", got)
	}
	if !strings.Contains(got, "TOOL") || !strings.Contains(got, "2026-10-01T10:00:00Z") {
		t.Fatalf("expected manifest table, got %q", got)
	}
}

func TestStatusCommandJSONOutput(t *testing.T) {
	_, home := withCLIState(t)
	outputJSON = true
	installDefaultDistribution(t, home)

	stdout, _, err := runCommand(newStatusCmd())
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	var payload statusPayload
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		t.Fatalf("decode %q: %v", stdout.String(), err)
	}
	if !payload.Distribution.Installed || payload.Distribution.ID != "gradle-8.5" {
		t.Fatalf("unexpected distribution %+v", payload.Distribution)
	}
	if len(payload.Entries) != 1 || payload.Entries[0].Version != "8.5" {
		t.Fatalf("unexpected entries %+v", payload.Entries)
	}
}

func TestStatusFailsOnConfigErrors(t *testing.T) {
	project, _ := withCLIState(t)
	data := "distribution:\n  url: https://example.com/tool-2.0.zip\n  version: \"1.0\"\n  minimum_version: \"2.0\"\n"
	if err := os.WriteFile(filepath.Join(project, "buildwrap.yaml"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := runCommand(newStatusCmd())
	if err == nil || !strings.Contains(err.Error(), "configuration errors") {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(stderr.String(), "error:") {
		t.Fatalf("expected error listed, got %q", stderr.String())
	}
}
