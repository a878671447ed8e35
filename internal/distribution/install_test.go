package distribution

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestInstallDownloadsAndUnpacks(t *testing.T) {
	payload := buildZip(t, gradleEntries())
	srv := newArchiveServer(t, payload)
	d := testDescriptor(t, srv.url(t, "gradle-8.5-bin.zip"), sha256Hex(payload))
	home := t.TempDir()

	inst := NewInstaller(nil, nil)
	inst.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	got, err := inst.Install(context.Background(), d, home)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	l := Layout{Home: home}
	if want := filepath.Join(l.DistDir(d), "gradle-8.5"); got.Home != want {
		t.Fatalf("expected home %s, got %s", want, got.Home)
	}
	if !got.Fresh || !got.Downloaded {
		t.Fatalf("expected a fresh download, got %+v", got)
	}
	if got.Checksum != sha256Hex(payload) {
		t.Fatalf("unexpected checksum %s", got.Checksum)
	}
	if _, err := os.Stat(l.MarkerPath(d)); err != nil {
		t.Fatalf("expected marker: %v", err)
	}
	if _, err := os.Stat(l.LockPath(d)); !os.IsNotExist(err) {
		t.Fatal("expected lock released")
	}

	manifest, err := LoadManifest(l)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	entry, ok := manifest.Entries["gradle-8.5"]
	if !ok {
		t.Fatalf("expected manifest entry, got %v", manifest.Entries)
	}
	if entry.Home != got.Home || entry.URL != d.URL.String() || entry.InstalledAt != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected manifest entry %+v", entry)
	}

	again, err := inst.Install(context.Background(), d, home)
	if err != nil {
		t.Fatalf("second install: %v", err)
	}
	if again.Fresh || again.Home != got.Home {
		t.Fatalf("expected reuse of installed distribution, got %+v", again)
	}
	if srv.hits.Load() != 1 {
		t.Fatalf("expected one download, got %d", srv.hits.Load())
	}

	found, ok, err := Lookup(home, d)
	if err != nil || !ok || found.Home != got.Home {
		t.Fatalf("lookup: %+v ok=%v err=%v", found, ok, err)
	}
}

func TestInstallTarXz(t *testing.T) {
	payload := buildTarXz(t, gradleEntries())
	srv := newArchiveServer(t, payload)
	d := testDescriptor(t, srv.url(t, "gradle-8.5-bin.tar.xz"), "")

	got, err := NewInstaller(nil, nil).Install(context.Background(), d, t.TempDir())
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(got.Home, "bin", "gradle")); err != nil {
		t.Fatalf("expected executable: %v", err)
	}
}

func TestInstallBelowMinimumFailsBeforeDownload(t *testing.T) {
	srv := newArchiveServer(t, buildZip(t, gradleEntries()))
	d := testDescriptor(t, srv.url(t, "gradle-6.0-bin.zip"), "")
	d.Version = "6.0"

	_, err := NewInstaller(nil, nil).Install(context.Background(), d, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "below minimum") {
		t.Fatalf("expected minimum version error, got %v", err)
	}
	if srv.hits.Load() != 0 {
		t.Fatal("expected no download")
	}
}

func TestInstallMissingExecutable(t *testing.T) {
	entries := []archiveEntry{
		{name: "gradle-8.5/", mode: 0o755},
		{name: "gradle-8.5/README", body: "no launcher here"},
	}
	srv := newArchiveServer(t, buildZip(t, entries))
	d := testDescriptor(t, srv.url(t, "gradle-8.5-bin.zip"), "")
	home := t.TempDir()

	_, err := NewInstaller(nil, nil).Install(context.Background(), d, home)
	if err == nil || !strings.Contains(err.Error(), "bin/gradle") {
		t.Fatalf("expected missing executable error, got %v", err)
	}
	if _, err := os.Stat(Layout{Home: home}.MarkerPath(d)); !os.IsNotExist(err) {
		t.Fatal("expected no marker for a broken distribution")
	}
}

func TestInstallRejectsFlatArchive(t *testing.T) {
	entries := []archiveEntry{
		{name: "a/", mode: 0o755},
		{name: "b/", mode: 0o755},
	}
	srv := newArchiveServer(t, buildZip(t, entries))
	d := testDescriptor(t, srv.url(t, "gradle-8.5-bin.zip"), "")

	_, err := NewInstaller(nil, nil).Install(context.Background(), d, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "exactly one top-level directory") {
		t.Fatalf("expected layout error, got %v", err)
	}
}

func TestConcurrentInstallsDownloadOnce(t *testing.T) {
	payload := buildTarGz(t, gradleEntries())
	srv := newArchiveServer(t, payload)
	d := testDescriptor(t, srv.url(t, "gradle-8.5-bin.tar.gz"), sha256Hex(payload))
	home := t.TempDir()
	inst := NewInstaller(nil, nil)

	var wg sync.WaitGroup
	homes := make([]string, 3)
	errs := make([]error, 3)
	for i := range homes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := inst.Install(context.Background(), d, home)
			homes[i], errs[i] = got.Home, err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("install %d: %v", i, err)
		}
		if homes[i] != homes[0] {
			t.Fatalf("expected identical homes, got %v", homes)
		}
	}
	if srv.hits.Load() != 1 {
		t.Fatalf("expected one download, got %d", srv.hits.Load())
	}
}
