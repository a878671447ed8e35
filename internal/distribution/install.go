package distribution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"buildwrap/internal/logx"
)

// Installed describes an unpacked distribution.
type Installed struct {
	Descriptor Descriptor `json:"descriptor"`
	Home       string     `json:"home"`
	Archive    string     `json:"archive"`
	Checksum   string     `json:"checksum,omitempty"`
	Downloaded bool       `json:"downloaded"`
	Fresh      bool       `json:"fresh"`
}

// Installer places distributions into a tool user home.
type Installer struct {
	downloader *Downloader
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewInstaller returns an Installer using dl for transfers. A nil dl uses a
// default Downloader.
func NewInstaller(dl *Downloader, log logrus.FieldLogger) *Installer {
	if dl == nil {
		dl = NewDownloader()
	}
	if log == nil {
		log = logx.Discard()
	}
	return &Installer{downloader: dl, log: log, now: time.Now}
}

// Install makes the distribution d available under the tool user home and
// returns its unpacked home. A distribution whose marker exists is reused
// without touching the network.
func (i *Installer) Install(ctx context.Context, d Descriptor, userHome string) (Installed, error) {
	if err := d.CheckMinimum(); err != nil {
		return Installed{}, err
	}
	l := Layout{Home: userHome}
	log := i.log.WithFields(logrus.Fields{"tool": d.Name, "version": d.Version})

	if inst, ok, err := lookup(l, d); err != nil || ok {
		return inst, err
	}

	unlock, err := acquireLock(ctx, l.LockPath(d))
	if err != nil {
		return Installed{}, err
	}
	defer unlock()

	// Another process may have finished while we waited for the lock.
	if inst, ok, err := lookup(l, d); err != nil || ok {
		return inst, err
	}

	archive := l.ArchivePath(d)
	downloaded, err := i.downloader.Ensure(ctx, d.URL, archive, d.SHA256)
	if err != nil {
		return Installed{}, err
	}

	home, err := i.unpack(l, d, archive)
	if err != nil {
		return Installed{}, err
	}
	if d.Executable != "" {
		if _, err := os.Stat(filepath.Join(home, filepath.FromSlash(d.Executable))); err != nil {
			return Installed{}, fmt.Errorf("%s executable %s not found in distribution: %w", d.Name, d.Executable, err)
		}
	}

	checksum, err := computeChecksum(archive)
	if err != nil {
		return Installed{}, err
	}
	if err := os.WriteFile(l.MarkerPath(d), nil, 0o644); err != nil {
		return Installed{}, fmt.Errorf("write marker: %w", err)
	}

	inst := Installed{
		Descriptor: d,
		Home:       home,
		Archive:    archive,
		Checksum:   checksum,
		Downloaded: downloaded,
		Fresh:      true,
	}
	if err := i.record(ctx, l, inst); err != nil {
		return Installed{}, err
	}
	log.WithField("home", home).Info("distribution installed")
	return inst, nil
}

// Lookup returns the distribution d if it is already installed under
// userHome. It never downloads.
func Lookup(userHome string, d Descriptor) (Installed, bool, error) {
	return lookup(Layout{Home: userHome}, d)
}

func lookup(l Layout, d Descriptor) (Installed, bool, error) {
	if _, err := os.Stat(l.MarkerPath(d)); err != nil {
		return Installed{}, false, nil
	}
	home, err := singleTopLevelDir(l.DistDir(d))
	if err != nil {
		return Installed{}, false, err
	}
	return Installed{Descriptor: d, Home: home, Archive: l.ArchivePath(d)}, true, nil
}

// unpack extracts the archive into a scratch directory and moves its single
// top-level directory into the distribution directory.
func (i *Installer) unpack(l Layout, d Descriptor, archive string) (string, error) {
	distDir := l.DistDir(d)
	scratch, err := os.MkdirTemp(distDir, ".unpack-")
	if err != nil {
		return "", fmt.Errorf("create extract dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	if err := Unpack(d.Archive, archive, scratch); err != nil {
		return "", err
	}
	top, err := singleTopLevelDir(scratch)
	if err != nil {
		return "", err
	}

	home := filepath.Join(distDir, filepath.Base(top))
	if err := os.RemoveAll(home); err != nil {
		return "", fmt.Errorf("replace distribution dir: %w", err)
	}
	if err := os.Rename(top, home); err != nil {
		return "", fmt.Errorf("commit distribution dir: %w", err)
	}
	return home, nil
}

func (i *Installer) record(ctx context.Context, l Layout, inst Installed) error {
	unlock, err := acquireLock(ctx, l.ManifestPath()+".lck")
	if err != nil {
		return err
	}
	defer unlock()

	manifest, err := LoadManifest(l)
	if err != nil {
		return err
	}
	d := inst.Descriptor
	manifest.Entries[d.ID()] = ManifestEntry{
		Tool:        d.Name,
		Version:     d.Version,
		URL:         d.URL.String(),
		Home:        inst.Home,
		Archive:     inst.Archive,
		Checksum:    inst.Checksum,
		InstalledAt: i.now().UTC().Format(time.RFC3339),
	}
	return SaveManifest(l, manifest)
}
