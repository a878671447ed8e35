package distribution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"buildwrap/internal/logx"
	"buildwrap/internal/progress"
)

const defaultReportEvery = 32 << 10

// ErrChecksumMismatch is returned when a downloaded archive does not match
// the configured sha256.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Downloader fetches distribution archives and reports byte counters as
// they arrive. Concurrent fetches of the same URL into the same destination
// share a single transfer.
type Downloader struct {
	client      *http.Client
	userAgent   string
	status      progress.StatusFunc
	forget      func(*url.URL)
	reportEvery int64
	log         logrus.FieldLogger

	group singleflight.Group
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient sets the HTTP client. The default is http.DefaultClient.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) {
		if c != nil {
			d.client = c
		}
	}
}

// WithStatus sets the raw counter callback.
func WithStatus(fn progress.StatusFunc) DownloaderOption {
	return func(d *Downloader) { d.status = fn }
}

// WithProgressReporter reports counters to r and resets r's tracking for a
// URL before each fresh transfer of it.
func WithProgressReporter(r *progress.Reporter) DownloaderOption {
	return func(d *Downloader) {
		if r == nil {
			return
		}
		d.status = r.Status()
		d.forget = r.Forget
	}
}

// WithReportEvery sets the minimum number of bytes between progress reports.
func WithReportEvery(n int64) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.reportEvery = n
		}
	}
}

// WithDownloadLogger sets the logger.
func WithDownloadLogger(log logrus.FieldLogger) DownloaderOption {
	return func(d *Downloader) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDownloader returns a Downloader.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client:      http.DefaultClient,
		userAgent:   "buildwrap/1.0",
		reportEvery: defaultReportEvery,
		log:         logx.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ensure makes sure dest holds the archive at u. An existing file is reused
// when it matches checksum, or when no checksum is configured. It reports
// whether a transfer happened.
func (d *Downloader) Ensure(ctx context.Context, u *url.URL, dest, checksum string) (bool, error) {
	if _, err := os.Stat(dest); err == nil {
		if checksum == "" {
			return false, nil
		}
		if match, err := verifyChecksum(dest, checksum); err == nil && match {
			return false, nil
		}
		d.log.WithField("url", u.String()).Warn("cached archive failed verification; downloading again")
	}
	if err := d.Fetch(ctx, u, dest, checksum); err != nil {
		return false, err
	}
	return true, nil
}

// Fetch downloads u to dest, verifying checksum when set. The file at dest is
// replaced atomically.
func (d *Downloader) Fetch(ctx context.Context, u *url.URL, dest, checksum string) error {
	key := u.String() + "\x00" + dest
	_, err, shared := d.group.Do(key, func() (any, error) {
		return nil, d.fetch(ctx, u, dest, checksum)
	})
	if shared {
		d.log.WithField("url", u.String()).Debug("joined in-flight download")
	}
	return err
}

func (d *Downloader) fetch(ctx context.Context, u *url.URL, dest, checksum string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare download destination: %w", err)
	}

	body, total, err := d.open(ctx, u)
	if err != nil {
		return err
	}
	defer body.Close()
	if total < 0 {
		total = 0
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if d.forget != nil {
		d.forget(u)
	}
	log := d.log.WithField("url", u.String())
	log.WithField("bytes", total).Info("downloading")

	counter := &countingWriter{address: u, total: total, every: d.reportEvery, status: d.status}
	n, err := io.Copy(io.MultiWriter(tmpFile, counter), body)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("download %s: %w", u, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if total > 0 && n != total {
		return fmt.Errorf("download %s: received %d of %d bytes", u, n, total)
	}
	if total == 0 && n > 0 {
		// Unknown length: the transfer is complete once the body is drained.
		// An empty body has nothing to report.
		counter.report(n, n)
	}

	if checksum != "" {
		match, err := verifyChecksum(tmpPath, checksum)
		if err != nil {
			return err
		}
		if !match {
			return fmt.Errorf("%w for %s", ErrChecksumMismatch, u)
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	log.WithField("bytes", n).Debug("download complete")
	return nil
}

func (d *Downloader) open(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	if u.Scheme == "file" {
		f, err := os.Open(filepath.FromSlash(u.Path))
		if err != nil {
			return nil, 0, fmt.Errorf("open %s: %w", u, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("stat %s: %w", u, err)
		}
		return f, info.Size(), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download %s: unexpected status %s", u, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}

// countingWriter turns written bytes into status callbacks.
type countingWriter struct {
	address  *url.URL
	total    int64
	every    int64
	status   progress.StatusFunc
	written  int64
	reported int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.written-w.reported >= w.every || (w.total > 0 && w.written >= w.total) {
		w.report(w.total, w.written)
	}
	return len(p), nil
}

func (w *countingWriter) report(total, downloaded int64) {
	w.reported = downloaded
	if w.status != nil {
		w.status(w.address, total, downloaded)
	}
}

func verifyChecksum(path, expected string) (bool, error) {
	sum, err := computeChecksum(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, expected), nil
}

func computeChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
