package distribution

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ulikunitz/xz"

	"buildwrap/internal/config"
	"buildwrap/internal/progress"
)

// archiveEntry is a file inside a test archive. Names ending in "/" are
// directories.
type archiveEntry struct {
	name string
	body string
	mode int64
}

func gradleEntries() []archiveEntry {
	return []archiveEntry{
		{name: "gradle-8.5/", mode: 0o755},
		{name: "gradle-8.5/bin/gradle", body: "#!/bin/sh\necho gradle\n", mode: 0o755},
		{name: "gradle-8.5/lib/gradle-launcher.jar", body: "jar", mode: 0o644},
	}
}

func sortedEntries(entries []archiveEntry) []archiveEntry {
	out := append([]archiveEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func buildZip(t *testing.T, entries []archiveEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range sortedEntries(entries) {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		switch {
		case e.name[len(e.name)-1] == '/':
			hdr.SetMode(os.ModeDir | 0o755)
		case e.mode != 0:
			hdr.SetMode(os.FileMode(e.mode))
		default:
			hdr.SetMode(0o644)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("zip header: %v", err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func writeTar(t *testing.T, tw *tar.Writer, entries []archiveEntry) {
	t.Helper()
	for _, e := range sortedEntries(entries) {
		hdr := &tar.Header{Name: e.name, Mode: e.mode}
		if e.name[len(e.name)-1] == '/' {
			hdr.Typeflag = tar.TypeDir
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		if hdr.Mode == 0 {
			hdr.Mode = 0o644
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("tar write: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
}

func buildTarGz(t *testing.T, entries []archiveEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	writeTar(t, tar.NewWriter(gz), entries)
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func buildTarXz(t *testing.T, entries []archiveEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	writeTar(t, tar.NewWriter(xw), entries)
	if err := xw.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}
	return buf.Bytes()
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// archiveServer serves payload at any path and counts requests.
type archiveServer struct {
	*httptest.Server
	hits    atomic.Int32
	payload []byte
	chunked bool
	gate    chan struct{}
}

func newArchiveServer(t *testing.T, payload []byte) *archiveServer {
	t.Helper()
	s := &archiveServer{payload: payload}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.gate != nil {
			<-s.gate
		}
		if s.chunked {
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
		} else {
			w.Header().Set("Content-Length", strconv.Itoa(len(s.payload)))
		}
		_, _ = w.Write(s.payload)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *archiveServer) url(t *testing.T, name string) *url.URL {
	t.Helper()
	u, err := url.Parse(s.URL + "/distributions/" + name)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func testConfig(rawURL string) config.Config {
	cfg := config.Default()
	cfg.Distribution.URL = rawURL
	cfg.Distribution.Archive = ""
	cfg.ApplyDefaults()
	return cfg
}

func testDescriptor(t *testing.T, u *url.URL, checksum string) Descriptor {
	t.Helper()
	cfg := testConfig(u.String())
	cfg.Distribution.SHA256 = checksum
	d, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	return d
}

// downloadRecorder is a progress.Listener keeping events.
type downloadRecorder struct {
	mu       sync.Mutex
	events   []progress.Event
	finished []progress.Event
}

func (r *downloadRecorder) OnDownload(e progress.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *downloadRecorder) OnDownloadFinished(e progress.Event) {
	r.mu.Lock()
	r.finished = append(r.finished, e)
	r.mu.Unlock()
}
