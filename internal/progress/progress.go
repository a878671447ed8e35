// Package progress turns raw downloader byte counters into percentage events.
package progress

import (
	"errors"
	"math/bits"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"buildwrap/internal/event"
	"buildwrap/internal/logx"
)

// ErrProtocol marks a status callback that was rejected: negative counters, a
// missing address, or downloaded bytes going backwards.
var ErrProtocol = errors.New("malformed download status")

// Event describes the state of one download.
type Event struct {
	Address         *url.URL `json:"-"`
	TotalBytes      int64    `json:"total_bytes"`
	DownloadedBytes int64    `json:"downloaded_bytes"`
	Percent         int      `json:"percent"`
}

// URL returns the address as a string, or "" when unset.
func (e Event) URL() string {
	if e.Address == nil {
		return ""
	}
	return e.Address.String()
}

// Listener receives download notifications.
type Listener interface {
	OnDownload(Event)
	OnDownloadFinished(Event)
}

// StatusFunc is the callback shape a downloader reports raw counters through.
type StatusFunc func(address *url.URL, totalBytes, downloadedBytes int64)

// ListenerFuncs adapts plain functions to Listener. Use it by pointer so it
// can be unsubscribed.
type ListenerFuncs struct {
	Download func(Event)
	Finished func(Event)
}

func (f *ListenerFuncs) OnDownload(e Event) {
	if f.Download != nil {
		f.Download(e)
	}
}

func (f *ListenerFuncs) OnDownloadFinished(e Event) {
	if f.Finished != nil {
		f.Finished(e)
	}
}

// Percent computes floor(min(downloaded/total, 1) * 100). An unknown total
// (0) reports 0.
func Percent(totalBytes, downloadedBytes int64) int {
	if totalBytes <= 0 || downloadedBytes <= 0 {
		return 0
	}
	if downloadedBytes >= totalBytes {
		return 100
	}
	// 128-bit product; hi < totalBytes because downloadedBytes < totalBytes.
	hi, lo := bits.Mul64(uint64(downloadedBytes), 100)
	q, _ := bits.Div64(hi, lo, uint64(totalBytes))
	return int(q)
}

type transfer struct {
	downloaded int64
	done       bool
}

// Reporter receives OnDownloadStatus callbacks and broadcasts Events. Each
// address is tracked separately; once an address reaches 100% its finished
// event has been sent and further callbacks for it are ignored until Forget.
type Reporter struct {
	listeners event.Registry[Listener]
	log       logrus.FieldLogger

	mu        sync.Mutex
	transfers map[string]*transfer
	rejected  int
}

// NewReporter returns a reporter logging rejected callbacks to log. A nil log
// discards them.
func NewReporter(log logrus.FieldLogger) *Reporter {
	if log == nil {
		log = logx.Discard()
	}
	return &Reporter{log: log, transfers: make(map[string]*transfer)}
}

// Subscribe registers l for download events.
func (r *Reporter) Subscribe(l Listener) { r.listeners.Subscribe(l) }

// Unsubscribe removes l.
func (r *Reporter) Unsubscribe(l Listener) { r.listeners.Unsubscribe(l) }

// Status returns r.OnDownloadStatus as a StatusFunc.
func (r *Reporter) Status() StatusFunc { return r.OnDownloadStatus }

// OnDownloadStatus records a raw counter update and notifies listeners.
func (r *Reporter) OnDownloadStatus(address *url.URL, totalBytes, downloadedBytes int64) {
	ev, finished, err := r.record(address, totalBytes, downloadedBytes)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"url":        urlString(address),
			"total":      totalBytes,
			"downloaded": downloadedBytes,
		}).WithError(err).Warn("download status rejected")
		return
	}
	if ev == nil {
		return
	}

	if err := r.listeners.ForEach(func(l Listener) error {
		l.OnDownload(*ev)
		return nil
	}); err != nil {
		r.log.WithError(err).Warn("download listener failed")
	}
	if !finished {
		return
	}
	if err := r.listeners.ForEach(func(l Listener) error {
		l.OnDownloadFinished(*ev)
		return nil
	}); err != nil {
		r.log.WithError(err).Warn("download listener failed")
	}
}

func (r *Reporter) record(address *url.URL, totalBytes, downloadedBytes int64) (*Event, bool, error) {
	if address == nil || totalBytes < 0 || downloadedBytes < 0 {
		r.reject()
		return nil, false, ErrProtocol
	}

	key := address.String()
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.transfers[key]
	if !ok {
		t = &transfer{}
		r.transfers[key] = t
	}
	if t.done {
		return nil, false, nil
	}
	if downloadedBytes < t.downloaded {
		r.rejected++
		return nil, false, ErrProtocol
	}
	t.downloaded = downloadedBytes

	pct := Percent(totalBytes, downloadedBytes)
	if pct == 100 {
		t.done = true
	}
	return &Event{
		Address:         address,
		TotalBytes:      totalBytes,
		DownloadedBytes: downloadedBytes,
		Percent:         pct,
	}, t.done, nil
}

func (r *Reporter) reject() {
	r.mu.Lock()
	r.rejected++
	r.mu.Unlock()
}

// Forget drops tracking for address so a fresh transfer reports again.
func (r *Reporter) Forget(address *url.URL) {
	if address == nil {
		return
	}
	r.mu.Lock()
	delete(r.transfers, address.String())
	r.mu.Unlock()
}

// Rejected returns the number of callbacks rejected as malformed.
func (r *Reporter) Rejected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
