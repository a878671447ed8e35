package tui

import (
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"buildwrap/internal/buildsys"
	"buildwrap/internal/progress"
)

// DownloadKey is the row key used for a download.
func DownloadKey(e progress.Event) string {
	return "download:" + e.URL()
}

// BuildKey is the row key used for a build run. Install failures have no run
// ID and share the "install" row.
func BuildKey(e buildsys.Event) string {
	if e.RunID == "" {
		return "install"
	}
	return "build:" + e.RunID
}

// Reporter turns download and build notifications into bubbletea messages.
// It satisfies both progress.Listener and buildsys.Listener.
type Reporter struct {
	send func(tea.Msg)
}

// NewReporter wraps a send callback, usually the one handed to RunWithWork.
func NewReporter(send func(tea.Msg)) *Reporter {
	return &Reporter{send: send}
}

func (r *Reporter) OnDownload(e progress.Event) {
	r.send(RowUpdateMsg{Key: DownloadKey(e), Fields: downloadFields(e, StatusDownloading)})
	r.send(ProgressMsg{Key: DownloadKey(e), Percent: float64(e.Percent) / 100})
}

func (r *Reporter) OnDownloadFinished(e progress.Event) {
	r.send(RowUpdateMsg{Key: DownloadKey(e), Fields: downloadFields(e, StatusDownloaded)})
	r.send(ProgressMsg{Key: DownloadKey(e), Percent: 1})
}

func (r *Reporter) BuildStarted(e buildsys.Event) {
	r.send(RowUpdateMsg{Key: BuildKey(e), Fields: buildFields(e, StatusRunning)})
}

func (r *Reporter) BuildComplete(e buildsys.Event) {
	r.send(RowUpdateMsg{Key: BuildKey(e), Fields: buildFields(e, StatusComplete)})
}

func (r *Reporter) BuildFailure(e buildsys.Event) {
	r.send(RowUpdateMsg{Key: BuildKey(e), Fields: buildFields(e, StatusFailed)})
}

func downloadFields(e progress.Event, status string) map[string]string {
	return map[string]string{
		"STATUS": status,
		"ITEM":   downloadName(e),
		"SIZE":   FormatBytes(e.TotalBytes),
	}
}

func buildFields(e buildsys.Event, status string) map[string]string {
	item := "install"
	if e.RunID != "" {
		item = strings.Join(e.Result.Args, " ")
		if e.Kind == buildsys.KindComplete {
			item = fmt.Sprintf("%s (exit %d)", NonEmptyOrDash(item), e.Result.ExitCode)
		}
	}
	if e.Err != nil {
		item = e.Err.Error()
	}
	return map[string]string{
		"STATUS": status,
		"ITEM":   NonEmptyOrDash(item),
		"SIZE":   "-",
	}
}

func downloadName(e progress.Event) string {
	if e.Address == nil {
		return "-"
	}
	if base := path.Base(e.Address.Path); base != "." && base != "/" {
		return base
	}
	return e.Address.Host
}

// PlainReporter writes one line per notification. It is used when stdout is
// not a terminal. Intermediate download updates are only written every
// Step percent.
type PlainReporter struct {
	w    io.Writer
	Step int

	mu   sync.Mutex
	last map[string]int
}

// NewPlainReporter writes to w, logging downloads every 25 percent.
func NewPlainReporter(w io.Writer) *PlainReporter {
	return &PlainReporter{w: w, Step: 25, last: make(map[string]int)}
}

func (p *PlainReporter) OnDownload(e progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := DownloadKey(e)
	prev, seen := p.last[key]
	if seen && e.Percent-prev < p.Step {
		return
	}
	p.last[key] = e.Percent
	fmt.Fprintf(p.w, "%-11s %s %3d%% of %s\n", StatusDownloading, downloadName(e), e.Percent, FormatBytes(e.TotalBytes))
}

func (p *PlainReporter) OnDownloadFinished(e progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.last, DownloadKey(e))
	fmt.Fprintf(p.w, "%-11s %s (%s)\n", StatusDownloaded, downloadName(e), FormatBytes(e.TotalBytes))
}

func (p *PlainReporter) BuildStarted(e buildsys.Event) {
	p.line(StatusRunning, e)
}

func (p *PlainReporter) BuildComplete(e buildsys.Event) {
	p.line(StatusComplete, e)
}

func (p *PlainReporter) BuildFailure(e buildsys.Event) {
	p.line(StatusFailed, e)
}

func (p *PlainReporter) line(status string, e buildsys.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%-11s %s\n", status, buildFields(e, status)["ITEM"])
}

// FormatBytes renders a byte count for display, "-" when unknown.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
