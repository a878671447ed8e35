package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"buildwrap/internal/progress"
)

const statusRefresh = 100 * time.Millisecond

// StatusWriter keeps a single spinner line on a terminal while the
// distribution resolves, before the tool's own output takes over. It is a
// progress.Listener so downloads drive the line directly.
type StatusWriter struct {
	w io.Writer

	mu      sync.Mutex
	message string
	since   time.Time

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewStatusWriter starts redrawing the status line on w.
func NewStatusWriter(w io.Writer) *StatusWriter {
	sw := &StatusWriter{
		w:       w,
		since:   time.Now(),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go sw.run()
	return sw
}

// Update starts a new phase: the message changes and the elapsed time
// restarts.
func (sw *StatusWriter) Update(msg string) {
	sw.mu.Lock()
	sw.message = msg
	sw.since = time.Now()
	sw.mu.Unlock()
}

// OnDownload shows the download's percentage without restarting the phase
// timer.
func (sw *StatusWriter) OnDownload(e progress.Event) {
	sw.mu.Lock()
	sw.message = fmt.Sprintf("Downloading %s %d%%", downloadName(e), e.Percent)
	sw.mu.Unlock()
}

// OnDownloadFinished switches the line to the unpack phase.
func (sw *StatusWriter) OnDownloadFinished(e progress.Event) {
	sw.Update(fmt.Sprintf("Installing %s", downloadName(e)))
}

// Stop waits for the redraw loop to exit and clears the line. It is safe to
// call more than once.
func (sw *StatusWriter) Stop() {
	sw.stopOnce.Do(func() {
		close(sw.stop)
		<-sw.stopped
		fmt.Fprint(sw.w, "\r\033[K")
	})
}

func (sw *StatusWriter) run() {
	defer close(sw.stopped)
	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-sw.stop:
			return
		case now := <-ticker.C:
			fmt.Fprint(sw.w, sw.line(frame, now))
		}
	}
}

func (sw *StatusWriter) line(frame int, now time.Time) string {
	sw.mu.Lock()
	msg, since := sw.message, sw.since
	sw.mu.Unlock()
	return fmt.Sprintf("\r\033[K%s %s (%s)", spinnerFrames[frame%len(spinnerFrames)], msg, formatElapsed(now.Sub(since)))
}

// formatElapsed renders a phase duration compactly: 850ms, 4.2s, 37s, 2m05s.
func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
