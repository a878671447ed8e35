package buildsys

import (
	"context"
	"net/url"
	"sync"

	"buildwrap/internal/progress"
)

// fakeTool implements Tool for tests.
type fakeTool struct {
	mu sync.Mutex

	dist       string
	installErr error
	installs   int

	result   Result
	execErr  error
	lastArgs []string
	lastDist string
	launcher Launcher

	// status, when set, is called during Install to simulate a download.
	status   progress.StatusFunc
	download *url.URL
}

func (f *fakeTool) Install(ctx context.Context, ic Context) (string, error) {
	f.mu.Lock()
	f.installs++
	f.mu.Unlock()
	if f.status != nil && f.download != nil {
		f.status(f.download, 100, 40)
		f.status(f.download, 100, 100)
	}
	if f.installErr != nil {
		return "", f.installErr
	}
	return f.dist, nil
}

func (f *fakeTool) Execute(ctx context.Context, ic Context, dist string, args []string, launcher Launcher) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastArgs = args
	f.lastDist = dist
	f.launcher = launcher
	if f.execErr != nil {
		return Result{Args: args, ExitCode: 1}, f.execErr
	}
	res := f.result
	res.Args = args
	return res, nil
}

type downloadCapture struct {
	mu       sync.Mutex
	events   []progress.Event
	finished []progress.Event
}

func (c *downloadCapture) OnDownload(e progress.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *downloadCapture) OnDownloadFinished(e progress.Event) {
	c.mu.Lock()
	c.finished = append(c.finished, e)
	c.mu.Unlock()
}
