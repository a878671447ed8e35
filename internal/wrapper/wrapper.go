// Package wrapper connects hosts to build systems: it builds a System for a
// project, binds the host's launcher to it and installs the distribution.
package wrapper

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"buildwrap/internal/buildsys"
	"buildwrap/internal/distribution"
	"buildwrap/internal/event"
	"buildwrap/internal/logx"
	"buildwrap/internal/paths"
	"buildwrap/internal/progress"
)

// ErrMissingCapability is returned by New when a required capability is nil.
var ErrMissingCapability = errors.New("missing capability")

// LauncherFactory produces the launcher for one project directory.
type LauncherFactory func(projectDir *paths.Handle) buildsys.Launcher

// Capabilities are what a host supplies to a Wrapper.
type Capabilities struct {
	// Launchers starts the tool for a project. Required.
	Launchers LauncherFactory
	// Verbose reports whether the host wants tool logs. Required.
	Verbose func() bool
	// NewTool builds the tool for one connection. Defaults to the
	// distribution tool reporting downloads to reporter.
	NewTool func(verbose bool, reporter *progress.Reporter) buildsys.Tool
}

// Wrapper creates connected build systems.
type Wrapper struct {
	caps      Capabilities
	identity  buildsys.Identity
	cache     *paths.Cache
	log       logrus.FieldLogger
	listeners []buildsys.Listener

	observers event.Registry[progress.Listener]
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithIdentity names the systems the wrapper creates.
func WithIdentity(id buildsys.Identity) Option {
	return func(w *Wrapper) { w.identity = id }
}

// WithPaths sets the path cache. The default is paths.Default.
func WithPaths(c *paths.Cache) Option {
	return func(w *Wrapper) {
		if c != nil {
			w.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(w *Wrapper) {
		if log != nil {
			w.log = log
		}
	}
}

// WithBuildListeners subscribes ls to every system before it installs, so
// install failures reach them.
func WithBuildListeners(ls ...buildsys.Listener) Option {
	return func(w *Wrapper) { w.listeners = append(w.listeners, ls...) }
}

// New returns a Wrapper. It fails when a required capability is missing.
func New(caps Capabilities, opts ...Option) (*Wrapper, error) {
	if caps.Launchers == nil {
		return nil, fmt.Errorf("%w: launcher factory", ErrMissingCapability)
	}
	if caps.Verbose == nil {
		return nil, fmt.Errorf("%w: verbosity", ErrMissingCapability)
	}
	w := &Wrapper{
		caps:     caps,
		identity: buildsys.DefaultIdentity,
		cache:    paths.Default,
		log:      logx.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.caps.NewTool == nil {
		w.caps.NewTool = w.distributionTool
	}
	return w, nil
}

// SubscribeDownloads registers a download listener on every system the
// wrapper creates, current and future.
func (w *Wrapper) SubscribeDownloads(l progress.Listener) { w.observers.Subscribe(l) }

// UnsubscribeDownloads removes a download listener.
func (w *Wrapper) UnsubscribeDownloads(l progress.Listener) { w.observers.Unsubscribe(l) }

// Connect resolves the directories, then returns a configured system that has
// attempted to install. The system is returned even when the install
// degraded; its state then stays Uninstalled.
func (w *Wrapper) Connect(ctx context.Context, toolUserHome, projectDir string) *buildsys.System {
	sys, _ := w.Attach(ctx, w.cache.Resolve(toolUserHome), w.cache.Resolve(projectDir))
	return sys
}

// ConnectHandles is Connect for resolved handles.
func (w *Wrapper) ConnectHandles(ctx context.Context, toolUserHome, projectDir *paths.Handle) *buildsys.System {
	sys, _ := w.Attach(ctx, toolUserHome, projectDir)
	return sys
}

// Attach is Connect that also returns the installation outcome.
func (w *Wrapper) Attach(ctx context.Context, toolUserHome, projectDir *paths.Handle) (*buildsys.System, buildsys.Installation) {
	verbose := w.caps.Verbose()
	reporter := progress.NewReporter(w.log)
	tool := w.caps.NewTool(verbose, reporter)

	sys := buildsys.New(tool,
		buildsys.WithIdentity(w.identity),
		buildsys.WithLauncher(w.caps.Launchers(projectDir)),
		buildsys.WithLogger(w.log),
		buildsys.WithPaths(w.cache),
		buildsys.WithReporter(reporter),
		buildsys.WithDownloadObservers(&w.observers),
	)
	for _, l := range w.listeners {
		sys.Subscribe(l)
	}
	sys.Configure(toolUserHome, projectDir)
	return sys, sys.Install(ctx)
}

func (w *Wrapper) distributionTool(verbose bool, reporter *progress.Reporter) buildsys.Tool {
	var log logrus.FieldLogger = logx.Discard()
	if verbose {
		log = w.log
	}
	dl := distribution.NewDownloader(
		distribution.WithProgressReporter(reporter),
		distribution.WithDownloadLogger(log),
	)
	return distribution.NewTool(
		distribution.WithInstaller(distribution.NewInstaller(dl, log)),
		distribution.WithToolLogger(log),
	)
}

// ProcessLaunchers returns a factory of launchers that run the tool as a
// child process, streaming its output to stdout and stderr.
func ProcessLaunchers(stdout, stderr io.Writer, log logrus.FieldLogger) LauncherFactory {
	return func(projectDir *paths.Handle) buildsys.Launcher {
		l := distribution.NewProcessLauncher(stdout, stderr)
		l.Log = log
		return l
	}
}
