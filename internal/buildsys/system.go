package buildsys

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"buildwrap/internal/event"
	"buildwrap/internal/logx"
	"buildwrap/internal/paths"
	"buildwrap/internal/progress"
)

// System owns installation and execution against one Tool.
//
// Lifecycle: Uninstalled -> Installed -> (Executing <-> Installed). The
// installation context and state follow a single-writer model; listener
// registries are safe to use from any goroutine.
type System struct {
	identity Identity
	tool     Tool
	launcher Launcher
	cache    *paths.Cache
	log      logrus.FieldLogger

	listeners event.Registry[Listener]
	downloads event.Registry[progress.Listener]
	observers *event.Registry[progress.Listener]

	mu           sync.Mutex
	state        State
	ictx         Context
	installation Installation
}

// Option configures a System.
type Option func(*System)

// WithIdentity sets the system's name and display name.
func WithIdentity(id Identity) Option {
	return func(s *System) {
		if id.Name != "" {
			s.identity.Name = id.Name
		}
		if id.DisplayName != "" {
			s.identity.DisplayName = id.DisplayName
		}
	}
}

// WithLauncher sets the launcher handed to the tool on Execute.
func WithLauncher(l Launcher) Option {
	return func(s *System) { s.launcher = l }
}

// WithLogger sets the logger. The default discards.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *System) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPaths sets the path cache used by ConfigurePaths and for installed
// distribution handles. The default is paths.Default.
func WithPaths(c *paths.Cache) Option {
	return func(s *System) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithDownloadObservers forwards download events to an externally owned
// registry in addition to the system's own download subscribers.
func WithDownloadObservers(r *event.Registry[progress.Listener]) Option {
	return func(s *System) { s.observers = r }
}

// WithReporter subscribes the system to a progress reporter so download
// events raised while installing are re-broadcast by the system.
func WithReporter(r *progress.Reporter) Option {
	return func(s *System) {
		if r != nil {
			r.Subscribe(s)
		}
	}
}

// New returns an uninstalled System driving tool.
func New(tool Tool, opts ...Option) *System {
	s := &System{
		identity: DefaultIdentity,
		tool:     tool,
		cache:    paths.Default,
		log:      logx.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("tool", s.identity.Name)
	return s
}

// Identity returns the system's identity.
func (s *System) Identity() Identity { return s.identity }

// Name returns the stable machine name, e.g. "gradle".
func (s *System) Name() string { return s.identity.Name }

// DisplayName returns the human label, e.g. "Gradle".
func (s *System) DisplayName() string { return s.identity.DisplayName }

// State returns the current lifecycle state.
func (s *System) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Context returns the installation context last configured.
func (s *System) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ictx
}

// Installed returns the last successful installation.
func (s *System) Installed() (Installation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installation, s.state != Uninstalled
}

// Configure records the installation context, replacing any previous one.
// It does not change the install state.
func (s *System) Configure(toolUserHome, projectDir *paths.Handle) *System {
	s.mu.Lock()
	s.ictx = Context{ToolUserHome: toolUserHome, ProjectDir: projectDir}
	s.mu.Unlock()
	return s
}

// ConfigurePaths is Configure for plain path strings, resolved through the
// system's path cache.
func (s *System) ConfigurePaths(toolUserHome, projectDir string) *System {
	return s.Configure(s.cache.Resolve(toolUserHome), s.cache.Resolve(projectDir))
}

// Subscribe registers a build listener.
func (s *System) Subscribe(l Listener) { s.listeners.Subscribe(l) }

// Unsubscribe removes a build listener.
func (s *System) Unsubscribe(l Listener) { s.listeners.Unsubscribe(l) }

// SubscribeDownloads registers a download listener on this system.
func (s *System) SubscribeDownloads(l progress.Listener) { s.downloads.Subscribe(l) }

// UnsubscribeDownloads removes a download listener.
func (s *System) UnsubscribeDownloads(l progress.Listener) { s.downloads.Unsubscribe(l) }

// Broadcast delivers e to every build listener. All listeners are notified
// even if some fail; the first failure is returned.
func (s *System) Broadcast(e Event) error {
	if e.System == nil {
		e.System = s
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return s.listeners.ForEach(func(l Listener) error {
		switch e.Kind {
		case KindStarted:
			l.BuildStarted(e)
		case KindComplete:
			l.BuildComplete(e)
		case KindFailure:
			l.BuildFailure(e)
		}
		return nil
	})
}

// Install resolves and installs the project's distribution.
//
// Install never returns a bare error. On failure it broadcasts a Failure
// event carrying an *InstallationError and returns a degraded Installation
// whose Dir is the tool user home and whose Err is that error.
func (s *System) Install(ctx context.Context) Installation {
	ic := s.Context()
	if !ic.Configured() {
		return s.failInstall(ic, ErrNotConfigured)
	}

	start := time.Now()
	s.log.WithFields(logrus.Fields{
		"user_home": ic.ToolUserHome.String(),
		"project":   ic.ProjectDir.String(),
	}).Debug("installing")

	dir, err := s.tool.Install(ctx, ic)
	if err != nil {
		return s.failInstall(ic, err)
	}

	inst := Installation{Dir: s.cache.Resolve(dir)}
	s.mu.Lock()
	s.installation = inst
	if s.state == Uninstalled {
		s.state = Installed
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"dist":     dir,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("installed")
	return inst
}

func (s *System) failInstall(ic Context, cause error) Installation {
	err := &InstallationError{Tool: s.identity.Name, Err: cause}
	s.log.WithError(cause).Warn("install failed")
	if berr := s.Broadcast(Event{Kind: KindFailure, Err: err}); berr != nil {
		s.log.WithError(berr).Warn("build listener failed")
	}
	return Installation{Dir: ic.ToolUserHome, Err: err}
}

// Execute runs the tool with args passed through verbatim. It requires a
// prior successful Install and does not install on demand. Failures are
// returned as *ExecutionError; the Result may still carry the exit code and
// captured output. Execute broadcasts no build events; see Task.
func (s *System) Execute(ctx context.Context, args ...string) (Result, error) {
	argv := slices.Clone(args)

	s.mu.Lock()
	switch s.state {
	case Uninstalled:
		s.mu.Unlock()
		return Result{}, &ExecutionError{Tool: s.identity.Name, Args: argv, ExitCode: -1, Err: ErrNotInstalled}
	case Executing:
		s.mu.Unlock()
		return Result{}, &ExecutionError{Tool: s.identity.Name, Args: argv, ExitCode: -1, Err: ErrBusy}
	}
	s.state = Executing
	ic := s.ictx
	dist := s.installation.Dir.String()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = Installed
		s.mu.Unlock()
	}()

	s.log.WithField("args", argv).Debug("executing")
	res, err := s.tool.Execute(ctx, ic, dist, argv, s.launcher)
	if err != nil {
		var ee *ExecutionError
		if !errors.As(err, &ee) {
			err = &ExecutionError{Tool: s.identity.Name, Args: argv, ExitCode: res.ExitCode, Err: err}
		}
		return res, err
	}
	return res, nil
}

// OnDownload re-broadcasts a download progress event unchanged.
func (s *System) OnDownload(e progress.Event) {
	s.forwardDownload(func(l progress.Listener) { l.OnDownload(e) })
}

// OnDownloadFinished re-broadcasts a download completion event unchanged.
func (s *System) OnDownloadFinished(e progress.Event) {
	s.forwardDownload(func(l progress.Listener) { l.OnDownloadFinished(e) })
}

func (s *System) forwardDownload(fn func(progress.Listener)) {
	call := func(l progress.Listener) error {
		fn(l)
		return nil
	}
	if err := s.downloads.ForEach(call); err != nil {
		s.log.WithError(err).Warn("download listener failed")
	}
	if s.observers == nil {
		return
	}
	if err := s.observers.ForEach(call); err != nil {
		s.log.WithError(err).Warn("download observer failed")
	}
}

// String implements fmt.Stringer.
func (s *System) String() string {
	return fmt.Sprintf("%s (%s)", s.identity.DisplayName, s.State())
}

var (
	_ progress.Listener = (*System)(nil)
	_ fmt.Stringer      = (*System)(nil)
)
