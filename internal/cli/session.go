package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"buildwrap/internal/buildsys"
	"buildwrap/internal/config"
	"buildwrap/internal/logx"
	"buildwrap/internal/paths"
	"buildwrap/internal/progress"
	"buildwrap/internal/wrapper"
)

// Overridable in tests.
var (
	// newTool builds the tool for one connection; nil uses the distribution
	// tool.
	newTool func(verbose bool, reporter *progress.Reporter) buildsys.Tool

	// newLaunchers builds the launcher factory; nil starts the tool as a
	// child process streaming to the command's output.
	newLaunchers func(cmd *cobra.Command, log logrus.FieldLogger) wrapper.LauncherFactory
)

// session is the per-invocation state shared by commands.
type session struct {
	pp       paths.ProjectPaths
	userHome string
	cfg      config.Config
	verbose  bool
	log      *logrus.Logger
}

func openSession(cmd *cobra.Command) (*session, error) {
	pp, err := paths.Resolve(projectDir)
	if err != nil {
		return nil, err
	}
	if err := ensureProjectDir(pp); err != nil {
		return nil, err
	}

	home, err := paths.UserHome(userHomeDir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return nil, err
	}

	verbose := verboseOutput || cfg.Logging.Verbose
	log := logx.New(cmd.ErrOrStderr(), verbose)
	if !verbose {
		log.SetLevel(logx.ParseLevel(cfg.Logging.Level))
	}
	log.WithFields(logrus.Fields{"project": pp.Root, "user_home": home}).Debug("session opened")

	return &session{pp: pp, userHome: home, cfg: cfg, verbose: verbose, log: log}, nil
}

func ensureProjectDir(pp paths.ProjectPaths) error {
	exists, err := paths.DirExists(pp.Root)
	if err != nil {
		return fmt.Errorf("stat project dir: %w", err)
	}
	if !exists {
		return fmt.Errorf("project directory does not exist: %s", pp.Root)
	}
	return nil
}

// wrapper builds a Wrapper for the session's tool, notifying listeners of
// build events from the moment the system installs.
func (s *session) wrapper(cmd *cobra.Command, listeners ...buildsys.Listener) (*wrapper.Wrapper, error) {
	launchers := wrapper.ProcessLaunchers(cmd.OutOrStdout(), cmd.ErrOrStderr(), s.log)
	if newLaunchers != nil {
		launchers = newLaunchers(cmd, s.log)
	}
	verbose := s.verbose
	return wrapper.New(wrapper.Capabilities{
		Launchers: launchers,
		Verbose:   func() bool { return verbose },
		NewTool:   newTool,
	},
		wrapper.WithIdentity(s.cfg.Tool.Identity()),
		wrapper.WithLogger(s.log),
		wrapper.WithBuildListeners(listeners...),
	)
}

// connect attaches a system for the session's directories.
func (s *session) connect(cmd *cobra.Command, w *wrapper.Wrapper) (*buildsys.System, buildsys.Installation) {
	return w.Attach(cmd.Context(), paths.Default.Resolve(s.userHome), paths.Default.Resolve(s.pp.Root))
}
