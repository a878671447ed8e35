package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"buildwrap/internal/buildsys"
	"buildwrap/internal/config"
	"buildwrap/internal/logx"
	"buildwrap/internal/paths"
)

// Tool implements buildsys.Tool on top of a project's buildwrap.yaml.
type Tool struct {
	installer *Installer
	load      func(projectDir string) (config.Config, error)
	stdout    io.Writer
	stderr    io.Writer
	log       logrus.FieldLogger
}

// ToolOption configures a Tool.
type ToolOption func(*Tool)

// WithInstaller sets the installer.
func WithInstaller(i *Installer) ToolOption {
	return func(t *Tool) {
		if i != nil {
			t.installer = i
		}
	}
}

// WithConfigLoader replaces how the project configuration is read.
func WithConfigLoader(fn func(projectDir string) (config.Config, error)) ToolOption {
	return func(t *Tool) {
		if fn != nil {
			t.load = fn
		}
	}
}

// WithOutput sets where the default launcher streams the tool's output.
func WithOutput(stdout, stderr io.Writer) ToolOption {
	return func(t *Tool) {
		t.stdout = stdout
		t.stderr = stderr
	}
}

// WithToolLogger sets the logger.
func WithToolLogger(log logrus.FieldLogger) ToolOption {
	return func(t *Tool) {
		if log != nil {
			t.log = log
		}
	}
}

// NewTool returns a Tool with a default installer.
func NewTool(opts ...ToolOption) *Tool {
	t := &Tool{load: LoadProjectConfig, log: logx.Discard()}
	for _, opt := range opts {
		opt(t)
	}
	if t.installer == nil {
		t.installer = NewInstaller(NewDownloader(WithDownloadLogger(t.log)), t.log)
	}
	return t
}

// LoadProjectConfig loads and validates buildwrap.yaml from projectDir.
func LoadProjectConfig(projectDir string) (config.Config, error) {
	cfg, err := config.Load(filepath.Join(projectDir, paths.ConfigFileName))
	if err != nil {
		return config.Config{}, err
	}
	var errs []error
	for _, r := range cfg.Validate() {
		if r.Level == config.LevelError {
			errs = append(errs, errors.New(r.Message))
		}
	}
	if len(errs) > 0 {
		return config.Config{}, fmt.Errorf("invalid %s: %w", paths.ConfigFileName, errors.Join(errs...))
	}
	return cfg, nil
}

// Install implements buildsys.Tool.
func (t *Tool) Install(ctx context.Context, ic buildsys.Context) (string, error) {
	cfg, err := t.load(ic.ProjectDir.String())
	if err != nil {
		return "", err
	}
	d, err := FromConfig(cfg)
	if err != nil {
		return "", err
	}
	inst, err := t.installer.Install(ctx, d, ic.ToolUserHome.String())
	if err != nil {
		return "", err
	}
	return inst.Home, nil
}

// Execute implements buildsys.Tool. A nil launcher uses a ProcessLauncher
// writing to the tool's output streams.
func (t *Tool) Execute(ctx context.Context, ic buildsys.Context, dist string, args []string, launcher buildsys.Launcher) (buildsys.Result, error) {
	cfg, err := t.load(ic.ProjectDir.String())
	if err != nil {
		return buildsys.Result{Args: args, ExitCode: -1}, err
	}
	if launcher == nil {
		launcher = &ProcessLauncher{Runner: CmdRunner{}, Stdout: t.stdout, Stderr: t.stderr, Log: t.log}
	}
	if timeout := cfg.Execution.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	env := append([]string{userHomeEnv(cfg.Tool.Name) + "=" + ic.ToolUserHome.String()}, cfg.Execution.Environ()...)
	req := buildsys.LaunchRequest{
		Home:       dist,
		Executable: filepath.Join(dist, filepath.FromSlash(cfg.Distribution.Executable)),
		ProjectDir: ic.ProjectDir.String(),
		Args:       args,
		Env:        env,
	}
	res, err := launcher.Launch(ctx, req)
	if err != nil {
		return res, &buildsys.ExecutionError{Tool: cfg.Tool.Name, Args: args, ExitCode: res.ExitCode, Err: err}
	}
	return res, nil
}

// userHomeEnv names the variable the tool reads its user home from, e.g.
// GRADLE_USER_HOME.
func userHomeEnv(tool string) string {
	name := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(tool))
	return name + "_USER_HOME"
}

var _ buildsys.Tool = (*Tool)(nil)
