// Package buildsys drives an external build tool through install and execute
// and broadcasts build lifecycle events to listeners.
//
// Failures are reported on two channels: the returned Installation or Outcome
// carries the error, and a Failure event is broadcast to build listeners.
// Hosts that register no listeners must inspect the returned values.
package buildsys

import (
	"context"
	"time"

	"buildwrap/internal/paths"
)

// Identity names a build system.
type Identity struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// DefaultIdentity is used when no identity option is given.
var DefaultIdentity = Identity{Name: "gradle", DisplayName: "Gradle"}

// Context is the installation context: where distributions are cached and
// which project drives the install.
type Context struct {
	ToolUserHome *paths.Handle
	ProjectDir   *paths.Handle
}

// Configured reports whether both directories are set.
func (c Context) Configured() bool {
	return c.ToolUserHome.String() != "" && c.ProjectDir.String() != ""
}

// State is the lifecycle state of a System.
type State int

const (
	Uninstalled State = iota
	Installed
	Executing
)

func (s State) String() string {
	switch s {
	case Uninstalled:
		return "uninstalled"
	case Installed:
		return "installed"
	case Executing:
		return "executing"
	default:
		return "unknown"
	}
}

// Result is what one execution of the tool produced. The zero Result is the
// neutral value returned when an execution fails.
type Result struct {
	Args     []string      `json:"args"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
}

// Installation is the outcome of Install. Dir is the installed distribution
// home on success. When Err is set the install degraded: Dir is the tool user
// home and the system stays in its previous state.
type Installation struct {
	Dir *paths.Handle
	Err error
}

// Degraded reports whether the install failed.
func (i Installation) Degraded() bool { return i.Err != nil }

// Tool is the external build tool collaborator.
type Tool interface {
	// Install resolves the project's distribution into the tool user home
	// and returns the installed distribution directory.
	Install(ctx context.Context, ic Context) (string, error)

	// Execute runs the tool from the installed distribution dist with args
	// passed through verbatim, using launcher to start it.
	Execute(ctx context.Context, ic Context, dist string, args []string, launcher Launcher) (Result, error)
}

// LaunchRequest describes one start of the tool.
type LaunchRequest struct {
	Home       string
	Executable string
	ProjectDir string
	Args       []string
	Env        []string
}

// Launcher starts the tool. Launchers are produced per project directory and
// consumed only by the Tool.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) (Result, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, req LaunchRequest) (Result, error)

func (f LauncherFunc) Launch(ctx context.Context, req LaunchRequest) (Result, error) {
	return f(ctx, req)
}
