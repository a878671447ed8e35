package buildsys

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured is returned when Install runs before Configure.
	ErrNotConfigured = errors.New("installation context not configured")
	// ErrNotInstalled is returned when Execute runs before a successful Install.
	ErrNotInstalled = errors.New("build system not installed")
	// ErrBusy is returned when Execute is called while another execution runs.
	ErrBusy = errors.New("build system already executing")
)

// InstallationError reports that a distribution could not be resolved,
// downloaded or unpacked.
type InstallationError struct {
	Tool string
	Err  error
}

func (e *InstallationError) Error() string {
	return fmt.Sprintf("install %s: %v", e.Tool, e.Err)
}

func (e *InstallationError) Unwrap() error { return e.Err }

// ExecutionError reports that the tool failed to run or exited non-zero.
type ExecutionError struct {
	Tool     string
	Args     []string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	cmd := e.Tool
	if len(e.Args) > 0 {
		cmd += " " + strings.Join(e.Args, " ")
	}
	return fmt.Sprintf("%s: %v", cmd, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
