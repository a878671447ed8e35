package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"buildwrap/internal/buildsys"
	"buildwrap/internal/progress"
)

// fakeTool installs into a fixed directory and records executions.
type fakeTool struct {
	mu         sync.Mutex
	dist       string
	installErr error
	execErr    error
	exitCode   int
	calls      [][]string
}

func (f *fakeTool) Install(ctx context.Context, ic buildsys.Context) (string, error) {
	if f.installErr != nil {
		return "", f.installErr
	}
	return f.dist, nil
}

func (f *fakeTool) Execute(ctx context.Context, ic buildsys.Context, dist string, args []string, l buildsys.Launcher) (buildsys.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()
	if f.execErr != nil {
		return buildsys.Result{Args: args, ExitCode: f.exitCode}, &buildsys.ExecutionError{Tool: "gradle", Args: args, ExitCode: f.exitCode, Err: f.execErr}
	}
	return buildsys.Result{Args: args, ExitCode: 0}, nil
}

func (f *fakeTool) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// withCLIState resets the package flag variables and test hooks for one test.
func withCLIState(t *testing.T) (project, home string) {
	t.Helper()
	prevProject, prevHome := projectDir, userHomeDir
	prevJSON, prevVerbose, prevNoProgress := outputJSON, verboseOutput, noProgress
	prevTool, prevLaunchers, prevLatest := newTool, newLaunchers, latestSource
	prevInitForce, prevClean, prevStrict := initForce, cleanOpts, checkStrict
	t.Cleanup(func() {
		projectDir, userHomeDir = prevProject, prevHome
		outputJSON, verboseOutput, noProgress = prevJSON, prevVerbose, prevNoProgress
		newTool, newLaunchers, latestSource = prevTool, prevLaunchers, prevLatest
		initForce, cleanOpts, checkStrict = prevInitForce, prevClean, prevStrict
	})

	t.Setenv("BUILDWRAP_VERBOSE", "")
	t.Setenv("BUILDWRAP_USER_HOME", "")

	project = t.TempDir()
	home = t.TempDir()
	projectDir = project
	userHomeDir = home
	outputJSON = false
	verboseOutput = false
	noProgress = true
	return project, home
}

func useTool(tool buildsys.Tool) {
	newTool = func(bool, *progress.Reporter) buildsys.Tool { return tool }
}

func newFakeTool(t *testing.T) *fakeTool {
	t.Helper()
	dist := filepath.Join(t.TempDir(), "gradle-8.5")
	if err := os.MkdirAll(dist, 0o755); err != nil {
		t.Fatal(err)
	}
	return &fakeTool{dist: dist}
}

func runCommand(cmd *cobra.Command, args ...string) (stdout, stderr *bytes.Buffer, err error) {
	stdout = &bytes.Buffer{}
	stderr = &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return stdout, stderr, err
}
