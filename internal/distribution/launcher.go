package distribution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"buildwrap/internal/buildsys"
	"buildwrap/internal/logx"
)

const defaultTailLines = 40

// RunOptions configures one process start.
type RunOptions struct {
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// RunResult is what a finished process left behind.
type RunResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner starts processes.
type Runner interface {
	Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error)
}

// CmdRunner runs processes with os/exec.
type CmdRunner struct{}

func (CmdRunner) Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriter := io.Writer(&stdoutBuf)
	if opts.Stdout != nil {
		stdoutWriter = io.MultiWriter(&stdoutBuf, opts.Stdout)
	}
	stderrWriter := io.Writer(&stderrBuf)
	if opts.Stderr != nil {
		stderrWriter = io.MultiWriter(&stderrBuf, opts.Stderr)
	}

	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	err := cmd.Run()
	res := RunResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
	}
	return res, err
}

var _ Runner = CmdRunner{}

// ProcessLauncher starts the tool executable as a child process in the
// project directory.
type ProcessLauncher struct {
	Runner    Runner
	Stdout    io.Writer
	Stderr    io.Writer
	TailLines int
	Log       logrus.FieldLogger
}

// NewProcessLauncher returns a launcher that streams the tool's output to
// stdout and stderr.
func NewProcessLauncher(stdout, stderr io.Writer) *ProcessLauncher {
	return &ProcessLauncher{Runner: CmdRunner{}, Stdout: stdout, Stderr: stderr}
}

// Launch implements buildsys.Launcher.
func (p *ProcessLauncher) Launch(ctx context.Context, req buildsys.LaunchRequest) (buildsys.Result, error) {
	runner := p.Runner
	if runner == nil {
		runner = CmdRunner{}
	}
	log := p.Log
	if log == nil {
		log = logx.Discard()
	}

	log.WithFields(logrus.Fields{
		"executable": req.Executable,
		"dir":        req.ProjectDir,
		"args":       req.Args,
	}).Debug("launching")

	combined := &lockedBuffer{}
	opts := RunOptions{
		Dir:    req.ProjectDir,
		Env:    req.Env,
		Stdout: teeTo(combined, p.Stdout),
		Stderr: teeTo(combined, p.Stderr),
	}

	start := time.Now()
	rr, err := runner.Run(ctx, req.Executable, req.Args, opts)
	res := buildsys.Result{
		Args:     req.Args,
		ExitCode: rr.ExitCode,
		Duration: time.Since(start),
		Output:   tail(combined.String(), p.tailLines()),
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return res, err
	}
	return res, nil
}

func (p *ProcessLauncher) tailLines() int {
	if p.TailLines > 0 {
		return p.TailLines
	}
	return defaultTailLines
}

var _ buildsys.Launcher = (*ProcessLauncher)(nil)

func teeTo(buf io.Writer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
