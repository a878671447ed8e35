package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"buildwrap/internal/buildsys"
	"buildwrap/internal/tui"
)

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec [--] [tool args...]",
		Short: "Run the project's build tool with the given arguments",
		Long: `Run the project's build tool, installing its distribution first when needed.

Arguments are passed to the tool verbatim. buildwrap's own global flags are
only recognised before the tool arguments; put "--" first to pass them to the
tool instead.`,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE:               runExec,
	}
}

type execReport struct {
	RunID    string   `json:"run_id"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Duration string   `json:"duration"`
	Error    string   `json:"error,omitempty"`
}

func runExec(cmd *cobra.Command, args []string) error {
	toolArgs, err := splitExecArgs(cmd, args)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}

	w, err := s.wrapper(cmd, buildLogger(s.log))
	if err != nil {
		return err
	}

	if !outputJSON && tui.DetectMode(cmd.ErrOrStderr(), noProgress, false) == tui.ModeTUI {
		status := tui.NewStatusWriter(cmd.ErrOrStderr())
		status.Update(fmt.Sprintf("Resolving %s", s.cfg.Tool.DisplayName))
		w.SubscribeDownloads(status)
		sys, inst := s.connect(cmd, w)
		status.Stop()
		return execute(cmd, s, sys, inst, toolArgs)
	}

	sys, inst := s.connect(cmd, w)
	return execute(cmd, s, sys, inst, toolArgs)
}

func execute(cmd *cobra.Command, s *session, sys *buildsys.System, inst buildsys.Installation, args []string) error {
	if inst.Degraded() {
		return inst.Err
	}

	task := &buildsys.Task{Log: s.log}
	outcome := task.Run(cmd.Context(), sys, args...)

	if outputJSON {
		report := execReport{
			RunID:    outcome.RunID,
			Args:     args,
			ExitCode: outcome.Result.ExitCode,
			Duration: outcome.Result.Duration.String(),
		}
		var ee *buildsys.ExecutionError
		if errors.As(outcome.Err, &ee) {
			report.ExitCode = ee.ExitCode
		}
		if outcome.Err != nil {
			report.Error = outcome.Err.Error()
		}
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}

	if outcome.Err == nil {
		return nil
	}
	var ee *buildsys.ExecutionError
	if errors.As(outcome.Err, &ee) && ee.ExitCode > 0 {
		return &exitError{code: ee.ExitCode, err: outcome.Err}
	}
	return outcome.Err
}

// splitExecArgs applies leading buildwrap global flags and returns the rest
// untouched. "--" ends the global flags and is dropped.
func splitExecArgs(cmd *cobra.Command, args []string) ([]string, error) {
	flags := cmd.InheritedFlags()
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			return args[i:], nil
		}

		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		f := flags.Lookup(name)
		if f == nil && !strings.HasPrefix(arg, "--") && len(name) == 1 {
			f = flags.ShorthandLookup(name)
		}
		if f == nil {
			return args[i:], nil
		}

		switch {
		case hasValue:
		case f.NoOptDefVal != "":
			value = f.NoOptDefVal
		case i+1 < len(args):
			i++
			value = args[i]
		default:
			return nil, fmt.Errorf("flag needs an argument: %s", arg)
		}
		if err := f.Value.Set(value); err != nil {
			return nil, fmt.Errorf("invalid argument %q for %s: %w", value, arg, err)
		}
	}
	return nil, nil
}

// buildLogger logs build lifecycle events at debug level.
func buildLogger(log logrus.FieldLogger) buildsys.Listener {
	entry := func(e buildsys.Event) logrus.FieldLogger {
		return log.WithFields(logrus.Fields{"tool": e.System.Name(), "run_id": e.RunID})
	}
	return &buildsys.ListenerFuncs{
		Started: func(e buildsys.Event) { entry(e).Debug("build started") },
		Complete: func(e buildsys.Event) {
			entry(e).WithField("duration", e.Result.Duration).Debug("build complete")
		},
		Failure: func(e buildsys.Event) { entry(e).WithError(e.Err).Debug("build failed") },
	}
}
