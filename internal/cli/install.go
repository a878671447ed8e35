package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"buildwrap/internal/buildsys"
	"buildwrap/internal/tui"
)

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download and unpack the project's build tool distribution",
		Args:  cobra.NoArgs,
		RunE:  runInstall,
	}
}

type installReport struct {
	Tool    buildsys.Identity `json:"tool"`
	Project string            `json:"project"`
	State   string            `json:"state"`
	Home    string            `json:"home"`
	Error   string            `json:"error,omitempty"`
}

func runInstall(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}

	var (
		sys  *buildsys.System
		inst buildsys.Installation
	)
	out := cmd.OutOrStdout()

	switch tui.DetectMode(out, noProgress, outputJSON) {
	case tui.ModeTUI:
		model := tui.NewProgressModel(fmt.Sprintf("Installing %s", s.cfg.Tool.DisplayName), tui.DefaultColumns())
		model.AddRow("install", []string{tui.StatusInstalling, s.cfg.Tool.Name, "-"})
		err = tui.RunWithWork(out, model, func(send func(tea.Msg)) error {
			rep := tui.NewReporter(send)
			w, err := s.wrapper(cmd, rep)
			if err != nil {
				return err
			}
			w.SubscribeDownloads(rep)
			sys, inst = s.connect(cmd, w)
			status := tui.StatusInstalled
			if inst.Degraded() {
				status = tui.StatusFailed
			}
			send(tui.RowUpdateMsg{Key: "install", Fields: map[string]string{"STATUS": status}})
			return nil
		})
		if err != nil {
			return err
		}
		if sys == nil {
			return errors.New("install interrupted")
		}

	case tui.ModePlain:
		rep := tui.NewPlainReporter(out)
		w, err := s.wrapper(cmd, rep)
		if err != nil {
			return err
		}
		w.SubscribeDownloads(rep)
		sys, inst = s.connect(cmd, w)

	default:
		w, err := s.wrapper(cmd)
		if err != nil {
			return err
		}
		sys, inst = s.connect(cmd, w)
	}

	report := installReport{
		Tool:    sys.Identity(),
		Project: s.pp.Root,
		State:   sys.State().String(),
		Home:    inst.Dir.String(),
	}
	if inst.Err != nil {
		report.Error = inst.Err.Error()
	}

	if outputJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		printInstallReport(out, report)
	}
	return inst.Err
}

func printInstallReport(w io.Writer, r installReport) {
	if r.Error != "" {
		fmt.Fprintf(w, "%s is not installed (%s)\n", r.Tool.DisplayName, r.State)
		return
	}
	fmt.Fprintf(w, "%s installed at %s\n", r.Tool.DisplayName, r.Home)
}
