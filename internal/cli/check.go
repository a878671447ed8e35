package cli

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"buildwrap/internal/distribution"
	"buildwrap/internal/tui"
)

var (
	checkStrict bool

	// latestSource is replaced in tests.
	latestSource = distribution.GithubSource
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the pinned distribution version with upstream releases",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}

	cmd.Flags().BoolVar(&checkStrict, "strict", false, "fail when a newer release exists")

	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}

	d, err := distribution.FromConfig(s.cfg)
	if err != nil {
		return err
	}
	if err := d.CheckMinimum(); err != nil {
		return err
	}

	src, err := latestSource(d)
	if err != nil {
		return err
	}
	status, err := distribution.Latest(d, src)
	if err != nil {
		return err
	}
	s.log.WithField("tool", status.Tool).Debugf("current=%s latest=%s outdated=%v", status.Current, status.Latest, status.Outdated)

	if outputJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		printCheckResult(cmd, s.cfg.Tool.DisplayName, status)
	}

	if checkStrict && status.Outdated {
		return fmt.Errorf("%s %s is outdated (latest %s)", status.Tool, status.Current, status.Latest)
	}
	return nil
}

func printCheckResult(cmd *cobra.Command, displayName string, st distribution.UpdateStatus) {
	label := tui.StatusCurrent
	if st.Outdated {
		label = tui.StatusOutdated
	}
	name := lipgloss.NewStyle().Bold(true).Render(displayName)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s (latest %s)\n", name, st.Current, tui.StatusStyle(label).Render(label), nonEmptyOrDash(st.Latest))
}
