package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"buildwrap/internal/config"
	"buildwrap/internal/distribution"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the project's distribution and every installed one",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

type statusDistribution struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Installed bool   `json:"installed"`
	Home      string `json:"home,omitempty"`
}

type statusPayload struct {
	Project      string                       `json:"project"`
	UserHome     string                       `json:"user_home"`
	Distribution statusDistribution           `json:"distribution"`
	Entries      []distribution.ManifestEntry `json:"entries"`
	Validations  []config.ValidationResult    `json:"validations,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}

	validations := s.cfg.Validate()
	d, err := distribution.FromConfig(s.cfg)
	if err != nil {
		return err
	}

	installed, ok, err := distribution.Lookup(s.userHome, d)
	if err != nil {
		return err
	}
	manifest, err := distribution.LoadManifest(distribution.Layout{Home: s.userHome})
	if err != nil {
		return err
	}

	payload := statusPayload{
		Project:  s.pp.Root,
		UserHome: s.userHome,
		Distribution: statusDistribution{
			ID:        d.ID(),
			URL:       d.URL.String(),
			Installed: ok,
			Home:      installed.Home,
		},
		Entries:     manifest.Sorted(),
		Validations: validations,
	}

	if outputJSON {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode status json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		writeStatusTable(cmd, payload)
	}

	if config.HasErrors(validations) {
		return fmt.Errorf("%s has configuration errors", s.pp.ConfigFile)
	}
	return nil
}

func writeStatusTable(cmd *cobra.Command, p statusPayload) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project: %s\n", p.Project)
	fmt.Fprintf(out, "User home: %s\n", p.UserHome)
	if p.Distribution.Installed {
		fmt.Fprintf(out, "Distribution: %s (installed at %s)\n", p.Distribution.ID, p.Distribution.Home)
	} else {
		fmt.Fprintf(out, "Distribution: %s (not installed)\n", p.Distribution.ID)
	}

	if len(p.Entries) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tVERSION\tINSTALLED\tHOME")
		for _, e := range p.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Tool, nonEmptyOrDash(e.Version), nonEmptyOrDash(e.InstalledAt), e.Home)
		}
		w.Flush()
	}

	if len(p.Validations) > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Validation issues:")
		for _, v := range p.Validations {
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %s: %s\n", v.Level, v.Message)
		}
	}
}
