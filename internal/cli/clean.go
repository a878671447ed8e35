package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"buildwrap/internal/distribution"
	"buildwrap/internal/paths"
	"buildwrap/internal/tui"
)

var cleanOpts distribution.CleanOptions

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove downloaded archives or unpacked distributions",
		Long: `Remove cached distribution data from the user home.

Without --dists only downloaded archives are removed; unpacked distributions
stay usable.`,
		Args: cobra.NoArgs,
		RunE: runClean,
	}

	cmd.Flags().BoolVar(&cleanOpts.Archives, "archives", false, "Remove downloaded archives")
	cmd.Flags().BoolVar(&cleanOpts.Dists, "dists", false, "Remove unpacked distributions and their manifest entries")
	cmd.Flags().StringVar(&cleanOpts.ID, "id", "", "Only clean one distribution, e.g. gradle-8.5")
	cmd.Flags().BoolVar(&cleanOpts.DryRun, "dry-run", false, "List what would be removed without deleting")

	return cmd
}

type cleanReport struct {
	distribution.CleanResult
	DryRun bool `json:"dry_run"`
}

func runClean(cmd *cobra.Command, _ []string) error {
	home, err := paths.UserHome(userHomeDir)
	if err != nil {
		return err
	}

	opts := cleanOpts
	if !opts.Archives && !opts.Dists {
		opts.Archives = true
	}
	res, err := distribution.Clean(distribution.Layout{Home: home}, opts)
	if err != nil {
		return err
	}

	if outputJSON {
		data, err := json.MarshalIndent(cleanReport{CleanResult: res, DryRun: opts.DryRun}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	verb := "Removed"
	if opts.DryRun {
		verb = "Would remove"
	}
	for _, p := range res.Removed {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d item(s), %s\n", verb, len(res.Removed), tui.FormatBytes(res.Bytes))
	return nil
}

func nonEmptyOrDash(value string) string {
	return tui.NonEmptyOrDash(value)
}
