package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"buildwrap/internal/config"
	"buildwrap/internal/logx"
	"buildwrap/internal/paths"
)

var initForce bool

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default buildwrap.yaml into a project",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}

	cmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing buildwrap.yaml")

	return cmd
}

func resolveInitDir(projectFlag string, args []string) (string, error) {
	if projectFlag != "" {
		return projectFlag, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	if len(args) > 0 {
		if filepath.IsAbs(args[0]) {
			return args[0], nil
		}
		return filepath.Join(cwd, args[0]), nil
	}
	return cwd, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := resolveInitDir(projectDir, args)
	if err != nil {
		return err
	}

	pp, err := paths.Resolve(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(pp.Root, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	if err := pp.EnsureMetaDirs(); err != nil {
		return err
	}

	logger, closer, err := logx.NewFile(pp, verboseOutput)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.WithField("project", pp.Root).Info("buildwrap init")

	exists, err := paths.FileExists(pp.ConfigFile)
	if err != nil {
		return fmt.Errorf("check config: %w", err)
	}
	if exists && !initForce {
		logger.WithField("path", pp.ConfigFile).Info("config exists")
		fmt.Fprintf(cmd.OutOrStdout(), "Project already initialized at %s (use --force to overwrite)\n", pp.Root)
		return nil
	}

	cfg := config.Default()
	cfg.ApplyDefaults()
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(pp.ConfigFile, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	logger.WithFields(logrus.Fields{"path": pp.ConfigFile, "overwrite": exists}).Info("wrote config")

	verb := "created"
	if exists {
		verb = "overwrote"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized project at %s\n", pp.Root)
	fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", verb, paths.ConfigFileName)
	return nil
}
