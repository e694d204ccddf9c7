package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"maestro/pkg/config"
	"maestro/pkg/logx"
	"maestro/pkg/version"
)

type rootFlags struct {
	configPath   string
	envFiles     []string
	debug        bool
	debugDomains string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "maestro",
		Short: "Task decomposition pipeline for LLM sub-agents",
		Long: `maestro breaks an objective into sub-tasks with an orchestrator model,
executes each sub-task with a sub-agent model (optionally backed by web
search), and merges the results with a refiner model. Code projects in the
refined output are written to disk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if flags.debug {
				logx.SetDebug(true)
			}
			if flags.debugDomains != "" {
				logx.SetDebugDomains(strings.Split(flags.debugDomains, ","))
			}
			if err := config.LoadDotEnv(flags.envFiles...); err != nil {
				return fmt.Errorf("load environment: %w", err)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file (JSON or YAML)")
	pf.StringSliceVar(&flags.envFiles, "env-file", nil, "Files with KEY=VALUE pairs to load (default .env)")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.debugDomains, "debug-domains", "", "Comma-separated debug domains (e.g. retry,governor)")

	cmd.AddCommand(
		newRunCmd(flags),
		newHistoryCmd(flags),
		newMonitorCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func newConfigCmd(root *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			out, err := config.Marshal(cfg, format)
			if err != nil {
				return err //nolint:wrapcheck // already wrapped
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err //nolint:wrapcheck // stdout write
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or json")
	return cmd
}
