package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"maestro/pkg/config"
	"maestro/pkg/monitor"
)

func newMonitorCmd(root *rootFlags) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show live token usage of a running pipeline",
		Long: `Poll the /status endpoint of a running "maestro run" and show per-model
token and request usage. The run must serve status (metrics.listen_addr or
--metrics-addr).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				cfg, err := root.loadConfig()
				if err != nil {
					return err
				}
				addr = cfg.Metrics.ListenAddr
			}
			if addr == "" {
				addr = config.DefaultMetricsAddress
			}
			if !strings.Contains(addr, "://") {
				addr = "http://" + addr
			}
			return monitor.RunDashboard(cmd.Context(), monitor.HTTPFetcher(nil, addr), interval)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Status server address (default from config)")
	cmd.Flags().DurationVar(&interval, "interval", monitor.DefaultRefresh, "Refresh interval")
	return cmd
}
