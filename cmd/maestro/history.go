package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"maestro/pkg/persistence"
	"maestro/pkg/transcript"
	"maestro/pkg/utils"
)

func newHistoryCmd(root *rootFlags) *cobra.Command {
	var (
		limit   int
		archive string
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List archived runs or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if archive == "" {
				archive = cfg.Output.ArchivePath
			}
			if archive == "" {
				return fmt.Errorf("run archive is disabled (output.archive_path is empty)")
			}

			store, err := persistence.Open(archive)
			if err != nil {
				return fmt.Errorf("failed to open run archive: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err //nolint:wrapcheck // carries the run id
				}
				return printRun(cmd.OutOrStdout(), run)
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().StringVar(&archive, "archive", "", "Run archive path (default from config)")
	return cmd
}

func printRuns(w io.Writer, runs []*persistence.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No archived runs.")
		return err //nolint:wrapcheck // stdout write
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tTOKENS\tPROJECT\tOBJECTIVE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.PromptTokens+r.CompletionTokens,
			r.ProjectName, utils.Truncate(r.Objective, 60))
	}
	return tw.Flush() //nolint:wrapcheck // stdout write
}

func printRun(w io.Writer, run *persistence.Run) error {
	entries := make([]transcript.Entry, len(run.Exchanges))
	for i := range run.Exchanges {
		entries[i] = transcript.Entry{Prompt: run.Exchanges[i].Prompt, Result: run.Exchanges[i].Result}
	}
	fmt.Fprintf(w, "Run %s (%s, %s)\n", run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	if run.IterationCapReached {
		fmt.Fprintln(w, "Stopped at the iteration cap.")
	}
	if run.FinalText != "" {
		fmt.Fprintf(w, "Final: %s\n", run.FinalText)
	}
	fmt.Fprintln(w)
	_, err := io.WriteString(w, transcript.Render(transcript.Log{
		Objective: run.Objective,
		Entries:   entries,
		Refined:   run.Refined,
	})+"\n")
	return err //nolint:wrapcheck // stdout write
}
