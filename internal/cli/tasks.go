package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sensorsched/internal/sched"
)

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "Load the tasks of the arrival plan and show their priority scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			src := metadataSource(cfg, logger)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AT\tTASK\tSAFETY\tREALTIME\tDURATION\tSCORE\tDESCRIPTION")

			for _, a := range cfg.Arrivals {
				t, err := src.FetchTask(cmd.Context(), a.Task)
				if err != nil {
					logger.Error("task load failed", "task_id", a.Task, "error", &sched.MetadataFetchError{TaskID: a.Task, Err: err})
					fmt.Fprintf(w, "%.2f\t%s\t-\t-\t-\t-\t(unavailable)\n", a.At, a.Task)
					continue
				}
				score := "-"
				if s, err := t.Score(); err == nil {
					score = fmt.Sprintf("%.2f", s)
				}
				fmt.Fprintf(w, "%.2f\t%s\t%s\t%d\t%g\t%s\t%s\n",
					a.At, t.ID, t.Safety, t.Criticality, t.Duration, score, t.Description)
			}
			return w.Flush()
		},
	}
}
