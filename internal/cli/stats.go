package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show engine and queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := opts.client().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Scheduler:\n")
			_, _ = fmt.Fprintf(out, "  Running:         %t\n", stats.Scheduler.Running)
			_, _ = fmt.Fprintf(out, "  Registered Jobs: %d\n", stats.Scheduler.TotalJobs)
			_, _ = fmt.Fprintf(out, "  Schedules:       %d\n", stats.SchedulesTotal)
			_, _ = fmt.Fprintf(out, "\nQueue:\n")
			_, _ = fmt.Fprintf(out, "  Queued:          %d\n", stats.Queue.QueueSize)
			_, _ = fmt.Fprintf(out, "  Running:         %d\n", stats.Queue.RunningTasks)
			_, _ = fmt.Fprintf(out, "  Pending Retries: %d\n", stats.Queue.PendingRetries)
			_, _ = fmt.Fprintf(out, "  History:         %d (%d completed, %d failed)\n",
				stats.Queue.HistoryTotal, stats.Queue.HistoryCompleted, stats.Queue.HistoryFailed)

			if len(stats.Scheduler.JobIDs) > 0 {
				w := newTable(out)
				_, _ = fmt.Fprintf(w, "\nJOB\tNEXT RUN\n")
				for _, id := range stats.Scheduler.JobIDs {
					_, _ = fmt.Fprintf(w, "%s\t%s\n", id, formatTime(stats.Scheduler.NextRunTimes[id]))
				}
				_ = w.Flush()
			}
			return nil
		},
	}
}
