package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

const defaultWatchInterval = 2 * time.Second

func newExecutionsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "executions",
		Aliases: []string{"execution", "exec"},
		Short:   "Inspect task executions",
	}
	cmd.AddCommand(newExecutionGetCmd(opts), newExecutionListCmd(opts))
	return cmd
}

func newExecutionGetCmd(opts *options) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.client()
			if watch {
				return follow(cmd.Context(), client, cmd.OutOrStdout(), args[0], interval)
			}

			exec, err := client.GetExecution(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get execution: %w", err)
			}
			printExecution(cmd.OutOrStdout(), *exec)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until the execution finishes")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "poll interval for --watch")
	return cmd
}

func newExecutionListCmd(opts *options) *cobra.Command {
	var (
		scheduleID string
		limit      int
		watch      bool
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent executions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.client()
			out := cmd.OutOrStdout()

			show := func() error {
				list, err := client.ListExecutions(cmd.Context(), scheduleID, limit)
				if err != nil {
					return fmt.Errorf("failed to list executions: %w", err)
				}
				if len(list.Executions) == 0 {
					_, _ = fmt.Fprintln(out, "No executions found.")
					return nil
				}
				printExecutions(out, list.Executions)
				_, _ = fmt.Fprintf(out, "\n%d shown, %d completed, %d failed, %d running\n",
					list.Total, list.Completed, list.Failed, list.Running)
				return nil
			}

			if err := show(); err != nil || !watch {
				return err
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					_, _ = fmt.Fprintf(out, "\n--- %s ---\n", time.Now().Format(time.TimeOnly))
					if err := show(); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().StringVarP(&scheduleID, "schedule", "s", "", "only executions of this schedule")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum executions to show (1-1000)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "refresh interval for --watch")
	return cmd
}

// follow polls an execution, printing each status change, until it is
// terminal or ctx ends.
func follow(ctx context.Context, client *Client, out io.Writer, id string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		exec, err := client.GetExecution(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get execution: %w", err)
		}

		state := fmt.Sprintf("%s/%d", exec.Status, exec.RetryCount)
		if state != last {
			_, _ = fmt.Fprintf(out, "%s  %s (retries %d/%d)\n",
				time.Now().Format(time.TimeOnly), exec.Status, exec.RetryCount, exec.MaxRetries)
			last = state
		}

		if exec.Terminal() {
			_, _ = fmt.Fprintln(out)
			printExecution(out, *exec)
			if exec.Status == "failed" {
				return fmt.Errorf("execution %s failed", id)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
