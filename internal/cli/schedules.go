package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSchedulesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedules",
		Aliases: []string{"schedule", "sched"},
		Short:   "Manage schedules",
	}
	cmd.AddCommand(
		newScheduleCreateCmd(opts),
		newScheduleListCmd(opts),
		newScheduleGetCmd(opts),
		newScheduleUpdateCmd(opts),
		newScheduleActionCmd(opts, "pause", "Stop a schedule from firing", (*Client).PauseSchedule),
		newScheduleActionCmd(opts, "resume", "Let a paused schedule fire again", (*Client).ResumeSchedule),
		newScheduleActionCmd(opts, "delete", "Delete a schedule", (*Client).DeleteSchedule),
		newScheduleTriggerCmd(opts),
	)
	return cmd
}

type createFlags struct {
	description string
	cron        string
	every       time.Duration
	at          string
	taskType    string
	config      string
	maxRetries  int
	retryDelay  int
}

func newScheduleCreateCmd(opts *options) *cobra.Command {
	var f createFlags

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a schedule",
		Long: `Create a schedule. Exactly one of --cron, --every or --at selects the
recurrence.

  pipectl schedules create nightly --cron "0 2 * * *" --task pipeline \
      --config '{"url":"https://example.com"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(args[0], cmd)
			if err != nil {
				return err
			}

			s, err := opts.client().CreateSchedule(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s (next run %s)\n", s.ID, formatTime(s.NextRunAt))
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.description, "description", "d", "", "schedule description")
	cmd.Flags().StringVar(&f.cron, "cron", "", "five-field cron expression")
	cmd.Flags().DurationVar(&f.every, "every", 0, "fixed interval, e.g. 12h")
	cmd.Flags().StringVar(&f.at, "at", "", "one-time run at an RFC3339 instant")
	cmd.Flags().StringVarP(&f.taskType, "task", "t", "pipeline", "task type: data_collection, etl_processing or pipeline")
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "task config as a JSON object")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", -1, "retry budget (server default when unset)")
	cmd.Flags().IntVar(&f.retryDelay, "retry-delay", -1, "seconds between retries (server default when unset)")
	cmd.MarkFlagsMutuallyExclusive("cron", "every", "at")
	cmd.MarkFlagsOneRequired("cron", "every", "at")

	return cmd
}

func (f createFlags) request(name string, cmd *cobra.Command) (CreateScheduleRequest, error) {
	req := CreateScheduleRequest{
		Name:        name,
		Description: f.description,
		TaskType:    f.taskType,
	}

	switch {
	case f.cron != "":
		req.ScheduleType = "cron"
		req.CronExpression = f.cron
	case f.every > 0:
		req.ScheduleType = "interval"
		req.IntervalSeconds = int(f.every / time.Second)
		if req.IntervalSeconds < 1 {
			return req, errors.New("--every must be at least 1s")
		}
	case f.at != "":
		at, err := time.Parse(time.RFC3339, f.at)
		if err != nil {
			return req, fmt.Errorf("--at: %w", err)
		}
		req.ScheduleType = "one_time"
		req.ScheduledTime = &at
	default:
		return req, errors.New("one of --cron, --every or --at is required")
	}

	if f.config != "" {
		if err := json.Unmarshal([]byte(f.config), &req.TaskConfig); err != nil {
			return req, fmt.Errorf("--config must be a JSON object: %w", err)
		}
	}
	if cmd.Flags().Changed("max-retries") {
		req.MaxRetries = &f.maxRetries
	}
	if cmd.Flags().Changed("retry-delay") {
		req.RetryDelay = &f.retryDelay
	}
	return req, nil
}

func newScheduleListCmd(opts *options) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := opts.client().ListSchedules(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("failed to list schedules: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(list.Schedules) == 0 {
				_, _ = fmt.Fprintln(out, "No schedules found.")
				return nil
			}

			w := newTable(out)
			_, _ = fmt.Fprintf(w, "ID\tNAME\tRECURRENCE\tTASK\tSTATUS\tNEXT RUN\n")
			for _, s := range list.Schedules {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Name, recurrence(s), s.TaskType, s.Status, formatTime(s.NextRunAt))
			}
			_ = w.Flush()
			_, _ = fmt.Fprintf(out, "\n%d total, %d active, %d paused, %d disabled\n",
				list.Total, list.Active, list.Paused, list.Disabled)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: active, paused or disabled")
	return cmd
}

func newScheduleGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.client().GetSchedule(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get schedule: %w", err)
			}
			printSchedule(cmd.OutOrStdout(), *s)
			return nil
		},
	}
}

func newScheduleUpdateCmd(opts *options) *cobra.Command {
	var (
		name, description, cron, at, status, config string
		every                                       time.Duration
		maxRetries, retryDelay                      int
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change selected fields of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{}
			flags := cmd.Flags()
			if flags.Changed("name") {
				fields["name"] = name
			}
			if flags.Changed("description") {
				fields["description"] = description
			}
			if flags.Changed("cron") {
				fields["cron_expression"] = cron
			}
			if flags.Changed("every") {
				fields["interval_seconds"] = int(every / time.Second)
			}
			if flags.Changed("at") {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				fields["scheduled_time"] = t
			}
			if flags.Changed("status") {
				fields["status"] = status
			}
			if flags.Changed("config") {
				var cfg map[string]any
				if err := json.Unmarshal([]byte(config), &cfg); err != nil {
					return fmt.Errorf("--config must be a JSON object: %w", err)
				}
				fields["task_config"] = cfg
			}
			if flags.Changed("max-retries") {
				fields["max_retries"] = maxRetries
			}
			if flags.Changed("retry-delay") {
				fields["retry_delay"] = retryDelay
			}
			if len(fields) == 0 {
				return errors.New("nothing to update")
			}

			s, err := opts.client().UpdateSchedule(cmd.Context(), args[0], fields)
			if err != nil {
				return fmt.Errorf("failed to update schedule: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s, next run %s)\n", s.ID, s.Status, formatTime(s.NextRunAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVar(&cron, "cron", "", "new cron expression")
	cmd.Flags().DurationVar(&every, "every", 0, "new interval")
	cmd.Flags().StringVar(&at, "at", "", "new one-time instant (RFC3339)")
	cmd.Flags().StringVar(&status, "status", "", "active, paused or disabled")
	cmd.Flags().StringVarP(&config, "config", "c", "", "replacement task config as a JSON object")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retry budget")
	cmd.Flags().IntVar(&retryDelay, "retry-delay", 0, "seconds between retries")
	return cmd
}

func newScheduleActionCmd(opts *options, verb, short string, action func(*Client, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := action(opts.client(), cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to %s schedule: %w", verb, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s: %s ok\n", args[0], verb)
			return nil
		},
	}
}

func newScheduleTriggerCmd(opts *options) *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "trigger ID",
		Short: "Run a schedule now, outside its recurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.client()
			exec, err := client.TriggerSchedule(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to trigger schedule: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Started execution %s\n", exec.ID)
			if !wait {
				return nil
			}
			return follow(cmd.Context(), client, out, exec.ID, interval)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "follow the execution until it finishes")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "poll interval for --wait")
	return cmd
}
