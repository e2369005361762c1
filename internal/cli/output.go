package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

func recurrence(s Schedule) string {
	switch s.Type {
	case "cron":
		return s.CronExpression
	case "interval":
		return "every " + (time.Duration(s.IntervalSeconds) * time.Second).String()
	case "one_time":
		return "at " + formatTime(s.ScheduledTime)
	}
	return "-"
}

func printSchedule(out io.Writer, s Schedule) {
	_, _ = fmt.Fprintf(out, "Schedule Details:\n")
	_, _ = fmt.Fprintf(out, "  ID:            %s\n", s.ID)
	_, _ = fmt.Fprintf(out, "  Name:          %s\n", s.Name)
	if s.Description != "" {
		_, _ = fmt.Fprintf(out, "  Description:   %s\n", s.Description)
	}
	_, _ = fmt.Fprintf(out, "  Type:          %s (%s)\n", s.Type, recurrence(s))
	_, _ = fmt.Fprintf(out, "  Task:          %s\n", s.TaskType)
	_, _ = fmt.Fprintf(out, "  Status:        %s\n", s.Status)
	_, _ = fmt.Fprintf(out, "  Retries:       %d every %ds\n", s.MaxRetries, s.RetryDelay)
	_, _ = fmt.Fprintf(out, "  Last Run:      %s\n", formatTime(s.LastRunAt))
	_, _ = fmt.Fprintf(out, "  Next Run:      %s\n", formatTime(s.NextRunAt))
	if len(s.TaskConfig) > 0 {
		_, _ = fmt.Fprintf(out, "\nTask Config:\n")
		for k, v := range s.TaskConfig {
			_, _ = fmt.Fprintf(out, "  %s=%v\n", k, v)
		}
	}
}

func printExecution(out io.Writer, e Execution) {
	_, _ = fmt.Fprintf(out, "Execution Details:\n")
	_, _ = fmt.Fprintf(out, "  ID:            %s\n", e.ID)
	_, _ = fmt.Fprintf(out, "  Schedule:      %s\n", e.ScheduleID)
	_, _ = fmt.Fprintf(out, "  Task:          %s\n", e.TaskType)
	_, _ = fmt.Fprintf(out, "  Status:        %s\n", e.Status)
	_, _ = fmt.Fprintf(out, "  Retries:       %d/%d\n", e.RetryCount, e.MaxRetries)
	_, _ = fmt.Fprintf(out, "  Started:       %s\n", formatTime(e.StartedAt))
	_, _ = fmt.Fprintf(out, "  Completed:     %s\n", formatTime(e.CompletedAt))
	if e.DurationSeconds != nil {
		_, _ = fmt.Fprintf(out, "  Duration:      %.1fs\n", *e.DurationSeconds)
	}
	if e.CollectionTaskID != nil {
		_, _ = fmt.Fprintf(out, "  Collection:    %s\n", *e.CollectionTaskID)
	}
	if e.ETLTaskID != nil {
		_, _ = fmt.Fprintf(out, "  ETL:           %s\n", *e.ETLTaskID)
	}
	if e.ErrorMessage != nil {
		_, _ = fmt.Fprintf(out, "  Error:         %s\n", *e.ErrorMessage)
	}
}

func printExecutions(out io.Writer, execs []Execution) {
	w := newTable(out)
	_, _ = fmt.Fprintf(w, "ID\tSCHEDULE\tTASK\tSTATUS\tRETRIES\tAGE\n")
	for _, e := range execs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			e.ID, e.ScheduleID, e.TaskType, e.Status, e.RetryCount, e.MaxRetries,
			formatDuration(time.Since(e.CreatedAt)))
	}
	_ = w.Flush()
}
