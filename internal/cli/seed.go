package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func intPtr(n int) *int { return &n }

// seedSchedules is the demo brand-enrichment pipeline.
func seedSchedules() []CreateScheduleRequest {
	scrape := func(url string) map[string]any {
		return map[string]any{
			"url":               url,
			"formats":           []string{"markdown"},
			"only_main_content": true,
		}
	}
	return []CreateScheduleRequest{
		{
			Name:           "SweetNight Official Website - Daily",
			Description:    "Collect product information from SweetNight official website",
			ScheduleType:   "cron",
			CronExpression: "0 2 * * *",
			TaskType:       "pipeline",
			TaskConfig:     scrape("https://www.sweetnight.com"),
			MaxRetries:     intPtr(3),
			RetryDelay:     intPtr(300),
		},
		{
			Name:            "SweetNight Products - 12 Hour Sync",
			Description:     "Sync product details, features, and pricing",
			ScheduleType:    "interval",
			IntervalSeconds: 43200,
			TaskType:        "pipeline",
			TaskConfig:      scrape("https://www.sweetnight.com/collections/mattresses"),
			MaxRetries:      intPtr(3),
			RetryDelay:      intPtr(300),
		},
		{
			Name:           "SweetNight Reviews - Daily Analysis",
			Description:    "Collect customer reviews and feedback for sentiment analysis",
			ScheduleType:   "cron",
			CronExpression: "0 4 * * *",
			TaskType:       "pipeline",
			TaskConfig:     scrape("https://www.sweetnight.com/pages/reviews"),
			MaxRetries:     intPtr(2),
			RetryDelay:     intPtr(180),
		},
		{
			Name:           "Competitor Analysis - Weekly",
			Description:    "Monitor competitor pricing and features",
			ScheduleType:   "cron",
			CronExpression: "0 1 * * 1",
			TaskType:       "data_collection",
			TaskConfig:     scrape("https://www.casper.com/mattresses"),
			MaxRetries:     intPtr(2),
			RetryDelay:     intPtr(300),
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	var trigger bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo pipeline schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.client()
			out := cmd.OutOrStdout()

			var created, failed int
			for _, req := range seedSchedules() {
				s, err := client.CreateSchedule(cmd.Context(), req)
				if err != nil {
					failed++
					_, _ = fmt.Fprintf(out, "FAIL  %s: %v\n", req.Name, err)
					continue
				}
				created++
				_, _ = fmt.Fprintf(out, "OK    %s  %s  next run %s\n", s.ID, s.Name, formatTime(s.NextRunAt))

				if !trigger {
					continue
				}
				exec, err := client.TriggerSchedule(cmd.Context(), s.ID)
				if err != nil {
					_, _ = fmt.Fprintf(out, "      trigger failed: %v\n", err)
					continue
				}
				_, _ = fmt.Fprintf(out, "      started execution %s\n", exec.ID)
			}

			_, _ = fmt.Fprintf(out, "\n%d schedules created\n", created)
			if failed > 0 {
				return fmt.Errorf("%d schedules failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trigger, "trigger", false, "also run each schedule once right away")
	return cmd
}
