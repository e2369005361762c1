// Package notify alerts operators when an execution fails for good.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/resend/resend-go/v2"
)

type Notifier interface {
	ExecutionFailed(ctx context.Context, exec domain.TaskExecution) error
}

// LogNotifier logs alerts instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

func (n *LogNotifier) ExecutionFailed(ctx context.Context, exec domain.TaskExecution) error {
	n.logger.WarnContext(ctx, "execution failed permanently",
		"execution_id", exec.ID,
		"schedule_id", exec.ScheduleID,
		"task_type", exec.TaskType,
		"retry_count", exec.RetryCount,
		"error", errorText(exec),
	)
	return nil
}

// ResendNotifier emails alerts via the Resend API.
type ResendNotifier struct {
	client *resend.Client
	from   string
	to     []string
}

func (n *ResendNotifier) ExecutionFailed(ctx context.Context, exec domain.TaskExecution) error {
	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: Subject(exec),
		Html:    Body(exec),
	}
	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

// New returns a ResendNotifier when an API key and recipients are
// configured, and a LogNotifier otherwise.
func New(apiKey, from, to string, logger *slog.Logger) Notifier {
	recipients := splitRecipients(to)
	if apiKey == "" || from == "" || len(recipients) == 0 {
		return &LogNotifier{logger: logger.With("component", "notify")}
	}
	return &ResendNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     recipients,
	}
}

func Subject(exec domain.TaskExecution) string {
	return fmt.Sprintf("[scheduler] %s execution %s failed after %d retries", exec.TaskType, exec.ID, exec.RetryCount)
}

func Body(exec domain.TaskExecution) string {
	var b strings.Builder
	b.WriteString("<p>A scheduled execution exhausted its retries.</p><ul>")
	fmt.Fprintf(&b, "<li>Schedule: %s</li>", html.EscapeString(exec.ScheduleID))
	fmt.Fprintf(&b, "<li>Execution: %s</li>", html.EscapeString(exec.ID))
	fmt.Fprintf(&b, "<li>Task type: %s</li>", html.EscapeString(string(exec.TaskType)))
	fmt.Fprintf(&b, "<li>Attempts: %d</li>", exec.RetryCount+1)
	fmt.Fprintf(&b, "<li>Error: %s</li>", html.EscapeString(errorText(exec)))
	b.WriteString("</ul>")
	return b.String()
}

func errorText(exec domain.TaskExecution) string {
	if exec.ErrorMessage == nil {
		return ""
	}
	return *exec.ErrorMessage
}

func splitRecipients(to string) []string {
	var out []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
