package trigger

import (
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// timing is the concrete firing rule derived from a schedule.
type timing interface {
	// arm returns a schedule for one cron entry. Stateful schedules must
	// not be shared between entries.
	arm() cron.Schedule
	// peek returns the next fire time after now without side effects.
	peek(now time.Time) time.Time
	oneShot() bool
}

// Validate checks a schedule's recurrence parameters.
func Validate(s *domain.Schedule) error {
	_, err := build(s)
	return err
}

func build(s *domain.Schedule) (timing, error) {
	switch s.Type {
	case domain.ScheduleTypeCron:
		fields := strings.Fields(s.CronExpression)
		if len(fields) != 5 {
			return nil, &domain.ValidationError{Field: "cron_expression", Reason: "must have exactly 5 fields"}
		}
		spec, err := parser.Parse(strings.Join(fields, " "))
		if err != nil {
			return nil, &domain.ValidationError{Field: "cron_expression", Reason: err.Error()}
		}
		return cronTiming{spec: spec}, nil
	case domain.ScheduleTypeInterval:
		if s.IntervalSeconds <= 0 {
			return nil, &domain.ValidationError{Field: "interval_seconds", Reason: "must be greater than 0"}
		}
		return intervalTiming{every: time.Duration(s.IntervalSeconds) * time.Second}, nil
	case domain.ScheduleTypeOneTime:
		if s.ScheduledTime == nil || s.ScheduledTime.IsZero() {
			return nil, &domain.ValidationError{Field: "scheduled_time", Reason: "required for one_time schedules"}
		}
		return onceTiming{at: *s.ScheduledTime}, nil
	default:
		return nil, &domain.ValidationError{Field: "schedule_type", Reason: "unknown schedule type " + string(s.Type)}
	}
}

type cronTiming struct {
	spec cron.Schedule
}

func (t cronTiming) arm() cron.Schedule           { return t.spec }
func (t cronTiming) peek(now time.Time) time.Time { return t.spec.Next(now) }
func (t cronTiming) oneShot() bool                { return false }

type intervalTiming struct {
	every time.Duration
}

func (t intervalTiming) arm() cron.Schedule { return cron.Every(t.every) }

func (t intervalTiming) peek(now time.Time) time.Time {
	return cron.Every(t.every).Next(now)
}

func (t intervalTiming) oneShot() bool { return false }

type onceTiming struct {
	at time.Time
}

func (t onceTiming) arm() cron.Schedule { return &onceSchedule{at: t.at} }

func (t onceTiming) peek(now time.Time) time.Time {
	if t.at.After(now) {
		return t.at
	}
	return now
}

func (t onceTiming) oneShot() bool { return true }

// onceSchedule yields a single activation at its timestamp. cron starts
// an entry whose time is not after now right away, and records the
// timestamp as Prev so a long-past activation reads as late.
type onceSchedule struct {
	mu     sync.Mutex
	at     time.Time
	issued bool
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.issued {
		return time.Time{}
	}
	s.issued = true
	return s.at.In(t.Location())
}
