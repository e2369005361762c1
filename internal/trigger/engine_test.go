package trigger

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, loc *time.Location) *Engine {
	t.Helper()
	e := NewEngine(Config{Location: loc}, slog.Default())
	e.Start()
	t.Cleanup(e.Stop)
	return e
}

func noop(context.Context, string) {}

func cronSchedule(id, expr string) *domain.Schedule {
	return &domain.Schedule{ID: id, Type: domain.ScheduleTypeCron, CronExpression: expr, Status: domain.ScheduleStatusActive}
}

func intervalSchedule(id string, seconds int) *domain.Schedule {
	return &domain.Schedule{ID: id, Type: domain.ScheduleTypeInterval, IntervalSeconds: seconds, Status: domain.ScheduleStatusActive}
}

func oneTimeSchedule(id string, at *time.Time) *domain.Schedule {
	return &domain.Schedule{ID: id, Type: domain.ScheduleTypeOneTime, ScheduledTime: at, Status: domain.ScheduleStatusActive}
}

func TestAdd_CronFieldCount(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"0 0 * * *", true},
		{"*/5 * * * 1-5", true},
		{"  30   2 1 * *  ", true},
		{"* * * *", false},
		{"0 0 * * * *", false},
		{"@daily", false},
		{"", false},
		{"99 0 * * *", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e := newTestEngine(t, time.UTC)
			assert.Equal(t, tt.want, e.Add(cronSchedule("s1", tt.expr), noop))
			if tt.want {
				assert.Equal(t, 1, e.Info().TotalJobs)
			} else {
				assert.Zero(t, e.Info().TotalJobs)
			}
		})
	}
}

func TestAdd_IntervalMustBePositive(t *testing.T) {
	e := newTestEngine(t, time.UTC)

	assert.False(t, e.Add(intervalSchedule("zero", 0), noop))
	assert.False(t, e.Add(intervalSchedule("neg", -10), noop))
	assert.True(t, e.Add(intervalSchedule("ok", 1), noop))
	assert.Equal(t, []string{"ok"}, e.Info().JobIDs)
}

func TestAdd_OneTimeRequiresTimestamp(t *testing.T) {
	e := newTestEngine(t, time.UTC)
	future := time.Now().Add(time.Hour)

	assert.False(t, e.Add(oneTimeSchedule("missing", nil), noop))
	assert.True(t, e.Add(oneTimeSchedule("future", &future), noop))

	next := e.NextRunTime("future")
	require.NotNil(t, next)
	assert.True(t, next.Equal(future))
}

func TestAdd_RefusesInactive(t *testing.T) {
	e := newTestEngine(t, time.UTC)
	s := intervalSchedule("s1", 60)
	s.Status = domain.ScheduleStatusPaused

	assert.False(t, e.Add(s, noop))
	s.Status = domain.ScheduleStatusDisabled
	assert.False(t, e.Add(s, noop))
	assert.Zero(t, e.Info().TotalJobs)
}

func TestAdd_DuplicateIDKeepsFirst(t *testing.T) {
	e := newTestEngine(t, time.UTC)

	var first, second atomic.Int32
	fired := make(chan struct{}, 8)
	require.True(t, e.Add(intervalSchedule("dup", 1), func(context.Context, string) {
		first.Add(1)
		fired <- struct{}{}
	}))
	assert.False(t, e.Add(intervalSchedule("dup", 60), func(context.Context, string) { second.Add(1) }))

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("first registration never fired")
	}
	assert.GreaterOrEqual(t, first.Load(), int32(1))
	assert.Zero(t, second.Load())
	assert.Equal(t, 1, e.Info().TotalJobs)
}

func TestNextRunTime_CronMidnightInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	e := newTestEngine(t, loc)
	require.True(t, e.Add(cronSchedule("daily", "0 0 * * *"), noop))

	now := time.Now().In(loc)
	want := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, loc)

	next := e.NextRunTime("daily")
	require.NotNil(t, next)
	assert.True(t, next.Equal(want), "next = %s, want %s", next, want)
	assert.True(t, next.After(time.Now()))
}

func TestNextRunTime_BeforeStart(t *testing.T) {
	e := NewEngine(Config{}, slog.Default())
	require.True(t, e.Add(intervalSchedule("s1", 60), noop))

	next := e.NextRunTime("s1")
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))
	assert.False(t, e.Info().Running)
}

func TestPauseResume_RecomputesForward(t *testing.T) {
	e := newTestEngine(t, time.UTC)
	require.True(t, e.Add(intervalSchedule("s1", 3600), noop))

	require.True(t, e.Pause("s1"))
	assert.Nil(t, e.NextRunTime("s1"))
	info := e.Info()
	assert.Equal(t, 1, info.TotalJobs)
	assert.Nil(t, info.NextRunTimes["s1"])

	time.Sleep(20 * time.Millisecond)
	resumedAt := time.Now()
	require.True(t, e.Resume("s1"))

	next := e.NextRunTime("s1")
	require.NotNil(t, next)
	assert.True(t, next.After(resumedAt))
}

func TestPauseResumeRemove_Unknown(t *testing.T) {
	e := newTestEngine(t, time.UTC)

	assert.False(t, e.Pause("nope"))
	assert.False(t, e.Resume("nope"))
	assert.False(t, e.Remove("nope"))
	assert.Nil(t, e.NextRunTime("nope"))
}

func TestRemove(t *testing.T) {
	e := newTestEngine(t, time.UTC)
	require.True(t, e.Add(intervalSchedule("s1", 60), noop))

	assert.True(t, e.Remove("s1"))
	assert.False(t, e.Remove("s1"))
	assert.Zero(t, e.Info().TotalJobs)
	assert.True(t, e.Add(intervalSchedule("s1", 60), noop), "id can be reused after removal")
}

func TestOneTime_PastFiresOnceAndDeregisters(t *testing.T) {
	e := newTestEngine(t, time.UTC)
	past := time.Now().Add(-time.Minute)

	var calls atomic.Int32
	got := make(chan string, 1)
	require.True(t, e.Add(oneTimeSchedule("once", &past), func(_ context.Context, id string) {
		calls.Add(1)
		got <- id
	}))

	select {
	case id := <-got:
		assert.Equal(t, "once", id)
	case <-time.After(3 * time.Second):
		t.Fatal("one-time trigger never fired")
	}
	assert.Nil(t, e.NextRunTime("once"))
	assert.Zero(t, e.Info().TotalJobs)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFire_SingleInstancePerSchedule(t *testing.T) {
	e := newTestEngine(t, time.UTC)
	release := make(chan struct{})
	var calls atomic.Int32

	require.True(t, e.Add(intervalSchedule("slow", 1), func(ctx context.Context, _ string) {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
	}))

	time.Sleep(3500 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	close(release)
}

func TestFire_ReregistrationWaitsForRunInFlight(t *testing.T) {
	e := newTestEngine(t, time.UTC)
	release := make(chan struct{})
	started := make(chan struct{}, 8)
	var active, maxActive, calls atomic.Int32

	cb := func(ctx context.Context, _ string) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		calls.Add(1)
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
		}
		active.Add(-1)
	}
	require.True(t, e.Add(intervalSchedule("s", 1), cb))

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("first run never started")
	}

	require.True(t, e.Remove("s"))
	require.True(t, e.Add(intervalSchedule("s", 1), cb))

	time.Sleep(2500 * time.Millisecond)
	assert.Equal(t, int32(1), maxActive.Load(), "re-registered schedule overlapped its own run")
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond,
		"re-registered schedule fires once the earlier run returns")
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestFire_RemovedScheduleForgetsInFlightFlag(t *testing.T) {
	e := newTestEngine(t, time.UTC)
	past := time.Now().Add(-time.Second)
	done := make(chan struct{})
	require.True(t, e.Add(oneTimeSchedule("once", &past), func(context.Context, string) { close(done) }))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("one-time trigger never fired")
	}
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.flights) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestOneTime_PastBeyondGraceIsDropped(t *testing.T) {
	e := NewEngine(Config{MisfireGrace: 5 * time.Minute}, slog.Default())
	e.Start()
	t.Cleanup(e.Stop)

	past := time.Now().Add(-time.Hour)
	var calls atomic.Int32
	require.True(t, e.Add(oneTimeSchedule("stale", &past), func(context.Context, string) { calls.Add(1) }))

	require.Eventually(t, func() bool { return e.Info().TotalJobs == 0 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load(), "a run date an hour old is outside the grace window")
}

func TestOneTime_PastWithinGraceFires(t *testing.T) {
	e := NewEngine(Config{MisfireGrace: 5 * time.Minute}, slog.Default())
	e.Start()
	t.Cleanup(e.Stop)

	past := time.Now().Add(-2 * time.Minute)
	fired := make(chan struct{})
	require.True(t, e.Add(oneTimeSchedule("recent", &past), func(context.Context, string) { close(fired) }))

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("one-time trigger inside the grace window never fired")
	}
}

func TestFire_DropsMisfireBeyondGrace(t *testing.T) {
	e := NewEngine(Config{MisfireGrace: time.Minute}, slog.Default())
	e.now = func() time.Time { return time.Now().Add(time.Hour) }
	e.Start()
	t.Cleanup(e.Stop)

	past := time.Now().Add(-time.Second)
	var calls atomic.Int32
	require.True(t, e.Add(oneTimeSchedule("late", &past), func(context.Context, string) { calls.Add(1) }))

	require.Eventually(t, func() bool { return e.Info().TotalJobs == 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestStop_CancelsCallbackContext(t *testing.T) {
	e := NewEngine(Config{}, slog.Default())
	e.Start()

	past := time.Now()
	started := make(chan struct{})
	done := make(chan struct{})
	require.True(t, e.Add(oneTimeSchedule("s1", &past), func(ctx context.Context, _ string) {
		close(started)
		<-ctx.Done()
		close(done)
	}))

	<-started
	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback context not cancelled on stop")
	}
	assert.False(t, e.Info().Running)
}

func TestValidate(t *testing.T) {
	var verr *domain.ValidationError

	err := Validate(cronSchedule("s", "* * *"))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cron_expression", verr.Field)

	err = Validate(intervalSchedule("s", 0))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "interval_seconds", verr.Field)

	assert.NoError(t, Validate(cronSchedule("s", "0 12 * * 1")))
}
