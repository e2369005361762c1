package history_test

import (
	"fmt"
	"slices"
	"testing"

	"github.com/ErlanBelekov/pipeline-scheduler/internal/domain"
	"github.com/ErlanBelekov/pipeline-scheduler/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_EvictsOldest(t *testing.T) {
	r := history.NewRing[int](3)
	for i := 1; i <= 3; i++ {
		_, ok := r.Push(i)
		assert.False(t, ok)
	}

	evicted, ok := r.Push(4)
	require.True(t, ok)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{2, 3, 4}, slices.Collect(r.All()))
	assert.Equal(t, []int{4, 3, 2}, slices.Collect(r.Backward()))
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := history.NewRing[string](0)
	assert.Equal(t, 1, r.Cap())

	r.Push("a")
	evicted, ok := r.Push("b")
	assert.True(t, ok)
	assert.Equal(t, "a", evicted)
}

func exec(id, schedule string, status domain.ExecutionStatus) *domain.TaskExecution {
	return &domain.TaskExecution{ID: id, ScheduleID: schedule, Status: status}
}

func TestTracker_BoundedNewestFirst(t *testing.T) {
	tr := history.NewTracker(5)
	for i := 0; i < 8; i++ {
		tr.Append(exec(fmt.Sprintf("e%d", i), "s1", domain.ExecutionCompleted))
	}

	assert.Equal(t, 5, tr.Len())
	assert.Nil(t, tr.Find("e2"))
	require.NotNil(t, tr.Find("e3"))

	got := tr.List("", 0)
	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"e7", "e6", "e5", "e4", "e3"}, ids)
}

func TestTracker_ListFiltersAndLimits(t *testing.T) {
	tr := history.NewTracker(10)
	tr.Append(exec("a", "s1", domain.ExecutionCompleted))
	tr.Append(exec("b", "s2", domain.ExecutionFailed))
	tr.Append(exec("c", "s1", domain.ExecutionRunning))
	tr.Append(exec("d", "s1", domain.ExecutionPending))

	got := tr.List("s1", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	assert.Empty(t, tr.List("missing", 10))
}

func TestTracker_Counts(t *testing.T) {
	tr := history.NewTracker(10)
	tr.Append(exec("a", "s1", domain.ExecutionCompleted))
	tr.Append(exec("b", "s1", domain.ExecutionCompleted))
	tr.Append(exec("c", "s1", domain.ExecutionFailed))

	counts := tr.Counts()
	assert.Equal(t, 2, counts[domain.ExecutionCompleted])
	assert.Equal(t, 1, counts[domain.ExecutionFailed])
	assert.Zero(t, counts[domain.ExecutionCancelled])
}

func TestTracker_AppendReturnsEvicted(t *testing.T) {
	tr := history.NewTracker(1)
	assert.Nil(t, tr.Append(exec("a", "s", domain.ExecutionPending)))
	evicted := tr.Append(exec("b", "s", domain.ExecutionPending))
	require.NotNil(t, evicted)
	assert.Equal(t, "a", evicted.ID)
}
